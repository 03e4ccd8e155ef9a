package ingest

import (
	"context"
	"fmt"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/store"
)

// Repository is the subset of store.Repository the slicing pipeline needs.
type Repository interface {
	GetStatement(ctx context.Context, id string) (*store.Statement, error)
	GetBankMapping(ctx context.Context, name string) (*domain.BankMapping, error)
	InsertTransactions(ctx context.Context, txs []domain.RawTransaction) error
	UpdateStatementStatus(ctx context.Context, id string, status store.StatementStatus, rowCount int, cause error) error
}

// Fetcher downloads an uploaded statement.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Step represents a single step in the slicing pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State holds the shared state across all pipeline steps.
type State struct {
	StatementID  string
	Statement    *store.Statement
	Mapping      *domain.BankMapping
	Data         []byte
	Transactions []domain.RawTransaction
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []Step
}

func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps sequentially and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// LoadStatementStep reads the statement record.
type LoadStatementStep struct{ Repo Repository }

func (s *LoadStatementStep) Execute(ctx context.Context, state *State) error {
	st, err := s.Repo.GetStatement(ctx, state.StatementID)
	if err != nil {
		return err
	}
	state.Statement = st
	return nil
}

// LoadMappingStep reads the bank mapping named on the statement.
type LoadMappingStep struct{ Repo Repository }

func (s *LoadMappingStep) Execute(ctx context.Context, state *State) error {
	m, err := s.Repo.GetBankMapping(ctx, state.Statement.BankName)
	if err != nil {
		return err
	}
	state.Mapping = m
	return nil
}

// FetchObjectStep downloads the CSV bytes.
type FetchObjectStep struct{ Objects Fetcher }

func (s *FetchObjectStep) Execute(ctx context.Context, state *State) error {
	data, err := s.Objects.Fetch(ctx, state.Statement.ObjectURI)
	if err != nil {
		return err
	}
	state.Data = data
	return nil
}

// SliceStep turns the CSV into raw transactions.
type SliceStep struct{}

func (s *SliceStep) Execute(ctx context.Context, state *State) error {
	bankID := state.Mapping.BankID
	if bankID == "" {
		bankID = state.Mapping.Name
	}
	txs, err := SliceCSV(state.Data, state.Mapping, SliceMeta{
		BankID:      bankID,
		AccountID:   state.Statement.AccountID,
		StatementID: state.Statement.ID,
	})
	if err != nil {
		return err
	}
	state.Transactions = txs
	return nil
}

// InsertTransactionsStep persists the sliced rows.
type InsertTransactionsStep struct{ Repo Repository }

func (s *InsertTransactionsStep) Execute(ctx context.Context, state *State) error {
	return s.Repo.InsertTransactions(ctx, state.Transactions)
}

// MarkSlicedStep marks the statement as SLICED with its row count.
type MarkSlicedStep struct{ Repo Repository }

func (s *MarkSlicedStep) Execute(ctx context.Context, state *State) error {
	return s.Repo.UpdateStatementStatus(ctx, state.StatementID, store.StatusSliced, len(state.Transactions), nil)
}

// NewSlicePipeline creates the standard pipeline for slicing a statement.
func NewSlicePipeline(repo Repository, objects Fetcher) *Pipeline {
	return NewPipeline(
		&LoadStatementStep{Repo: repo},
		&LoadMappingStep{Repo: repo},
		&FetchObjectStep{Objects: objects},
		&SliceStep{},
		&InsertTransactionsStep{Repo: repo},
		&MarkSlicedStep{Repo: repo},
	)
}

// SliceStatement runs the slice pipeline for statementID and returns the number
// of rows inserted. On failure the statement is marked FAILED; a failure to
// record that is logged, and the original error is returned.
func SliceStatement(ctx context.Context, repo Repository, objects Fetcher, statementID string) (int, error) {
	log := logger.FromContext(ctx).With().Str("statement_id", statementID).Logger()

	state := &State{StatementID: statementID}
	if err := NewSlicePipeline(repo, objects).Execute(ctx, state); err != nil {
		if state.Statement != nil {
			if markErr := repo.UpdateStatementStatus(ctx, statementID, store.StatusFailed, 0, err); markErr != nil {
				log.Error().Err(markErr).Msg("SliceStatement: marking statement failed")
			}
		}
		return 0, fmt.Errorf("SliceStatement: %w", err)
	}

	log.Info().Int("rows", len(state.Transactions)).Msg("statement sliced")
	return len(state.Transactions), nil
}
