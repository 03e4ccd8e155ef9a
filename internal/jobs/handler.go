package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/ingest"
	"github.com/dvloznov/superbank/internal/store"
)

// NewSliceHandler returns a handler that slices the job's statement. Missing
// records, invalid mappings and empty statements fail without retry.
func NewSliceHandler(repo ingest.Repository, objects ingest.Fetcher) JobHandler {
	return func(ctx context.Context, job Job) error {
		sj, ok := job.(*SliceStatementJob)
		if !ok {
			return Permanent(fmt.Errorf("unsupported job type %q", job.GetType()))
		}

		n, err := ingest.SliceStatement(ctx, repo, objects, sj.StatementID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, ingest.ErrNoRows) || errors.Is(err, domain.ErrInvalidMapping) {
				return Permanent(err)
			}
			return err
		}
		sj.RowCount = n
		return nil
	}
}
