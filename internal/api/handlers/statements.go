package handlers

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/superbank/internal/api/middleware"
	"github.com/dvloznov/superbank/internal/jobs"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/objectstore"
	"github.com/dvloznov/superbank/internal/store"
	"github.com/google/uuid"
)

// maxUploadBytes bounds a statement upload held in memory.
const maxUploadBytes = 32 << 20

// StatementsHandler handles statement upload endpoints.
type StatementsHandler struct {
	repo      store.Repository
	objects   objectstore.Store
	publisher jobs.Publisher
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(repo store.Repository, objects objectstore.Store, publisher jobs.Publisher) *StatementsHandler {
	return &StatementsHandler{
		repo:      repo,
		objects:   objects,
		publisher: publisher,
	}
}

// UploadStatement handles POST /api/statements
//
// It expects a multipart form with "bank", an optional "account_id" and the
// CSV export in "file". The file is stored, a PENDING statement is recorded
// and a slice job is enqueued.
func (h *StatementsHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	bankName := strings.TrimSpace(r.FormValue("bank"))
	if bankName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "bank is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if _, err := h.repo.GetBankMapping(ctx, bankName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			middleware.WriteError(w, http.StatusBadRequest, "Unknown bank: "+bankName)
			return
		}
		writeFailure(w, r, err, "Failed to load bank mapping")
		return
	}

	statementID := uuid.New().String()
	filename := filepath.Base(header.Filename)

	uri, err := h.objects.Put(ctx, objectstore.ObjectName(bankName, statementID, filename), file)
	if err != nil {
		writeFailure(w, r, err, "Failed to store statement file")
		return
	}

	st := &store.Statement{
		ID:         statementID,
		BankName:   bankName,
		AccountID:  strings.TrimSpace(r.FormValue("account_id")),
		ObjectURI:  uri,
		Filename:   filename,
		Status:     store.StatusPending,
		UploadedAt: time.Now().UTC(),
	}
	if err := h.repo.InsertStatement(ctx, st); err != nil {
		writeFailure(w, r, err, "Failed to save statement metadata")
		return
	}

	job := &jobs.SliceStatementJob{
		StatementID: statementID,
		BankName:    bankName,
	}
	if err := h.publisher.PublishSliceStatement(ctx, job); err != nil {
		writeFailure(w, r, err, "Failed to enqueue slice job")
		return
	}

	log.Info().
		Str("statement_id", statementID).
		Str("job_id", job.JobID).
		Str("bank", bankName).
		Str("object_uri", uri).
		Msg("Statement uploaded and slice job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"statement_id": statementID,
		"job_id":       job.JobID,
		"object_uri":   uri,
		"status":       string(st.Status),
	})
}

// GetStatement handles GET /api/statements/{id}
func (h *StatementsHandler) GetStatement(w http.ResponseWriter, r *http.Request, statementID string) {
	st, err := h.repo.GetStatement(r.Context(), statementID)
	if err != nil {
		writeFailure(w, r, err, "Statement not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, st)
}
