package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/superbank/internal/api/middleware"
	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/jobs"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/parse"
	"github.com/dvloznov/superbank/internal/store"
	"github.com/dvloznov/superbank/internal/superbank"
)

// writeFailure maps err to a status code, logs it and writes msg.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, jobs.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidMapping):
		status = http.StatusBadRequest
		msg = err.Error()
	}

	log := logger.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg(msg)
	} else {
		log.Warn().Err(err).Int("status", status).Msg(msg)
	}
	middleware.WriteError(w, status, msg)
}

// SuperBankHandler serves the consolidated table and its analytics.
type SuperBankHandler struct {
	repo   store.Repository
	engine *superbank.Engine
}

// NewSuperBankHandler creates a new Super Bank handler.
func NewSuperBankHandler(repo store.Repository, engine *superbank.Engine) *SuperBankHandler {
	return &SuperBankHandler{
		repo:   repo,
		engine: engine,
	}
}

// ListRows handles GET /api/superbank/rows
func (h *SuperBankHandler) ListRows(w http.ResponseWriter, r *http.Request) {
	view, ok := h.build(w, r)
	if !ok {
		return
	}

	rows := view.Rows
	if rows == nil {
		rows = []domain.CanonicalRow{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"header": view.Header,
		"rows":   rows,
		"count":  view.Count,
	})
}

// Analytics handles GET /api/superbank/analytics
func (h *SuperBankHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	view, ok := h.build(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, view.Summary)
}

func (h *SuperBankHandler) build(w http.ResponseWriter, r *http.Request) (*superbank.View, bool) {
	ctx := r.Context()

	filter, err := parseFilter(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	mappings, err := h.repo.ListBankMappings(ctx)
	if err != nil {
		writeFailure(w, r, err, "Failed to list bank mappings")
		return nil, false
	}
	tagList, err := h.repo.ListTags(ctx)
	if err != nil {
		writeFailure(w, r, err, "Failed to list tags")
		return nil, false
	}
	txs, err := h.repo.ListTransactions(ctx, store.TransactionFilter{
		BankIDs:      filter.BankIDs,
		AccountIDs:   filter.AccountIDs,
		StatementIDs: filter.StatementIDs,
	})
	if err != nil {
		writeFailure(w, r, err, "Failed to list transactions")
		return nil, false
	}

	view, err := h.engine.Build(ctx, superbank.Input{
		Transactions: txs,
		Mappings:     mappings,
		Tags:         tagList,
	}, filter)
	if err != nil {
		writeFailure(w, r, err, "Failed to build Super Bank view")
		return nil, false
	}
	return view, true
}

// parseFilter reads bank, account, statement and tag (repeatable or comma
// separated), from/to dates, date_column and q.
func parseFilter(r *http.Request) (superbank.Filter, error) {
	query := r.URL.Query()
	f := superbank.Filter{
		BankIDs:      queryList(query["bank"]),
		AccountIDs:   queryList(query["account"]),
		StatementIDs: queryList(query["statement"]),
		Tags:         queryList(query["tag"]),
		DateColumn:   strings.TrimSpace(query.Get("date_column")),
		Search:       query.Get("q"),
	}

	for _, bound := range []struct {
		key string
		dst *time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		v := strings.TrimSpace(query.Get(bound.key))
		if v == "" {
			continue
		}
		t, ok := parse.ParseDateStrict(v)
		if !ok {
			return f, errors.New("Invalid " + bound.key + " date")
		}
		*bound.dst = t
	}
	return f, nil
}

func queryList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		writeFailure(w, r, err, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		StatementID: query.Get("statement_id"),
		Status:      jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		writeFailure(w, r, err, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.SliceStatementJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
