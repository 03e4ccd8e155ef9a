package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/jobs"
	"github.com/dvloznov/superbank/internal/jobs/inmemory"
	"github.com/dvloznov/superbank/internal/mappingai"
	"github.com/dvloznov/superbank/internal/store"
	"github.com/dvloznov/superbank/internal/superbank"
)

// MockRepository is a mock implementation of store.Repository for testing.
type MockRepository struct {
	ListBankMappingsFunc      func(ctx context.Context) ([]domain.BankMapping, error)
	GetBankMappingFunc        func(ctx context.Context, name string) (*domain.BankMapping, error)
	SaveBankMappingFunc       func(ctx context.Context, m domain.BankMapping) error
	ListTagsFunc              func(ctx context.Context) ([]domain.Tag, error)
	SaveTagFunc               func(ctx context.Context, tag domain.Tag) error
	ListTransactionsFunc      func(ctx context.Context, filter store.TransactionFilter) ([]domain.RawTransaction, error)
	InsertTransactionsFunc    func(ctx context.Context, txs []domain.RawTransaction) error
	InsertStatementFunc       func(ctx context.Context, st *store.Statement) error
	GetStatementFunc          func(ctx context.Context, id string) (*store.Statement, error)
	UpdateStatementStatusFunc func(ctx context.Context, id string, status store.StatementStatus, rowCount int, cause error) error
}

func (m *MockRepository) ListBankMappings(ctx context.Context) ([]domain.BankMapping, error) {
	if m.ListBankMappingsFunc != nil {
		return m.ListBankMappingsFunc(ctx)
	}
	return nil, nil
}

func (m *MockRepository) GetBankMapping(ctx context.Context, name string) (*domain.BankMapping, error) {
	if m.GetBankMappingFunc != nil {
		return m.GetBankMappingFunc(ctx, name)
	}
	return nil, store.ErrNotFound
}

func (m *MockRepository) SaveBankMapping(ctx context.Context, bm domain.BankMapping) error {
	if m.SaveBankMappingFunc != nil {
		return m.SaveBankMappingFunc(ctx, bm)
	}
	return nil
}

func (m *MockRepository) ListTags(ctx context.Context) ([]domain.Tag, error) {
	if m.ListTagsFunc != nil {
		return m.ListTagsFunc(ctx)
	}
	return nil, nil
}

func (m *MockRepository) SaveTag(ctx context.Context, tag domain.Tag) error {
	if m.SaveTagFunc != nil {
		return m.SaveTagFunc(ctx, tag)
	}
	return nil
}

func (m *MockRepository) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]domain.RawTransaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, filter)
	}
	return nil, nil
}

func (m *MockRepository) InsertTransactions(ctx context.Context, txs []domain.RawTransaction) error {
	if m.InsertTransactionsFunc != nil {
		return m.InsertTransactionsFunc(ctx, txs)
	}
	return nil
}

func (m *MockRepository) InsertStatement(ctx context.Context, st *store.Statement) error {
	if m.InsertStatementFunc != nil {
		return m.InsertStatementFunc(ctx, st)
	}
	return nil
}

func (m *MockRepository) GetStatement(ctx context.Context, id string) (*store.Statement, error) {
	if m.GetStatementFunc != nil {
		return m.GetStatementFunc(ctx, id)
	}
	return nil, store.ErrNotFound
}

func (m *MockRepository) UpdateStatementStatus(ctx context.Context, id string, status store.StatementStatus, rowCount int, cause error) error {
	if m.UpdateStatementStatusFunc != nil {
		return m.UpdateStatementStatusFunc(ctx, id, status, rowCount, cause)
	}
	return nil
}

func (m *MockRepository) Close() error { return nil }

// MockObjectStore is a mock implementation of objectstore.Store for testing.
type MockObjectStore struct {
	PutFunc func(ctx context.Context, objectName string, r io.Reader) (string, error)
}

func (m *MockObjectStore) Put(ctx context.Context, objectName string, r io.Reader) (string, error) {
	return m.PutFunc(ctx, objectName, r)
}

func (m *MockObjectStore) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.SliceStatementJob) error
}

func (m *MockPublisher) PublishSliceStatement(ctx context.Context, job *jobs.SliceStatementJob) error {
	return m.PublishFunc(ctx, job)
}

func (m *MockPublisher) Close() error { return nil }

// MockSuggester is a mock implementation of mappingai.Suggester for testing.
type MockSuggester struct {
	SuggestMappingFunc func(ctx context.Context, req mappingai.Request) (map[string]string, error)
}

func (m *MockSuggester) SuggestMapping(ctx context.Context, req mappingai.Request) (map[string]string, error) {
	return m.SuggestMappingFunc(ctx, req)
}

var hdfc = domain.BankMapping{
	Name:    "HDFC",
	Header:  []string{"Date", "Narration", "Withdrawal Amt.", "Deposit Amt."},
	Mapping: map[string]string{"Date": "Date", "Narration": "Description"},
	Conditions: []domain.Condition{
		{
			If:   domain.Predicate{Field: "Withdrawal Amt.", Op: domain.OpGt, Value: "0"},
			Then: map[string]domain.ValueExpr{"Amount": domain.NegatedFieldRef("Withdrawal Amt.")},
		},
	},
}

func hdfcTx(id, date, narration, withdrawal string) domain.RawTransaction {
	return domain.RawTransaction{
		ID:          id,
		BankID:      "HDFC",
		StatementID: "st-1",
		Fields: map[string]domain.Value{
			"Date":            domain.StringValue(date),
			"Narration":       domain.StringValue(narration),
			"Withdrawal Amt.": domain.StringValue(withdrawal),
			"Deposit Amt.":    domain.StringValue(""),
		},
	}
}

func newRouter(repo *MockRepository, objects *MockObjectStore, pub *MockPublisher, sugg mappingai.Suggester, jobStore jobs.JobStore) http.Handler {
	engine := superbank.New(superbank.Config{})
	if jobStore == nil {
		jobStore = inmemory.NewStore()
	}
	return Router{
		SuperBank:  NewSuperBankHandler(repo, engine),
		Banks:      NewBanksHandler(repo, sugg),
		Tags:       NewTagsHandler(repo),
		Statements: NewStatementsHandler(repo, objects, pub),
		Jobs:       NewJobsHandler(jobStore),
	}.Routes()
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListRows(t *testing.T) {
	var gotFilter store.TransactionFilter
	repo := &MockRepository{
		ListBankMappingsFunc: func(ctx context.Context) ([]domain.BankMapping, error) {
			return []domain.BankMapping{hdfc}, nil
		},
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]domain.RawTransaction, error) {
			gotFilter = filter
			return []domain.RawTransaction{
				hdfcTx("t1", "01/02/2024", "SWIGGY ORDER", "250.00"),
				hdfcTx("t2", "03/02/2024", "RENT FEB", "15000.00"),
			}, nil
		},
	}
	h := newRouter(repo, nil, nil, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/superbank/rows?bank=HDFC&q=swiggy", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(gotFilter.BankIDs) != 1 || gotFilter.BankIDs[0] != "HDFC" {
		t.Errorf("bank filter not pushed down: %+v", gotFilter)
	}

	var resp struct {
		Header []string                 `json:"header"`
		Rows   []map[string]interface{} `json:"rows"`
		Count  int                      `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", resp.Count)
	}
	wantHeader := []string{"Date", "Description", "Amount", "Tags"}
	if strings.Join(resp.Header, "|") != strings.Join(wantHeader, "|") {
		t.Errorf("header = %v, want %v", resp.Header, wantHeader)
	}
	if resp.Rows[0]["Description"] != "SWIGGY ORDER" {
		t.Errorf("row = %v", resp.Rows[0])
	}
}

func TestListRows_InvalidDate(t *testing.T) {
	h := newRouter(&MockRepository{}, nil, nil, nil, nil)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/superbank/rows?from=yesterday", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListRows_StoreFailure(t *testing.T) {
	repo := &MockRepository{
		ListTagsFunc: func(ctx context.Context) ([]domain.Tag, error) {
			return nil, errors.New("bigquery unavailable")
		},
	}
	rec := serve(newRouter(repo, nil, nil, nil, nil), httptest.NewRequest(http.MethodGet, "/api/superbank/rows", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAnalytics(t *testing.T) {
	repo := &MockRepository{
		ListBankMappingsFunc: func(ctx context.Context) ([]domain.BankMapping, error) {
			return []domain.BankMapping{hdfc}, nil
		},
		ListTransactionsFunc: func(ctx context.Context, filter store.TransactionFilter) ([]domain.RawTransaction, error) {
			return []domain.RawTransaction{
				hdfcTx("t1", "01/02/2024", "SWIGGY ORDER", "250.00"),
				hdfcTx("t2", "03/02/2024", "RENT FEB", "15000.00"),
			}, nil
		},
	}
	rec := serve(newRouter(repo, nil, nil, nil, nil), httptest.NewRequest(http.MethodGet, "/api/superbank/analytics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var summary struct {
		TotalTransactions int     `json:"totalTransactions"`
		TotalDebit        float64 `json:"totalDebit"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TotalTransactions != 2 {
		t.Errorf("totalTransactions = %d", summary.TotalTransactions)
	}
	if summary.TotalDebit != 15250 {
		t.Errorf("totalDebit = %v", summary.TotalDebit)
	}
}

func TestBanks(t *testing.T) {
	var saved *domain.BankMapping
	repo := &MockRepository{
		GetBankMappingFunc: func(ctx context.Context, name string) (*domain.BankMapping, error) {
			if name == "HDFC" {
				m := hdfc
				return &m, nil
			}
			return nil, store.ErrNotFound
		},
		SaveBankMappingFunc: func(ctx context.Context, m domain.BankMapping) error {
			saved = &m
			return nil
		},
	}
	h := newRouter(repo, nil, nil, nil, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"get known", http.MethodGet, "/api/banks/HDFC", "", http.StatusOK},
		{"get unknown", http.MethodGet, "/api/banks/Nope", "", http.StatusNotFound},
		{"save valid", http.MethodPut, "/api/banks/Monzo", `{"header":["Date","Name"],"mapping":{"Name":"Description"}}`, http.StatusOK},
		{"save name mismatch", http.MethodPut, "/api/banks/Monzo", `{"id":"Revolut"}`, http.StatusBadRequest},
		{"save invalid mapping", http.MethodPut, "/api/banks/Monzo", `{"header":["Date"],"mapping":{"Name":"Description"}}`, http.StatusBadRequest},
		{"save tags target", http.MethodPut, "/api/banks/Monzo", `{"mapping":{"Category":"Tags"}}`, http.StatusBadRequest},
		{"save bad json", http.MethodPut, "/api/banks/Monzo", `{`, http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/api/banks/HDFC", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			saved = nil
			rec := serve(h, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK && tt.method == http.MethodPut {
				if saved == nil || saved.Name != "Monzo" {
					t.Errorf("expected mapping saved under the URL name, got %+v", saved)
				}
			}
			if tt.wantStatus == http.StatusBadRequest && saved != nil {
				t.Error("invalid mapping must not be saved")
			}
		})
	}
}

func TestSuggestMapping(t *testing.T) {
	repo := &MockRepository{
		ListBankMappingsFunc: func(ctx context.Context) ([]domain.BankMapping, error) {
			return []domain.BankMapping{hdfc}, nil
		},
		GetBankMappingFunc: func(ctx context.Context, name string) (*domain.BankMapping, error) {
			return &domain.BankMapping{Name: name, Header: []string{"Completed Date", "Description", "Amount"}}, nil
		},
	}

	var got mappingai.Request
	sugg := &MockSuggester{
		SuggestMappingFunc: func(ctx context.Context, req mappingai.Request) (map[string]string, error) {
			got = req
			return map[string]string{"Completed Date": "Date"}, nil
		},
	}

	rec := serve(newRouter(repo, nil, nil, sugg, nil), httptest.NewRequest(http.MethodPost, "/api/banks/Revolut/suggest-mapping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got.BankName != "Revolut" || len(got.Header) != 3 {
		t.Errorf("request = %+v", got)
	}
	for _, c := range got.Canonical {
		if c == domain.ColumnTags {
			t.Error("Tags must not be offered as a mapping target")
		}
	}
	if !strings.Contains(rec.Body.String(), `"Completed Date":"Date"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSuggestMapping_Unavailable(t *testing.T) {
	rec := serve(newRouter(&MockRepository{}, nil, nil, nil, nil), httptest.NewRequest(http.MethodPost, "/api/banks/Revolut/suggest-mapping", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCreateTag(t *testing.T) {
	var saved domain.Tag
	repo := &MockRepository{
		SaveTagFunc: func(ctx context.Context, tag domain.Tag) error {
			saved = tag
			return nil
		},
	}
	h := newRouter(repo, nil, nil, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/tags", strings.NewReader(`{"name":" Food "}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if saved.Name != "Food" || saved.ID == "" || saved.Color != domain.DefaultColor {
		t.Errorf("saved = %+v", saved)
	}

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/tags", strings.NewReader(`{"name":""}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty name: status = %d", rec.Code)
	}
}

func multipartUpload(t *testing.T, bank string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if bank != "" {
		mw.WriteField("bank", bank)
	}
	mw.WriteField("account_id", "acc-9")
	fw, err := mw.CreateFormFile("file", "feb.csv")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("Date,Narration\n01/02/2024,SWIGGY\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/statements", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStatement(t *testing.T) {
	var inserted *store.Statement
	repo := &MockRepository{
		GetBankMappingFunc: func(ctx context.Context, name string) (*domain.BankMapping, error) {
			m := hdfc
			return &m, nil
		},
		InsertStatementFunc: func(ctx context.Context, st *store.Statement) error {
			inserted = st
			return nil
		},
	}
	var stored string
	objects := &MockObjectStore{
		PutFunc: func(ctx context.Context, objectName string, r io.Reader) (string, error) {
			data, _ := io.ReadAll(r)
			stored = string(data)
			return "gs://bucket/" + objectName, nil
		},
	}
	var published *jobs.SliceStatementJob
	pub := &MockPublisher{
		PublishFunc: func(ctx context.Context, job *jobs.SliceStatementJob) error {
			job.JobID = "job-1"
			published = job
			return nil
		},
	}

	rec := serve(newRouter(repo, objects, pub, nil, nil), multipartUpload(t, "HDFC"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	if !strings.Contains(stored, "SWIGGY") {
		t.Errorf("file content not stored: %q", stored)
	}
	if inserted == nil || inserted.Status != store.StatusPending || inserted.AccountID != "acc-9" || inserted.Filename != "feb.csv" {
		t.Fatalf("inserted = %+v", inserted)
	}
	if !strings.HasPrefix(inserted.ObjectURI, "gs://bucket/statements/hdfc/") {
		t.Errorf("object uri = %s", inserted.ObjectURI)
	}
	if published == nil || published.StatementID != inserted.ID || published.BankName != "HDFC" {
		t.Errorf("published = %+v", published)
	}
	if !strings.Contains(rec.Body.String(), `"job_id":"job-1"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestUploadStatement_Rejected(t *testing.T) {
	tests := []struct {
		name string
		bank string
	}{
		{"missing bank", ""},
		{"unknown bank", "Nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := &MockObjectStore{
				PutFunc: func(ctx context.Context, objectName string, r io.Reader) (string, error) {
					t.Error("object store must not be called")
					return "", nil
				},
			}
			rec := serve(newRouter(&MockRepository{}, objects, nil, nil, nil), multipartUpload(t, tt.bank))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestGetStatement_NotFound(t *testing.T) {
	rec := serve(newRouter(&MockRepository{}, nil, nil, nil, nil), httptest.NewRequest(http.MethodGet, "/api/statements/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestJobs(t *testing.T) {
	jobStore := inmemory.NewStore()
	jobStore.SaveJob(context.Background(), &jobs.SliceStatementJob{JobID: "j1", StatementID: "st-1", Status: jobs.JobStatusCompleted})
	jobStore.SaveJob(context.Background(), &jobs.SliceStatementJob{JobID: "j2", StatementID: "st-2", Status: jobs.JobStatusFailed})
	h := newRouter(&MockRepository{}, nil, nil, nil, jobStore)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/jobs?statement_id=st-2", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("list: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/jobs/j1", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"job_id":"j1"`) {
		t.Errorf("get: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job: status = %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := serve(newRouter(&MockRepository{}, nil, nil, nil, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("status %d, body %s", rec.Code, rec.Body.String())
	}
}
