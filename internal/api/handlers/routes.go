package handlers

import (
	"net/http"
)

// Router groups the handlers served by the API.
type Router struct {
	SuperBank  *SuperBankHandler
	Banks      *BanksHandler
	Tags       *TagsHandler
	Statements *StatementsHandler
	Jobs       *JobsHandler
}

// Routes registers every endpoint on a new ServeMux. Unsupported methods on
// a known path answer 405.
func (rt Router) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Super Bank endpoints
	mux.HandleFunc("GET /api/superbank/rows", rt.SuperBank.ListRows)
	mux.HandleFunc("GET /api/superbank/analytics", rt.SuperBank.Analytics)

	// Bank mapping endpoints
	mux.HandleFunc("GET /api/banks", rt.Banks.ListBanks)
	mux.HandleFunc("GET /api/banks/{name}", func(w http.ResponseWriter, r *http.Request) {
		rt.Banks.GetBank(w, r, r.PathValue("name"))
	})
	mux.HandleFunc("PUT /api/banks/{name}", func(w http.ResponseWriter, r *http.Request) {
		rt.Banks.SaveBank(w, r, r.PathValue("name"))
	})
	mux.HandleFunc("POST /api/banks/{name}/suggest-mapping", func(w http.ResponseWriter, r *http.Request) {
		rt.Banks.SuggestMapping(w, r, r.PathValue("name"))
	})

	// Tags endpoints
	mux.HandleFunc("GET /api/tags", rt.Tags.ListTags)
	mux.HandleFunc("POST /api/tags", rt.Tags.CreateTag)

	// Statements endpoints
	mux.HandleFunc("POST /api/statements", rt.Statements.UploadStatement)
	mux.HandleFunc("GET /api/statements/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Statements.GetStatement(w, r, r.PathValue("id"))
	})

	// Jobs endpoints
	mux.HandleFunc("GET /api/jobs", rt.Jobs.ListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		rt.Jobs.GetJob(w, r, r.PathValue("id"))
	})

	// Health check endpoint
	mux.HandleFunc("GET /health", Health)

	return mux
}
