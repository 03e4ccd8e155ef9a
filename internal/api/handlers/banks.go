package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dvloznov/superbank/internal/api/middleware"
	"github.com/dvloznov/superbank/internal/domain"
	"github.com/dvloznov/superbank/internal/logger"
	"github.com/dvloznov/superbank/internal/mappingai"
	"github.com/dvloznov/superbank/internal/store"
	"github.com/dvloznov/superbank/internal/superbank"
	"github.com/google/uuid"
)

// BanksHandler handles bank mapping endpoints.
type BanksHandler struct {
	repo      store.Repository
	suggester mappingai.Suggester
}

// NewBanksHandler creates a new banks handler. suggester may be nil, in which
// case mapping suggestions answer 503.
func NewBanksHandler(repo store.Repository, suggester mappingai.Suggester) *BanksHandler {
	return &BanksHandler{
		repo:      repo,
		suggester: suggester,
	}
}

// ListBanks handles GET /api/banks
func (h *BanksHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.repo.ListBankMappings(r.Context())
	if err != nil {
		writeFailure(w, r, err, "Failed to list banks")
		return
	}
	if banks == nil {
		banks = []domain.BankMapping{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"banks": banks,
		"count": len(banks),
	})
}

// GetBank handles GET /api/banks/{name}
func (h *BanksHandler) GetBank(w http.ResponseWriter, r *http.Request, name string) {
	bank, err := h.repo.GetBankMapping(r.Context(), name)
	if err != nil {
		writeFailure(w, r, err, "Bank not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, bank)
}

// SaveBank handles PUT /api/banks/{name}
func (h *BanksHandler) SaveBank(w http.ResponseWriter, r *http.Request, name string) {
	var bank domain.BankMapping
	if err := json.NewDecoder(r.Body).Decode(&bank); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if bank.Name == "" {
		bank.Name = name
	}
	if bank.Name != name {
		middleware.WriteError(w, http.StatusBadRequest, "Bank name in body does not match the URL")
		return
	}

	if err := bank.Validate(); err != nil {
		writeFailure(w, r, err, "Invalid bank mapping")
		return
	}

	if err := h.repo.SaveBankMapping(r.Context(), bank); err != nil {
		writeFailure(w, r, err, "Failed to save bank mapping")
		return
	}

	log := logger.FromContext(r.Context())
	log.Info().Str("bank", bank.Name).Msg("Bank mapping saved")
	middleware.WriteJSON(w, http.StatusOK, bank)
}

// SuggestMapping handles POST /api/banks/{name}/suggest-mapping
//
// The body may carry the raw header, a few sample rows and the canonical
// columns to target. Missing parts fall back to the stored mapping's header
// and the current Super Bank header.
func (h *BanksHandler) SuggestMapping(w http.ResponseWriter, r *http.Request, name string) {
	if h.suggester == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Mapping suggestions are not configured")
		return
	}
	ctx := r.Context()

	var req struct {
		Header    []string   `json:"header"`
		Sample    [][]string `json:"sample"`
		Canonical []string   `json:"canonical"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if len(req.Header) == 0 {
		bank, err := h.repo.GetBankMapping(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				middleware.WriteError(w, http.StatusBadRequest, "header is required for a bank without a saved mapping")
				return
			}
			writeFailure(w, r, err, "Failed to load bank mapping")
			return
		}
		req.Header = bank.Header
	}

	if len(req.Canonical) == 0 {
		mappings, err := h.repo.ListBankMappings(ctx)
		if err != nil {
			writeFailure(w, r, err, "Failed to list banks")
			return
		}
		for _, col := range superbank.BuildHeader(mappings) {
			if col != domain.ColumnTags {
				req.Canonical = append(req.Canonical, col)
			}
		}
	}
	if len(req.Canonical) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "canonical is required until at least one bank is mapped")
		return
	}

	suggestion, err := h.suggester.SuggestMapping(ctx, mappingai.Request{
		BankName:  name,
		Header:    req.Header,
		Sample:    req.Sample,
		Canonical: req.Canonical,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("bank", name).Msg("Mapping suggestion failed")
		middleware.WriteError(w, http.StatusBadGateway, "Mapping suggestion failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bank":    name,
		"header":  req.Header,
		"mapping": suggestion,
	})
}

// TagsHandler handles tag endpoints.
type TagsHandler struct {
	repo store.Repository
}

// NewTagsHandler creates a new tags handler.
func NewTagsHandler(repo store.Repository) *TagsHandler {
	return &TagsHandler{repo: repo}
}

// ListTags handles GET /api/tags
func (h *TagsHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tagList, err := h.repo.ListTags(r.Context())
	if err != nil {
		writeFailure(w, r, err, "Failed to list tags")
		return
	}
	if tagList == nil {
		tagList = []domain.Tag{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"tags":  tagList,
		"count": len(tagList),
	})
}

// CreateTag handles POST /api/tags
func (h *TagsHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var tag domain.Tag
	if err := json.NewDecoder(r.Body).Decode(&tag); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tag.Name = strings.TrimSpace(tag.Name)
	if tag.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if tag.ID == "" {
		tag.ID = uuid.New().String()
	}
	if tag.Color == "" {
		tag.Color = domain.DefaultColor
	}

	if err := h.repo.SaveTag(r.Context(), tag); err != nil {
		writeFailure(w, r, err, "Failed to save tag")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tag)
}
