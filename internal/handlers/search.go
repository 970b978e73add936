package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"diary-assistant/internal/rag"
	"diary-assistant/internal/service"
)

// SearchHandler handles HTTP requests for hybrid search.
type SearchHandler struct {
	search service.SearchService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(search service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

// SearchFilters narrows the chunks considered by a search.
type SearchFilters struct {
	UserID    string   `json:"user_id"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Tags      []string `json:"tags"`
}

// SearchRequest is the payload for POST /api/tenants/{tenantID}/search.
type SearchRequest struct {
	Query              string        `json:"query"`
	TopK               int           `json:"top_k"`
	Filters            SearchFilters `json:"filters"`
	CombineWithKeyword bool          `json:"combine_with_keyword"`
}

// SearchResponse is the answer, the supporting chunks and the extracted tasks.
type SearchResponse struct {
	Answer string              `json:"answer"`
	Chunks []rag.SearchResult  `json:"chunks"`
	Tasks  []rag.ExtractedTask `json:"tasks"`
}

// ServeHTTP handles POST /api/tenants/{tenantID}/search.
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SearchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.search.Search(ctx, service.SearchRequest{
		TenantID:           chi.URLParam(r, "tenantID"),
		Query:              req.Query,
		TopK:               req.TopK,
		UserID:             req.Filters.UserID,
		StartDate:          req.Filters.StartDate,
		EndDate:            req.Filters.EndDate,
		Tags:               req.Filters.Tags,
		CombineWithKeyword: req.CombineWithKeyword,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to search notes")
		return
	}

	out := SearchResponse{
		Answer: resp.Answer,
		Chunks: resp.Chunks,
		Tasks:  resp.Tasks,
	}
	if out.Chunks == nil {
		out.Chunks = []rag.SearchResult{}
	}
	if out.Tasks == nil {
		out.Tasks = []rag.ExtractedTask{}
	}
	writeJSON(w, ctx, http.StatusOK, out)
}
