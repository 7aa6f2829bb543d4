package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iconidentify/favmirror/internal/domain"
)

// Searcher runs tag queries.
type Searcher interface {
	Search(ctx context.Context, raw string) ([]domain.ExternalID, error)
	Autocomplete(ctx context.Context, term string) ([]domain.TagUsage, error)
}

// SearchHandler handles tag search requests.
type SearchHandler struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searcher Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		searcher: searcher,
		logger:   logger,
	}
}

// AutocompleteResponse lists tag suggestions.
type AutocompleteResponse struct {
	Suggestions []domain.TagUsage `json:"suggestions"`
}

// Search handles GET /api/search?term=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ids, err := h.searcher.Search(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, PostIDs{PostIDs: nonNil(ids)})
}

// Autocomplete handles GET /api/autocomplete?term=
func (h *SearchHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.searcher.Autocomplete(r.Context(), r.URL.Query().Get("term"))
	if err != nil {
		h.logger.Error("autocomplete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "autocomplete failed")
		return
	}
	if suggestions == nil {
		suggestions = []domain.TagUsage{}
	}
	writeJSON(w, http.StatusOK, AutocompleteResponse{Suggestions: suggestions})
}
