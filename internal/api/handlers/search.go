// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
)

// BookSearcher searches the metadata catalog.
type BookSearcher interface {
	Search(ctx context.Context, query string) ([]models.NormalizedBook, error)
}

type SearchHandler struct {
	searcher BookSearcher
	metrics  *metrics.Manager
}

func NewSearchHandler(searcher BookSearcher, m *metrics.Manager) *SearchHandler {
	return &SearchHandler{searcher: searcher, metrics: m}
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Success bool                    `json:"success"`
	Books   []models.NormalizedBook `json:"books"`
}

// Search handles POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		RespondError(w, http.StatusBadRequest, "Search query is required")
		return
	}

	books, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Metadata search failed")
		h.metrics.ObserveSearch("error")
		RespondServiceError(w, err)
		return
	}

	if books == nil {
		books = []models.NormalizedBook{}
	}
	if len(books) == 0 {
		h.metrics.ObserveSearch("empty")
	} else {
		h.metrics.ObserveSearch("ok")
	}

	RespondJSON(w, http.StatusOK, searchResponse{Success: true, Books: books})
}
