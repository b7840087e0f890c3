// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/autobrr/liberry/internal/models"
)

// PresenceChecker checks a batch of books against the library.
type PresenceChecker interface {
	CheckBatch(ctx context.Context, books []models.BookRef) map[string]bool
}

type LibraryHandler struct {
	checker PresenceChecker
}

func NewLibraryHandler(checker PresenceChecker) *LibraryHandler {
	return &LibraryHandler{checker: checker}
}

type checkLibraryRequest struct {
	Books []models.BookRef `json:"books"`
}

type checkLibraryResponse struct {
	Success bool            `json:"success"`
	Results map[string]bool `json:"results"`
}

// CheckCalibre handles POST /api/check-calibre
func (h *LibraryHandler) CheckCalibre(w http.ResponseWriter, r *http.Request) {
	var req checkLibraryRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	results := h.checker.CheckBatch(r.Context(), req.Books)
	if results == nil {
		results = map[string]bool{}
	}

	RespondJSON(w, http.StatusOK, checkLibraryResponse{Success: true, Results: results})
}
