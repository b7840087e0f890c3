// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/domain"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
	})
}

// RespondServiceError maps a service error onto its status code and message.
func RespondServiceError(w http.ResponseWriter, err error) {
	RespondError(w, statusForError(err), err.Error())
}

// statusForError: validation is the caller's fault, an empty search is a normal
// outcome, everything else is an upstream failure.
func statusForError(err error) int {
	var validationErr *domain.ValidationError
	var noResultsErr *domain.NoResultsError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &noResultsErr):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes the request body into the provided struct. An empty body
// decodes as an empty object. Returns false if decoding fails (error already sent to client).
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
