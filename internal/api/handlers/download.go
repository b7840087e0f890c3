// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/models"
)

// Acquirer runs the acquisition pipeline for one book.
type Acquirer interface {
	Acquire(ctx context.Context, q models.BookQuery) (models.AcquisitionResult, error)
}

// AcquireTimeout bounds one acquisition so the response is written before the
// server's write deadline.
const AcquireTimeout = 4 * time.Minute

type DownloadHandler struct {
	acquirer Acquirer
	timeout  time.Duration
}

func NewDownloadHandler(acquirer Acquirer) *DownloadHandler {
	return &DownloadHandler{acquirer: acquirer, timeout: AcquireTimeout}
}

type downloadDetails struct {
	Title   string `json:"title"`
	Size    string `json:"size"`
	Indexer string `json:"indexer,omitempty"`
	Seeders *int   `json:"seeders"`
}

type downloadResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	Source    string           `json:"source,omitempty"`
	Details   *downloadDetails `json:"details,omitempty"`
	Error     string           `json:"error,omitempty"`
	RequestID string           `json:"requestId,omitempty"`
}

// Download handles POST /api/download
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req models.BookQuery
	if !DecodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		RespondError(w, http.StatusBadRequest, "Book title is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.acquirer.Acquire(ctx, req)
	if err != nil {
		if domain.IsNoResults(err) {
			RespondJSON(w, statusForError(err), downloadResponse{
				Error:     err.Error(),
				RequestID: result.RequestID,
			})
			return
		}
		RespondServiceError(w, err)
		return
	}

	resp := downloadResponse{
		Success:   result.Success,
		RequestID: result.RequestID,
	}

	if !result.Success {
		resp.Error = result.ErrorReason
		RespondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Source = result.SourceName
	if result.Source == models.SourcePrivateTracker {
		resp.Message = "Download started via MAM"
	} else {
		resp.Message = "Download started successfully"
	}

	if c := result.Selected; c != nil {
		resp.Details = &downloadDetails{
			Title:   c.Title,
			Size:    c.HumanSize(),
			Indexer: c.Indexer,
			Seeders: c.Seeders,
		}
	}

	RespondJSON(w, http.StatusOK, resp)
}
