// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/liberry/internal/buildinfo"
	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/qbittorrent"
)

// Prober reports download client reachability.
type Prober interface {
	Probe(ctx context.Context) qbittorrent.ProbeResult
}

type HealthHandler struct {
	config *domain.Config
	prober Prober
}

// NewHealthHandler returns the health handler. config and prober may be nil for the
// bare liveness endpoints.
func NewHealthHandler(config *domain.Config, prober Prober) *HealthHandler {
	return &HealthHandler{config: config, prober: prober}
}

func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleHealth)
	r.Get("/readiness", h.HandleReady)
	r.Get("/liveness", h.HandleLiveness)
}

// HandleHealth responds with a basic health check
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady responds to readiness probes
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleLiveness responds to liveness probes
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

type statusResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	Config    map[string]any `json:"config"`
	Timestamp string         `json:"timestamp"`
}

// HandleStatus reports which integrations are configured. Secrets are only ever
// reported as set or missing.
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Status:    "ok",
		Version:   buildinfo.Version,
		Config:    map[string]any{},
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	if cfg := h.config; cfg != nil {
		resp.Config["hardcover"] = presence(cfg.HardcoverAPIKey != "", "API key set", "API key missing")

		switch {
		case cfg.PrivateTrackerEnabled():
			resp.Config["mam"] = "Cookie set"
		case cfg.MAMID != "":
			resp.Config["mam"] = "Disabled"
		default:
			resp.Config["mam"] = "Not configured"
		}

		backend := cfg.IndexerBackend
		if backend == "" {
			backend = "prowlarr"
		}
		resp.Config[backend] = cfg.IndexerURL
		resp.Config["indexerMode"] = cfg.IndexerMode
		resp.Config["qbittorrent"] = cfg.QbitURL
		resp.Config["calibre"] = cfg.CalibreIngestFolder
		resp.Config["calibreLibrary"] = presence(cfg.CalibreConfigured(), "Configured", "Not configured")
	}

	if h.prober != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		resp.Config["downloadClient"] = h.prober.Probe(ctx)
	}

	RespondJSON(w, http.StatusOK, resp)
}

func presence(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
