// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type MetricsServer struct {
	manager        *Manager
	server         *http.Server
	basicAuthUsers map[string]string
}

// NewMetricsServer serves the manager's registry on host:port. basicAuthUsers is a
// comma separated list of user:password pairs; passwords may be bcrypt hashes.
func NewMetricsServer(manager *Manager, host string, port int, basicAuthUsers string) *MetricsServer {
	users := parseBasicAuthUsers(basicAuthUsers)

	r := chi.NewRouter()

	handler := promhttp.HandlerFor(manager.GetRegistry(), promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})

	if len(users) > 0 {
		r.With(BasicAuth("metrics", users)).Handle("/metrics", handler)
	} else {
		r.Handle("/metrics", handler)
	}

	return &MetricsServer{
		manager:        manager,
		basicAuthUsers: users,
		server: &http.Server{
			Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
			Handler:           r,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}
}

func parseBasicAuthUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		user, pass, ok := strings.Cut(entry, ":")
		if !ok || user == "" {
			log.Warn().Msg("Skipping invalid metrics basic auth entry, expected user:password")
			continue
		}
		users[user] = pass
	}
	return users
}

func (s *MetricsServer) ListenAndServe() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *MetricsServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// BasicAuth guards a handler with HTTP basic auth. Stored passwords that look like
// bcrypt hashes are verified with bcrypt, anything else is compared in constant time.
func BasicAuth(realm string, users map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if ok {
				if stored, found := users[user]; found && passwordMatches(stored, pass) {
					next.ServeHTTP(w, r)
					return
				}
			}

			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q`, realm))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
