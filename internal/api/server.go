// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/api/handlers"
	"github.com/autobrr/liberry/internal/api/middleware"
	"github.com/autobrr/liberry/internal/config"
	"github.com/autobrr/liberry/internal/metrics"
)

type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.AppConfig
	version string

	bookSearcher handlers.BookSearcher
	acquirer     handlers.Acquirer
	presence     handlers.PresenceChecker
	prober       handlers.Prober
	metrics      *metrics.Manager
}

type Dependencies struct {
	Config       *config.AppConfig
	Version      string
	BookSearcher handlers.BookSearcher
	Acquirer     handlers.Acquirer
	Presence     handlers.PresenceChecker
	Prober       handlers.Prober
	Metrics      *metrics.Manager
}

func NewServer(deps *Dependencies) *Server {
	s := Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			// must outlast handlers.AcquireTimeout
			WriteTimeout: handlers.AcquireTimeout + 30*time.Second,
			IdleTimeout:  180 * time.Second,
		},
		logger:       log.Logger.With().Str("module", "api").Logger(),
		config:       deps.Config,
		version:      deps.Version,
		bookSearcher: deps.BookSearcher,
		acquirer:     deps.Acquirer,
		presence:     deps.Presence,
		prober:       deps.Prober,
		metrics:      deps.Metrics,
	}

	return &s
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := net.JoinHostPort(s.config.Config.Host, fmt.Sprint(s.config.Config.Port))

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msgf("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}
	clickableURL := fmt.Sprintf("http://%s%s", host, s.config.Config.BaseURL)

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Str("base_url", s.config.Config.BaseURL).
		Msgf("Starting API server - Open: %s", clickableURL)

	handler, err := s.Handler()
	if err != nil {
		listener.Close()
		return fmt.Errorf("build API router: %w", err)
	}

	s.server.Handler = handler

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) Handler() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID) // Must be before logger to capture request ID
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// HTTP compression - handles gzip, brotli, zstd, deflate automatically
	compressor, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(1024),                        // Only compress responses >= 1KB
		httpcompression.GzipCompressionLevel(2),              // Use gzip level 2 (fast) instead of 6 (default)
		httpcompression.Prefer(httpcompression.PreferServer), // Let server choose best compression
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	// The web frontend may be served from another origin. No cookies, so no credentials.
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"HEAD", "OPTIONS", "GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
		Debug:          false,
	})
	r.Use(corsMiddleware.Handler)

	// Create handlers
	healthHandler := handlers.NewHealthHandler(s.config.Config, s.prober)
	searchHandler := handlers.NewSearchHandler(s.bookSearcher, s.metrics)
	downloadHandler := handlers.NewDownloadHandler(s.acquirer)
	libraryHandler := handlers.NewLibraryHandler(s.presence)

	// API routes
	apiRouter := chi.NewRouter()

	apiRouter.Group(func(r chi.Router) {
		r.Use(middleware.Logger(s.logger))

		r.Get("/health", healthHandler.HandleStatus)
		r.Post("/search", searchHandler.Search)
		r.Post("/download", downloadHandler.Download)
		r.Post("/check-calibre", libraryHandler.CheckCalibre)
	})

	baseURL := s.config.Config.BaseURL
	if baseURL == "" {
		baseURL = "/"
	}

	r.Get("/health", healthHandler.HandleHealth)
	r.Route("/healthz", healthHandler.Routes)

	r.Mount(baseURL+"api", apiRouter)

	if baseURL != "/" {
		r.Get("/", func(w http.ResponseWriter, request *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Must use baseUrl: " + s.config.Config.BaseURL + " instead of /"))
		})
	}

	return r, nil
}
