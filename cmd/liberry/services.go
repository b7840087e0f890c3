// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/qbittorrent"
	"github.com/autobrr/liberry/internal/services/acquisition"
	"github.com/autobrr/liberry/internal/services/calibre"
	"github.com/autobrr/liberry/internal/services/hardcover"
	"github.com/autobrr/liberry/internal/services/indexer"
	"github.com/autobrr/liberry/internal/services/mam"
	"github.com/autobrr/liberry/internal/services/releases"
)

// services is every component the server and operator commands share.
type services struct {
	hardcover    *hardcover.Client
	presence     *calibre.Checker
	engine       *releases.Engine
	orchestrator *acquisition.Orchestrator
	prober       *qbittorrent.Prober
}

func buildServices(cfg *domain.Config, metricsManager *metrics.Manager) (*services, error) {
	hardcoverClient := hardcover.NewClient(hardcover.Config{
		URL:     cfg.HardcoverURL,
		APIKey:  cfg.HardcoverAPIKey,
		Metrics: metricsManager,
	})

	var librarySearcher calibre.Searcher
	if cfg.CalibreConfigured() {
		librarySearcher = calibre.NewClient(calibre.Config{
			URL:       cfg.CalibreURL,
			LibraryID: cfg.CalibreLibraryID,
			Username:  cfg.CalibreUsername,
			Password:  cfg.CalibrePassword,
		})
	}
	presence := calibre.NewChecker(librarySearcher, calibre.CheckerOptions{
		StepTimeout: seconds(cfg.CalibreTimeout),
		Metrics:     metricsManager,
	})

	engine, err := releases.NewEngine(cfg.ReleaseFilter)
	if err != nil {
		return nil, err
	}

	qbitConfig := qbittorrent.Config{
		Host:          cfg.QbitURL,
		Username:      cfg.QbitUsername,
		Password:      cfg.QbitPassword,
		TLSSkipVerify: cfg.QbitTLSSkipVerify,
		Metrics:       metricsManager,
	}
	qbitClient := qbittorrent.NewClient(qbitConfig, qbittorrent.NewSessionHolder())

	dispatcher := acquisition.NewDispatcher(qbitClient, acquisition.DispatcherOptions{
		SavePath: cfg.CalibreIngestFolder,
		Category: cfg.QbitCategory,
		Tags:     cfg.QbitTags,
		Metrics:  metricsManager,
	})

	indexerClient := indexer.NewClient(indexer.Config{
		Backend: indexer.ParseBackend(cfg.IndexerBackend),
		BaseURL: cfg.IndexerURL,
		APIKey:  cfg.IndexerAPIKey,
		Timeout: seconds(cfg.IndexerTimeout),
		Metrics: metricsManager,
	})

	mode := indexer.ParseMode(cfg.IndexerMode)
	if mode == indexer.ModeGrab && indexerClient.Backend() != indexer.BackendProwlarr {
		log.Warn().Str("backend", string(indexerClient.Backend())).Msg("grab mode requires prowlarr, falling back to fetch")
		mode = indexer.ModeFetch
	}

	opts := acquisition.OrchestratorOptions{
		Indexer:        indexerClient,
		IndexerBackend: acquisition.NewIndexerBackend(indexerClient, mode),
		Engine:         engine,
		Dispatcher:     dispatcher,
		Metrics:        metricsManager,
	}

	if cfg.PrivateTrackerEnabled() {
		tracker := mam.NewClient(mam.Config{
			BaseURL: cfg.MAMURL,
			MAMID:   cfg.MAMID,
			Metrics: metricsManager,
		})
		opts.Tracker = tracker
		opts.TrackerBackend = acquisition.NewPrivateTrackerBackend(tracker)
	}

	log.Info().
		Bool("privateTracker", cfg.PrivateTrackerEnabled()).
		Str("indexerBackend", string(indexerClient.Backend())).
		Str("indexerMode", string(mode)).
		Bool("calibre", cfg.CalibreConfigured()).
		Msg("acquisition pipeline configured")

	return &services{
		hardcover:    hardcoverClient,
		presence:     presence,
		engine:       engine,
		orchestrator: acquisition.NewOrchestrator(opts),
		prober:       qbittorrent.NewProber(qbitConfig),
	}, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
