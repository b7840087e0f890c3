// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
	"github.com/autobrr/liberry/internal/services/mam"
	"github.com/autobrr/liberry/internal/services/releases"
)

// TrackerSearcher searches the private tracker by title.
type TrackerSearcher interface {
	Search(ctx context.Context, title string) ([]mam.Result, error)
	BaseURL() string
}

// IndexerSearcher searches the indexer aggregator.
type IndexerSearcher interface {
	Search(ctx context.Context, query string) ([]models.RawRelease, error)
}

type OrchestratorOptions struct {
	// Tracker is nil when the private tracker stage is disabled.
	Tracker        TrackerSearcher
	TrackerBackend Backend
	Indexer        IndexerSearcher
	IndexerBackend Backend
	Engine         *releases.Engine
	Dispatcher     *Dispatcher
	Metrics        *metrics.Manager
}

// Orchestrator runs the acquisition stages for one download request: the private
// tracker when configured, then the indexer aggregator. Stages run sequentially and
// neither is retried.
type Orchestrator struct {
	opts    OrchestratorOptions
	metrics *metrics.Manager
	log     zerolog.Logger
}

func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	return &Orchestrator{
		opts:    opts,
		metrics: opts.Metrics,
		log:     log.Logger.With().Str("module", "acquisition").Logger(),
	}
}

// Acquire runs the fallback pipeline. The returned error is a ValidationError for bad
// input, a NoResultsError when the indexer had nothing usable, or the indexer failure.
// Dispatch failures are described by the result alone.
func (o *Orchestrator) Acquire(ctx context.Context, q models.BookQuery) (models.AcquisitionResult, error) {
	requestID := uuid.NewString()

	if strings.TrimSpace(q.Title) == "" {
		return models.AcquisitionResult{RequestID: requestID}, domain.NewValidationError("Book title is required")
	}

	logger := o.log.With().Str("request_id", requestID).Str("title", q.Title).Logger()
	logger.Info().
		Str("author", q.Author).
		Str("isbn", q.ISBN).
		Str("year", q.Year).
		Msg("New download request")

	if o.opts.Tracker != nil && o.opts.TrackerBackend != nil {
		if result, ok := o.privateTrackerStage(ctx, q, logger); ok {
			result.RequestID = requestID
			return result, nil
		}
		logger.Info().Msg("Private tracker search failed or returned nothing, falling back to indexer")
	}

	result, err := o.indexerStage(ctx, q, logger)
	result.RequestID = requestID
	return result, err
}

func (o *Orchestrator) privateTrackerStage(ctx context.Context, q models.BookQuery, logger zerolog.Logger) (models.AcquisitionResult, bool) {
	sourceName := o.opts.TrackerBackend.Name()

	results, err := o.opts.Tracker.Search(ctx, q.Title)
	if err != nil {
		logger.Warn().Err(err).Msg("Private tracker search failed")
		o.metrics.ObserveAcquisition(string(models.SourcePrivateTracker), "search_error")
		return models.AcquisitionResult{}, false
	}

	picked, found := mam.Pick(q.Title, results)
	if !found {
		logger.Info().Msg("No results from private tracker")
		o.metrics.ObserveAcquisition(string(models.SourcePrivateTracker), "no_results")
		return models.AcquisitionResult{}, false
	}

	candidate := picked.Candidate(o.opts.Tracker.BaseURL())
	logger.Info().Int("results", len(results)).Str("selected", candidate.Title).Msg("Private tracker result selected")

	ok, reason := o.opts.Dispatcher.Acquire(ctx, candidate, o.opts.TrackerBackend)
	if !ok {
		logger.Warn().Str("reason", reason).Msg("Private tracker acquisition failed")
		o.metrics.ObserveAcquisition(string(models.SourcePrivateTracker), "failed")
		return models.AcquisitionResult{}, false
	}

	o.metrics.ObserveAcquisition(string(models.SourcePrivateTracker), "success")
	return models.AcquisitionResult{
		Success:    true,
		Source:     models.SourcePrivateTracker,
		SourceName: sourceName,
		Selected:   &candidate,
	}, true
}

func (o *Orchestrator) indexerStage(ctx context.Context, q models.BookQuery, logger zerolog.Logger) (models.AcquisitionResult, error) {
	sourceName := o.opts.IndexerBackend.Name()
	source := string(models.SourceGenericIndexer)

	query := q.IndexerQuery()
	raw, err := o.opts.Indexer.Search(ctx, query)
	if err != nil {
		logger.Error().Err(err).Str("query", query).Msg("Indexer search failed")
		o.metrics.ObserveAcquisition(source, "search_error")
		return models.AcquisitionResult{SourceName: sourceName}, err
	}

	selection := o.opts.Engine.SelectBest(raw)
	if selection.Candidate == nil {
		logger.Info().
			Int("raw", selection.RawCount).
			Stringer("outcome", selection.Outcome).
			Msg("No usable release from indexer")
		o.metrics.ObserveAcquisition(source, selection.Outcome.String())
		return models.AcquisitionResult{
			SourceName:  sourceName,
			ErrorReason: selection.Outcome.Reason(),
		}, &domain.NoResultsError{Reason: selection.Outcome.Reason()}
	}

	best := *selection.Candidate
	logger.Info().
		Str("selected", best.Title).
		Str("size", best.HumanSize()).
		Int("seeders", best.SeedCount()).
		Str("indexer", best.Indexer).
		Int("candidates", len(selection.Ranked)).
		Msg("Indexer release selected")

	ok, reason := o.opts.Dispatcher.Acquire(ctx, best, o.opts.IndexerBackend)
	if !ok {
		o.metrics.ObserveAcquisition(source, "failed")
		return models.AcquisitionResult{
			SourceName:  sourceName,
			Selected:    &best,
			ErrorReason: reason,
		}, nil
	}

	o.metrics.ObserveAcquisition(source, "success")
	return models.AcquisitionResult{
		Success:    true,
		Source:     models.SourceGenericIndexer,
		SourceName: sourceName,
		Selected:   &best,
	}, nil
}
