// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package acquisition hands selected releases to the download client and runs the
// private tracker to indexer fallback.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
	"github.com/autobrr/liberry/internal/qbittorrent"
)

const (
	ReasonNoDownloadLink = "No download link available"
	ReasonAddFailed      = "Failed to add torrent to qBittorrent"
)

// maxAddAttempts bounds the session-expired retry to a single re-login.
const maxAddAttempts = 2

// DownloadClient is the download client surface the dispatcher drives.
type DownloadClient interface {
	EnsureSession(ctx context.Context) error
	AddTorrent(ctx context.Context, opts qbittorrent.AddOptions) error
	InvalidateSession()
}

type DispatcherOptions struct {
	SavePath string
	Category string
	Tags     []string
	Metrics  *metrics.Manager
}

// Dispatcher submits candidates to the download client.
type Dispatcher struct {
	client  DownloadClient
	opts    DispatcherOptions
	metrics *metrics.Manager
	log     zerolog.Logger
}

func NewDispatcher(client DownloadClient, opts DispatcherOptions) *Dispatcher {
	return &Dispatcher{
		client:  client,
		opts:    opts,
		metrics: opts.Metrics,
		log:     log.Logger.With().Str("module", "dispatcher").Logger(),
	}
}

// Acquire resolves the candidate through backend and adds it to the download client.
// It never returns an error: failures come back as false with a user-facing reason.
// A session rejected by the add call is dropped and the whole sequence runs once more.
func (d *Dispatcher) Acquire(ctx context.Context, candidate models.CandidateRelease, backend Backend) (ok bool, reason string) {
	logger := d.log.With().Str("backend", backend.Name()).Str("release", candidate.Title).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Acquisition panicked")
			ok, reason = false, ReasonAddFailed
		}
	}()

	if grabber, isGrabber := backend.(Grabber); isGrabber {
		if err := grabber.Grab(ctx, candidate); err != nil {
			logger.Error().Err(err).Str("guid", candidate.GUID).Msg("Grab failed")
			return false, fmt.Sprintf("Failed to grab release via %s: %v", backend.Name(), err)
		}
		logger.Info().Str("guid", candidate.GUID).Msg("Release grabbed by indexer")
		return true, ""
	}

	if strings.TrimSpace(candidate.DownloadRef) == "" {
		logger.Warn().Msg("Release has no download link")
		return false, ReasonNoDownloadLink
	}

	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			if attempt > 1 {
				d.metrics.ObserveAuthRetry()
				logger.Warn().Msg("qBittorrent session expired, logging in again")
			}

			if err := d.client.EnsureSession(ctx); err != nil {
				reason = err.Error()
				return err
			}

			payload, err := backend.Resolve(ctx, candidate)
			if err != nil {
				reason = resolveReason(err)
				return err
			}

			if err := d.client.AddTorrent(ctx, d.addOptions(payload)); err != nil {
				reason = ReasonAddFailed
				return err
			}
			return nil
		},
		retry.Attempts(maxAddAttempts),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrAuthExpired)
		}),
		retry.OnRetry(func(n uint, err error) {
			d.client.InvalidateSession()
		}),
	)
	if err != nil {
		if reason == "" {
			reason = ReasonAddFailed
		}
		logger.Error().Err(err).Int("attempts", attempt).Msg("Acquisition failed")
		return false, reason
	}

	logger.Info().Int("attempts", attempt).Str("indexer", candidate.Indexer).Msg("Torrent added to qBittorrent")
	return true, ""
}

func (d *Dispatcher) addOptions(p Payload) qbittorrent.AddOptions {
	opts := qbittorrent.AddOptions{
		SavePath: d.opts.SavePath,
		Category: d.opts.Category,
		Tags:     d.opts.Tags,
	}
	if len(p.File) > 0 {
		opts.File = p.File
		opts.FileName = p.FileName
	} else if p.URL != "" {
		opts.URLs = []string{p.URL}
	}
	return opts
}

func resolveReason(err error) string {
	if errors.Is(err, errNoDownloadLink) {
		return ReasonNoDownloadLink
	}
	return fmt.Sprintf("Failed to download torrent file: %v", err)
}
