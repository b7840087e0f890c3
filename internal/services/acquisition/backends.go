// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/autobrr/liberry/internal/models"
	"github.com/autobrr/liberry/internal/services/indexer"
	"github.com/autobrr/liberry/internal/services/torrentfetch"
)

var errNoDownloadLink = errors.New("release has no download link")

// Payload is what gets submitted to the download client: torrent bytes or a URL.
type Payload struct {
	File     []byte
	FileName string
	URL      string
}

// Backend turns a candidate release into something the download client can add.
type Backend interface {
	Name() string
	Resolve(ctx context.Context, c models.CandidateRelease) (Payload, error)
}

// Grabber is a backend that hands the release to its own download client instead
// of returning a payload.
type Grabber interface {
	Backend
	Grab(ctx context.Context, c models.CandidateRelease) error
}

// TrackerFetcher downloads private tracker torrent links with the tracker session.
type TrackerFetcher interface {
	FetchTorrent(ctx context.Context, downloadURL string) ([]byte, error)
}

// IndexerClient is the subset of the indexer client used for acquisition.
type IndexerClient interface {
	Backend() indexer.Backend
	Download(ctx context.Context, downloadURL string) (torrentfetch.Result, error)
	Grab(ctx context.Context, guid, indexerID string) error
}

// PrivateTrackerBackend fetches torrent files from the private tracker.
type PrivateTrackerBackend struct {
	fetcher TrackerFetcher
}

func NewPrivateTrackerBackend(fetcher TrackerFetcher) *PrivateTrackerBackend {
	return &PrivateTrackerBackend{fetcher: fetcher}
}

func (b *PrivateTrackerBackend) Name() string {
	return "mam"
}

func (b *PrivateTrackerBackend) Resolve(ctx context.Context, c models.CandidateRelease) (Payload, error) {
	ref := strings.TrimSpace(c.DownloadRef)
	switch {
	case ref == "":
		return Payload{}, errNoDownloadLink
	case isMagnet(ref):
		return Payload{URL: ref}, nil
	}

	data, err := b.fetcher.FetchTorrent(ctx, ref)
	if err != nil {
		return Payload{}, fmt.Errorf("fetch tracker torrent: %w", err)
	}
	return Payload{File: data, FileName: torrentFileName(c)}, nil
}

// IndexerBackend downloads release links through the indexer aggregator.
type IndexerBackend struct {
	client IndexerClient
}

// GrabBackend asks the indexer aggregator to send the release to its own download client.
type GrabBackend struct {
	*IndexerBackend
}

// NewIndexerBackend returns the backend for the configured acquisition mode.
func NewIndexerBackend(client IndexerClient, mode indexer.Mode) Backend {
	b := &IndexerBackend{client: client}
	if mode == indexer.ModeGrab {
		return &GrabBackend{IndexerBackend: b}
	}
	return b
}

func (b *IndexerBackend) Name() string {
	return string(b.client.Backend())
}

func (b *IndexerBackend) Resolve(ctx context.Context, c models.CandidateRelease) (Payload, error) {
	ref := strings.TrimSpace(c.DownloadRef)
	switch {
	case ref == "":
		return Payload{}, errNoDownloadLink
	case isMagnet(ref):
		return Payload{URL: ref}, nil
	}

	result, err := b.client.Download(ctx, ref)
	if err != nil {
		return Payload{}, fmt.Errorf("fetch indexer torrent: %w", err)
	}
	if result.MagnetURI != "" {
		return Payload{URL: result.MagnetURI}, nil
	}
	return Payload{File: result.Data, FileName: torrentFileName(c)}, nil
}

func (b *GrabBackend) Grab(ctx context.Context, c models.CandidateRelease) error {
	return b.client.Grab(ctx, c.GUID, c.IndexerID)
}

func isMagnet(ref string) bool {
	return strings.HasPrefix(strings.ToLower(ref), "magnet:")
}

// torrentFileName synthesizes "<id>.torrent". GUIDs that are URLs are hashed.
func torrentFileName(c models.CandidateRelease) string {
	id := strings.TrimSpace(c.GUID)
	if id == "" || strings.ContainsAny(id, `/\:?&= `) {
		id = fmt.Sprintf("%016x", xxhash.Sum64String(c.GUID+"|"+c.Title))
	}
	return id + ".torrent"
}
