// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexer searches an indexer aggregator (Prowlarr or Jackett) for book releases.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/buildinfo"
	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
	"github.com/autobrr/liberry/internal/services/torrentfetch"
	"github.com/autobrr/liberry/pkg/httphelpers"
)

const (
	defaultTimeout = 30 * time.Second
	searchLimit    = 50
)

// Config holds the options for constructing a Client.
type Config struct {
	Backend    Backend
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Manager
}

// Client wraps the indexer aggregator API for the configured backend.
type Client struct {
	backend     Backend
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	fetchClient *http.Client
	metrics     *metrics.Manager
	log         zerolog.Logger
}

// NewClient creates a new indexer client for the desired backend
func NewClient(cfg Config) *Client {
	if cfg.Backend == "" {
		cfg.Backend = BackendProwlarr
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		backend:     cfg.Backend,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		httpClient:  httpClient,
		fetchClient: torrentfetch.NewHTTPClient(httpClient),
		metrics:     cfg.Metrics,
		log:         log.Logger.With().Str("module", "indexer").Str("backend", string(cfg.Backend)).Logger(),
	}
}

// Backend returns the configured backend kind.
func (c *Client) Backend() Backend {
	return c.backend
}

// Search queries every configured indexer for book releases matching query.
func (c *Client) Search(ctx context.Context, query string) ([]models.RawRelease, error) {
	defer c.metrics.ObserveUpstream(string(c.backend), time.Now())

	switch c.backend {
	case BackendJackett:
		return c.searchJackett(ctx, query)
	default:
		return c.searchProwlarr(ctx, query)
	}
}

func (c *Client) searchProwlarr(ctx context.Context, query string) ([]models.RawRelease, error) {
	endpoint, err := url.JoinPath(c.baseURL, "api", "v1", "search")
	if err != nil {
		return nil, fmt.Errorf("failed to build prowlarr endpoint: %w", err)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "book")
	params.Set("limit", strconv.Itoa(searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create prowlarr request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.upstream(endpoint, 0, "", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, c.upstream(endpoint, resp.StatusCode, httphelpers.BodyExcerpt(resp), nil)
	}

	var results []prowlarrSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, c.upstream(endpoint, resp.StatusCode, "", fmt.Errorf("decode search response: %w", err))
	}

	raw := make([]models.RawRelease, 0, len(results))
	for _, r := range results {
		raw = append(raw, r.toRaw())
	}

	c.log.Debug().Str("query", query).Int("results", len(raw)).Msg("Prowlarr search finished")

	return raw, nil
}

func (c *Client) searchJackett(ctx context.Context, query string) ([]models.RawRelease, error) {
	endpoint, err := url.JoinPath(c.baseURL, "api", "v2.0", "indexers", "all", "results", "torznab", "api")
	if err != nil {
		return nil, fmt.Errorf("failed to build jackett endpoint: %w", err)
	}

	params := url.Values{}
	params.Set("t", "search")
	params.Set("q", query)
	params.Set("cat", fmt.Sprintf("%d,%d", CategoryBooks, CategoryBooksEbook))
	params.Set("limit", strconv.Itoa(searchLimit))
	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create jackett request: %w", err)
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.upstream(endpoint, 0, "", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, c.upstream(endpoint, resp.StatusCode, httphelpers.BodyExcerpt(resp), nil)
	}

	var feed torznabFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, c.upstream(endpoint, resp.StatusCode, "", fmt.Errorf("decode torznab response: %w", err))
	}

	raw := make([]models.RawRelease, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		raw = append(raw, item.toRaw())
	}

	c.log.Debug().Str("query", query).Int("results", len(raw)).Msg("Jackett search finished")

	return raw, nil
}

// Grab asks Prowlarr to send a search result to its configured download client.
func (c *Client) Grab(ctx context.Context, guid, indexerID string) error {
	if c.backend != BackendProwlarr {
		return fmt.Errorf("grab is not supported by backend %s", c.backend)
	}

	id, err := strconv.Atoi(strings.TrimSpace(indexerID))
	if err != nil || id <= 0 {
		return fmt.Errorf("grab requires a numeric indexer id, got %q", indexerID)
	}
	if strings.TrimSpace(guid) == "" {
		return fmt.Errorf("grab requires a release guid")
	}

	endpoint, err := url.JoinPath(c.baseURL, "api", "v1", "search")
	if err != nil {
		return fmt.Errorf("failed to build prowlarr endpoint: %w", err)
	}

	body, err := json.Marshal(prowlarrGrabRequest{GUID: guid, IndexerID: id})
	if err != nil {
		return fmt.Errorf("encode grab request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create grab request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	defer c.metrics.ObserveUpstream(string(c.backend), time.Now())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.upstream(endpoint, 0, "", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return c.upstream(endpoint, resp.StatusCode, httphelpers.BodyExcerpt(resp), nil)
	}

	return nil
}

// Download fetches the torrent behind an indexer download link. Relative links are
// resolved against the aggregator and the API key is appended when missing.
func (c *Client) Download(ctx context.Context, downloadURL string) (torrentfetch.Result, error) {
	if !strings.HasPrefix(downloadURL, "http://") && !strings.HasPrefix(downloadURL, "https://") {
		downloadURL = c.baseURL + "/" + strings.TrimLeft(downloadURL, "/")
	}

	req := torrentfetch.Request{URL: downloadURL}
	if c.apiKey != "" && !strings.Contains(downloadURL, "apikey=") {
		req.Query = map[string]string{"apikey": c.apiKey}
	}

	defer c.metrics.ObserveUpstream(string(c.backend), time.Now())
	return torrentfetch.Fetch(ctx, c.fetchClient, req)
}

func (c *Client) upstream(endpoint string, status int, body string, err error) error {
	upstreamErr := &domain.UpstreamError{
		Service:    string(c.backend),
		Endpoint:   endpoint,
		StatusCode: status,
		Body:       body,
		Err:        err,
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		upstreamErr.Message = fmt.Sprintf("%s request failed with status %d (unauthorized)", c.backend, status)
	case status == http.StatusNotFound:
		upstreamErr.Message = fmt.Sprintf("%s endpoint not found: %s", c.backend, endpoint)
	}

	c.log.Error().
		Err(err).
		Str("endpoint", endpoint).
		Int("status", status).
		Str("body", body).
		Msg("Indexer request failed")

	return upstreamErr
}
