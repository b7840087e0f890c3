// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package hardcover searches the Hardcover book catalog over GraphQL.
package hardcover

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/autobrr/liberry/internal/buildinfo"
	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
	"github.com/autobrr/liberry/pkg/httphelpers"
)

const (
	DefaultURL = "https://api.hardcover.app/v1/graphql"

	defaultTimeout  = 10 * time.Second
	defaultCacheTTL = 10 * time.Minute

	searchQuery = `query SearchBooks($query: String!) {
  search(query: $query, query_type: "Book", per_page: 20) {
    results
  }
}`
)

type Config struct {
	URL        string
	APIKey     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	HTTPClient *http.Client
	// Limiter bounds outgoing requests. Defaults to one request per second with a burst of five.
	Limiter *rate.Limiter
	Metrics *metrics.Manager
}

type Client struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *ttlcache.Cache[uint64, []models.NormalizedBook]
	group      singleflight.Group
	metrics    *metrics.Manager
	log        zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(rate.Every(time.Second), 5)
	}

	return &Client{
		url:        cfg.URL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		limiter:    cfg.Limiter,
		cache:      ttlcache.New(ttlcache.Options[uint64, []models.NormalizedBook]{}.SetDefaultTTL(cfg.CacheTTL)),
		metrics:    cfg.Metrics,
		log:        log.Logger.With().Str("module", "hardcover").Logger(),
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data *struct {
		Search *struct {
			Results json.RawMessage `json:"results"`
		} `json:"search"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Search returns normalized books for query. A response without hits yields an empty slice.
// Identical concurrent queries share one upstream call and results are cached briefly.
// The shared call is detached from any single caller, so one caller giving up does not
// fail the others.
func (c *Client) Search(ctx context.Context, query string) ([]models.NormalizedBook, error) {
	query = strings.TrimSpace(query)
	key := cacheKey(query)

	if books, ok := c.cache.Get(key); ok {
		return books, nil
	}

	flight := c.group.DoChan(fmt.Sprintf("%x", key), func() (any, error) {
		books, err := c.search(context.WithoutCancel(ctx), query)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, books, ttlcache.DefaultTTL)
		return books, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]models.NormalizedBook), nil
	}
}

func (c *Client) search(ctx context.Context, query string) ([]models.NormalizedBook, error) {
	if !c.Configured() {
		return nil, &domain.UpstreamError{Service: "hardcover", Endpoint: c.url, Message: "Hardcover API key is not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.UpstreamError{Service: "hardcover", Endpoint: c.url, Err: err}
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     searchQuery,
		Variables: map[string]any{"query": query},
	})
	if err != nil {
		return nil, fmt.Errorf("encode hardcover query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build hardcover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	start := time.Now()
	defer c.metrics.ObserveUpstream("hardcover", start)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", c.url).Msg("Hardcover request failed")
		return nil, &domain.UpstreamError{Service: "hardcover", Endpoint: c.url, Err: err}
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := httphelpers.BodyExcerpt(resp)
		c.log.Error().Str("endpoint", c.url).Int("status", resp.StatusCode).Str("body", excerpt).Msg("Hardcover returned an error status")
		return nil, &domain.UpstreamError{
			Service:    "hardcover",
			Endpoint:   c.url,
			StatusCode: resp.StatusCode,
			Body:       excerpt,
			Message:    fmt.Sprintf("Hardcover API returned status %d", resp.StatusCode),
		}
	}

	var decoded graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &domain.UpstreamError{Service: "hardcover", Endpoint: c.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}

	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			messages = append(messages, e.Message)
		}
		c.log.Error().Str("endpoint", c.url).Strs("errors", messages).Msg("Hardcover GraphQL errors")
		return nil, &domain.UpstreamError{
			Service:    "hardcover",
			Endpoint:   c.url,
			StatusCode: resp.StatusCode,
			Body:       httphelpers.Truncate(strings.Join(messages, "; ")),
			Message:    "Hardcover API error",
		}
	}

	if decoded.Data == nil || decoded.Data.Search == nil {
		return []models.NormalizedBook{}, nil
	}

	shape, books := normalizeResults(decoded.Data.Search.Results)
	c.log.Debug().
		Str("query", query).
		Stringer("shape", shape).
		Int("books", len(books)).
		Dur("took", time.Since(start)).
		Msg("Hardcover search finished")

	return books, nil
}

func cacheKey(query string) uint64 {
	return xxhash.Sum64String(strings.ToLower(query))
}
