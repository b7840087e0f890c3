// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package mam searches MyAnonaMouse directly and downloads its torrent files.
package mam

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
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
	DefaultBaseURL = "https://www.myanonamouse.net"
	defaultTimeout = 10 * time.Second

	// ebooks main category
	mainCategoryEbooks = 14
)

type Config struct {
	BaseURL    string
	MAMID      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Metrics    *metrics.Manager
}

type Client struct {
	baseURL     string
	mamID       string
	httpClient  *http.Client
	fetchClient *http.Client
	metrics     *metrics.Manager
	log         zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		mamID:       strings.TrimSpace(cfg.MAMID),
		httpClient:  httpClient,
		fetchClient: torrentfetch.NewHTTPClient(httpClient),
		metrics:     cfg.Metrics,
		log:         log.Logger.With().Str("module", "mam").Logger(),
	}
}

// Configured reports whether a session cookie is available.
func (c *Client) Configured() bool {
	return c.mamID != ""
}

// Result is one torrent from a MyAnonaMouse search.
type Result struct {
	ID    string
	DL    string
	Title string
	// Size is the display size reported by the tracker, e.g. "2.1 MiB".
	Size    string
	Seeders *int
}

// Candidate converts the tracker result into the common release shape.
func (r Result) Candidate(baseURL string) models.CandidateRelease {
	candidate := models.CandidateRelease{
		Title:       r.Title,
		Seeders:     r.Seeders,
		Indexer:     "MyAnonaMouse",
		GUID:        r.ID,
		DownloadRef: strings.TrimRight(baseURL, "/") + "/tor/download.php/" + r.DL,
		InfoURL:     strings.TrimRight(baseURL, "/") + "/t/" + r.ID,
	}
	if n, err := strconv.ParseInt(r.Size, 10, 64); err == nil {
		candidate.SizeBytes = n
	} else {
		candidate.DisplaySize = r.Size
	}
	return candidate
}

type searchRequest struct {
	Tor searchTor `json:"tor"`
}

type searchTor struct {
	Text        string   `json:"text"`
	SrchIn      []string `json:"srchIn"`
	SearchType  string   `json:"searchType"`
	SearchIn    string   `json:"searchIn"`
	Cat         []string `json:"cat"`
	MainCat     []int    `json:"main_cat"`
	SortType    string   `json:"sortType"`
	StartNumber string   `json:"startNumber"`
}

type searchResponse struct {
	Data  []rawResult `json:"data"`
	Error string      `json:"error"`
}

type rawResult struct {
	ID      json.RawMessage `json:"id"`
	DL      string          `json:"dl"`
	Title   string          `json:"title"`
	Size    json.RawMessage `json:"size"`
	Seeders json.RawMessage `json:"seeders"`
}

// Search runs a title search restricted to ebooks.
func (c *Client) Search(ctx context.Context, title string) ([]Result, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("mam is not configured")
	}

	payload := searchRequest{Tor: searchTor{
		Text:        title,
		SrchIn:      []string{"title"},
		SearchType:  "all",
		SearchIn:    "torrents",
		Cat:         []string{"0"},
		MainCat:     []int{mainCategoryEbooks},
		SortType:    "default",
		StartNumber: "0",
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode mam search: %w", err)
	}

	endpoint := c.baseURL + "/tor/js/loadSearchJSONbasic.php"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build mam search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cookie", c.cookie())
	req.Header.Set("User-Agent", buildinfo.UserAgent)

	defer c.metrics.ObserveUpstream("mam", time.Now())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "mam", Endpoint: endpoint, Err: err}
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		excerpt := httphelpers.BodyExcerpt(resp)
		c.log.Error().Str("endpoint", endpoint).Int("status", resp.StatusCode).Str("body", excerpt).Msg("MAM search failed")
		return nil, &domain.UpstreamError{Service: "mam", Endpoint: endpoint, StatusCode: resp.StatusCode, Body: excerpt}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &domain.UpstreamError{Service: "mam", Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode mam response: %w", err)}
	}

	results := make([]Result, 0, len(decoded.Data))
	for _, raw := range decoded.Data {
		result := Result{
			ID:      rawString(raw.ID),
			DL:      strings.TrimSpace(raw.DL),
			Title:   strings.TrimSpace(raw.Title),
			Size:    rawString(raw.Size),
			Seeders: rawInt(raw.Seeders),
		}
		if result.DL == "" || result.Title == "" {
			continue
		}
		results = append(results, result)
	}

	if len(results) == 0 && decoded.Error != "" {
		c.log.Debug().Str("title", title).Str("message", decoded.Error).Msg("MAM returned no results")
	}

	return results, nil
}

// Pick returns the first result whose title contains the query characters in order,
// falling back to the tracker's first result.
func Pick(query string, results []Result) (Result, bool) {
	if len(results) == 0 {
		return Result{}, false
	}
	for _, r := range results {
		if fuzzy.MatchNormalizedFold(query, r.Title) {
			return r, true
		}
	}
	return results[0], true
}

// FetchTorrent downloads a tracker torrent link with the session cookie.
func (c *Client) FetchTorrent(ctx context.Context, downloadURL string) ([]byte, error) {
	defer c.metrics.ObserveUpstream("mam", time.Now())

	result, err := torrentfetch.Fetch(ctx, c.fetchClient, torrentfetch.Request{
		URL:     downloadURL,
		Headers: map[string]string{"Cookie": c.cookie()},
	})
	if err != nil {
		var downloadErr *torrentfetch.DownloadError
		if errors.As(err, &downloadErr) && downloadErr.IsAuth() {
			return nil, &domain.UpstreamError{
				Service:    "mam",
				Endpoint:   downloadURL,
				StatusCode: downloadErr.StatusCode,
				Message:    "MAM rejected the session cookie, refresh mam_id",
				Err:        err,
			}
		}
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("mam download from %s returned no torrent file", downloadURL)
	}
	return result.Data, nil
}

// BaseURL returns the tracker base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) cookie() string {
	return "mam_id=" + c.mamID
}

func rawString(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawInt(data json.RawMessage) *int {
	s := rawString(data)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
