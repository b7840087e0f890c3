// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package calibre checks whether books already exist in a Calibre library through
// the content server search API.
package calibre

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/buildinfo"
	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/pkg/httphelpers"
)

type Config struct {
	URL        string
	LibraryID  string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// Client queries the Calibre content server.
type Client struct {
	baseURL    string
	libraryID  string
	username   string
	password   string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		libraryID:  strings.TrimSpace(cfg.LibraryID),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		log:        log.Logger.With().Str("module", "calibre").Logger(),
	}
}

type searchResponse struct {
	TotalNum int   `json:"total_num"`
	BookIDs  []int `json:"book_ids"`
}

// Count runs a Calibre search expression and returns the number of matching books.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("num", "1")
	if c.libraryID != "" {
		params.Set("library_id", c.libraryID)
	}

	endpoint := c.baseURL + "/ajax/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build calibre request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &domain.UpstreamError{Service: "calibre", Endpoint: c.baseURL + "/ajax/search", Err: err}
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		excerpt := httphelpers.BodyExcerpt(resp)
		c.log.Debug().Str("query", query).Int("status", resp.StatusCode).Str("body", excerpt).Msg("Calibre search failed")
		return 0, &domain.UpstreamError{Service: "calibre", Endpoint: c.baseURL + "/ajax/search", StatusCode: resp.StatusCode, Body: excerpt}
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return 0, &domain.UpstreamError{Service: "calibre", Endpoint: c.baseURL + "/ajax/search", Err: fmt.Errorf("decode response: %w", err)}
	}

	if decoded.TotalNum == 0 && len(decoded.BookIDs) > 0 {
		return len(decoded.BookIDs), nil
	}
	return decoded.TotalNum, nil
}

// quote escapes a value for use inside a double quoted Calibre search term.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// requestTimeout returns d or the default step timeout.
func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultStepTimeout
	}
	return d
}
