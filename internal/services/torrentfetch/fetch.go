// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentfetch downloads torrent files from indexers and trackers.
// Payloads are treated as opaque bytes and never parsed.
package torrentfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/autobrr/liberry/internal/buildinfo"
	"github.com/autobrr/liberry/pkg/httphelpers"
)

const maxTorrentDownloadBytes int64 = 16 << 20 // 16 MiB safety limit for torrent blobs

// DownloadError represents an HTTP error during torrent download.
type DownloadError struct {
	StatusCode int
	URL        string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("torrent download from %s returned status %d", e.URL, e.StatusCode)
}

func (e *DownloadError) Is(target error) bool {
	_, ok := target.(*DownloadError)
	return ok
}

// IsAuth returns true when the source rejected our credentials.
func (e *DownloadError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Result is either raw torrent bytes or a magnet link the source redirected to.
type Result struct {
	Data      []byte
	MagnetURI string
}

// Request describes one torrent fetch.
type Request struct {
	URL     string
	Headers map[string]string
	Query   map[string]string
}

// NewHTTPClient returns a client that stops at redirects so magnet redirects can be captured.
func NewHTTPClient(base *http.Client) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after 10 redirects")
		}
		if req.URL.Scheme == "magnet" {
			return http.ErrUseLastResponse
		}
		return nil
	}
	return c
}

// Fetch downloads a torrent with a browser User-Agent. Some trackers refuse
// non-browser clients, so the tool User-Agent is never sent here.
func Fetch(ctx context.Context, client *http.Client, r Request) (Result, error) {
	if strings.TrimSpace(r.URL) == "" {
		return Result{}, fmt.Errorf("download URL is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("Accept", "application/x-bittorrent, application/octet-stream")
	req.Header.Set("User-Agent", buildinfo.BrowserUserAgent)
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	if len(r.Query) > 0 {
		query := req.URL.Query()
		for key, value := range r.Query {
			if query.Get(key) == "" {
				query.Set(key, value)
			}
		}
		req.URL.RawQuery = query.Encode()
	}

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("torrent download failed: %w", err)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode < http.StatusBadRequest {
		if location := resp.Header.Get("Location"); strings.HasPrefix(location, "magnet:") {
			return Result{MagnetURI: location}, nil
		}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, &DownloadError{StatusCode: resp.StatusCode, URL: r.URL}
	}

	limitedReader := io.LimitReader(resp.Body, maxTorrentDownloadBytes+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return Result{}, fmt.Errorf("read torrent body: %w", err)
	}
	if int64(len(data)) > maxTorrentDownloadBytes {
		return Result{}, fmt.Errorf("torrent download exceeded %d bytes limit", maxTorrentDownloadBytes)
	}
	if len(data) == 0 {
		return Result{}, fmt.Errorf("torrent download from %s returned an empty body", r.URL)
	}

	return Result{Data: data}, nil
}
