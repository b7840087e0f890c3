// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadError_Error(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		url        string
		wantMsg    string
	}{
		{
			name:       "404 not found",
			statusCode: http.StatusNotFound,
			url:        "https://example.com/download/123",
			wantMsg:    "torrent download from https://example.com/download/123 returned status 404",
		},
		{
			name:       "429 rate limited",
			statusCode: http.StatusTooManyRequests,
			url:        "https://indexer.com/torrent/abc",
			wantMsg:    "torrent download from https://indexer.com/torrent/abc returned status 429",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &DownloadError{StatusCode: tt.statusCode, URL: tt.url}
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestDownloadError_Classification(t *testing.T) {
	assert.False(t, (&DownloadError{StatusCode: 429}).IsAuth())
	assert.True(t, (&DownloadError{StatusCode: 403}).IsAuth())
	assert.True(t, (&DownloadError{StatusCode: 401}).IsAuth())

	wrapped := errors.Join(errors.New("wrapper"), &DownloadError{StatusCode: 404})
	assert.True(t, errors.Is(wrapped, &DownloadError{}))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/file":
			assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla/5.0")
			assert.Equal(t, "mam_id=secret", r.Header.Get("Cookie"))
			assert.Equal(t, "key", r.URL.Query().Get("apikey"))
			_, _ = w.Write([]byte("d4:infod4:name4:testee"))
		case "/magnet":
			http.Redirect(w, r, "magnet:?xt=urn:btih:abc", http.StatusFound)
		case "/empty":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.Client())

	t.Run("bytes", func(t *testing.T) {
		result, err := Fetch(context.Background(), client, Request{
			URL:     srv.URL + "/file",
			Headers: map[string]string{"Cookie": "mam_id=secret"},
			Query:   map[string]string{"apikey": "key"},
		})
		require.NoError(t, err)
		assert.Equal(t, "d4:infod4:name4:testee", string(result.Data))
		assert.Empty(t, result.MagnetURI)
	})

	t.Run("magnet redirect", func(t *testing.T) {
		result, err := Fetch(context.Background(), client, Request{URL: srv.URL + "/magnet"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(result.MagnetURI, "magnet:"))
		assert.Empty(t, result.Data)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := Fetch(context.Background(), client, Request{URL: srv.URL + "/missing"})
		var dlErr *DownloadError
		require.ErrorAs(t, err, &dlErr)
		assert.Equal(t, http.StatusNotFound, dlErr.StatusCode)
	})

	t.Run("empty body", func(t *testing.T) {
		_, err := Fetch(context.Background(), client, Request{URL: srv.URL + "/empty"})
		require.Error(t, err)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := Fetch(context.Background(), client, Request{})
		require.Error(t, err)
	})
}
