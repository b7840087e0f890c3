// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
)

type fakeWebUI struct {
	logins      atomic.Int32
	adds        atomic.Int32
	loginBody   string
	addStatuses []int

	lastSavePath string
	lastFileName string
	lastFileType string
	lastFile     []byte
	lastURLs     string
	lastCategory string
	lastCookie   string
}

func (f *fakeWebUI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "admin", r.PostForm.Get("username"))
		body := f.loginBody
		if body == "" {
			body = "Ok."
		}
		if body == "Ok." {
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "session-token"})
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.adds.Add(1))
		f.lastCookie = r.Header.Get("Cookie")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f.lastSavePath = r.FormValue("savepath")
		f.lastURLs = r.FormValue("urls")
		f.lastCategory = r.FormValue("category")
		if files := r.MultipartForm.File["torrents"]; len(files) > 0 {
			f.lastFileName = files[0].Filename
			f.lastFileType = files[0].Header.Get("Content-Type")
			file, err := files[0].Open()
			require.NoError(t, err)
			f.lastFile, _ = io.ReadAll(file)
			file.Close()
		}

		status := http.StatusOK
		if n <= len(f.addStatuses) {
			status = f.addStatuses[n-1]
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = io.WriteString(w, "Ok.")
		}
	})
	return mux
}

func newTestClient(t *testing.T, fake *fakeWebUI) *Client {
	t.Helper()
	return newSessionClient(t, fake, Config{}, NewSessionHolder())
}

func newSessionClient(t *testing.T, fake *fakeWebUI, cfg Config, session *SessionHolder) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	cfg.Host, cfg.Username, cfg.Password = srv.URL, "admin", "adminadmin"
	return NewClient(cfg, session)
}

func TestLoginStoresCookie(t *testing.T) {
	fake := &fakeWebUI{}
	session := NewSessionHolder()
	client := newSessionClient(t, fake, Config{}, session)

	require.NoError(t, client.Login(context.Background()))

	cookie, ok := session.Get()
	assert.True(t, ok)
	assert.Equal(t, "SID=session-token", cookie)
}

func TestLoginBadCredentials(t *testing.T) {
	fake := &fakeWebUI{loginBody: "Fails."}
	session := NewSessionHolder()
	client := newSessionClient(t, fake, Config{}, session)

	err := client.Login(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))
	_, ok := session.Get()
	assert.False(t, ok)
}

func TestClientObservesUpstreamLatency(t *testing.T) {
	fake := &fakeWebUI{}
	manager := metrics.NewMetricsManager()
	client := newSessionClient(t, fake, Config{Metrics: manager}, NewSessionHolder())

	require.NoError(t, client.EnsureSession(context.Background()))
	require.NoError(t, client.AddTorrent(context.Background(), AddOptions{URLs: []string{"magnet:?xt=urn:btih:abc"}}))

	families, err := manager.GetRegistry().Gather()
	require.NoError(t, err)

	var samples uint64
	for _, mf := range families {
		if mf.GetName() != "liberry_upstream_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			samples += m.GetHistogram().GetSampleCount()
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestEnsureSessionLogsInOnce(t *testing.T) {
	fake := &fakeWebUI{}
	client := newTestClient(t, fake)

	require.NoError(t, client.EnsureSession(context.Background()))
	require.NoError(t, client.EnsureSession(context.Background()))

	assert.Equal(t, int32(1), fake.logins.Load())
}

func TestAddTorrentFile(t *testing.T) {
	fake := &fakeWebUI{}
	client := newTestClient(t, fake)
	require.NoError(t, client.Login(context.Background()))

	err := client.AddTorrent(context.Background(), AddOptions{
		File:     []byte("d8:announce0:e"),
		FileName: "12345.torrent",
		SavePath: "/calibre/ingest",
		Category: "books",
	})
	require.NoError(t, err)

	assert.Equal(t, "12345.torrent", fake.lastFileName)
	assert.Equal(t, "application/x-bittorrent", fake.lastFileType)
	assert.Equal(t, []byte("d8:announce0:e"), fake.lastFile)
	assert.Equal(t, "/calibre/ingest", fake.lastSavePath)
	assert.Equal(t, "books", fake.lastCategory)
	assert.Equal(t, "SID=session-token", fake.lastCookie)
}

func TestAddTorrentURL(t *testing.T) {
	fake := &fakeWebUI{}
	client := newTestClient(t, fake)

	err := client.AddTorrent(context.Background(), AddOptions{
		URLs:     []string{"magnet:?xt=urn:btih:abc"},
		SavePath: "/ingest",
	})
	require.NoError(t, err)

	assert.Equal(t, "magnet:?xt=urn:btih:abc", fake.lastURLs)
	assert.Equal(t, "/ingest", fake.lastSavePath)
	assert.Empty(t, fake.lastFileName)
}

func TestAddTorrentStatuses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		authExpired bool
	}{
		{name: "forbidden means session expired", status: http.StatusForbidden, authExpired: true},
		{name: "unsupported media type", status: http.StatusUnsupportedMediaType},
		{name: "server error", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeWebUI{addStatuses: []int{tt.status}}
			client := newTestClient(t, fake)

			err := client.AddTorrent(context.Background(), AddOptions{URLs: []string{"http://x/1.torrent"}})
			require.Error(t, err)
			assert.Equal(t, tt.authExpired, errors.Is(err, domain.ErrAuthExpired))
		})
	}
}

func TestAddTorrentNothingToAdd(t *testing.T) {
	client := NewClient(Config{Host: "http://127.0.0.1:1"}, nil)
	require.Error(t, client.AddTorrent(context.Background(), AddOptions{SavePath: "/x"}))
}

func TestSessionHolderInvalidate(t *testing.T) {
	holder := NewSessionHolder()
	holder.Set("SID=1")
	holder.Invalidate()

	cookie, ok := holder.Get()
	assert.False(t, ok)
	assert.Empty(t, cookie)
}

func TestSupportsWebAPI(t *testing.T) {
	tests := []struct {
		version string
		want    bool
		wantErr bool
	}{
		{version: "2.11.4", want: true},
		{version: "2.0", want: true},
		{version: "1.9.9", want: false},
		{version: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := supportsWebAPI(tt.version)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProberUnreachable(t *testing.T) {
	prober := NewProber(Config{Host: "http://127.0.0.1:1", Timeout: time.Second})

	result := prober.Probe(context.Background())
	assert.False(t, result.Reachable)
	assert.NotEmpty(t, result.Error)

	cached := prober.Probe(context.Background())
	assert.Equal(t, result.CheckedAt, cached.CheckedAt)
}
