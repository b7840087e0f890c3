// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/domain"
	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/pkg/httphelpers"
)

const defaultTimeout = 10 * time.Second

// Config describes how to reach the qBittorrent WebUI.
type Config struct {
	Host          string
	Username      string
	Password      string
	Timeout       time.Duration
	TLSSkipVerify bool
	HTTPClient    *http.Client
	Metrics       *metrics.Manager
}

// AddOptions is one add-torrent request. Exactly one of File or URLs is set.
type AddOptions struct {
	File     []byte
	FileName string
	URLs     []string
	SavePath string
	Category string
	Tags     []string
}

// Client talks to the qBittorrent WebAPI with an explicit, externally held session.
// Session expiry is reported as domain.ErrAuthExpired and left to the caller to handle.
type Client struct {
	host       string
	username   string
	password   string
	httpClient *http.Client
	session    *SessionHolder
	metrics    *metrics.Manager
	log        zerolog.Logger
}

func NewClient(cfg Config, session *SessionHolder) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if session == nil {
		session = NewSessionHolder()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.TLSSkipVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed WebUI certs
		}
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			// the login cookie is read from the first response, never follow redirects
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Client{
		host:       strings.TrimRight(cfg.Host, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: httpClient,
		session:    session,
		metrics:    cfg.Metrics,
		log:        log.Logger.With().Str("module", "qbittorrent").Logger(),
	}
}

// Login authenticates with a form-encoded POST and stores the session cookie.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	endpoint := c.host + "/api/v2/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "could not build login request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// qBittorrent rejects logins whose Referer/Origin does not match the host when CSRF protection is on
	req.Header.Set("Referer", c.host)

	defer c.metrics.ObserveUpstream("qbittorrent", time.Now())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, Err: err}
	}
	defer httphelpers.DrainAndClose(resp)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	text := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, StatusCode: resp.StatusCode, Body: text,
			Message: "qBittorrent login forbidden (too many failed attempts?)"}
	case resp.StatusCode != http.StatusOK:
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, StatusCode: resp.StatusCode, Body: text}
	case text != "" && text != "Ok.":
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, StatusCode: resp.StatusCode, Body: text,
			Message: "qBittorrent login failed: invalid credentials"}
	}

	cookie := ""
	if cookies := resp.Cookies(); len(cookies) > 0 {
		cookie = cookies[0].Name + "=" + cookies[0].Value
	}
	c.session.Set(cookie)

	if cookie == "" {
		c.log.Debug().Msg("qBittorrent login successful (no cookie issued)")
	} else {
		c.log.Debug().Msg("qBittorrent login successful")
	}

	return nil
}

// InvalidateSession drops the cached session so the next call logs in again.
func (c *Client) InvalidateSession() {
	c.session.Invalidate()
}

// EnsureSession logs in when the holder has no active session.
func (c *Client) EnsureSession(ctx context.Context) error {
	if _, ok := c.session.Get(); ok {
		return nil
	}
	return c.Login(ctx)
}

// AddTorrent submits a torrent file or URL list to /api/v2/torrents/add.
// A 403 answer invalidates nothing by itself; it is returned as domain.ErrAuthExpired.
func (c *Client) AddTorrent(ctx context.Context, opts AddOptions) error {
	if len(opts.File) == 0 && len(opts.URLs) == 0 {
		return errors.New("nothing to add: neither torrent file nor urls given")
	}

	body, contentType, err := buildAddForm(opts)
	if err != nil {
		return errors.Wrap(err, "could not build add form")
	}

	endpoint := c.host + "/api/v2/torrents/add"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "could not build add request")
	}
	req.Header.Set("Content-Type", contentType)
	if cookie, _ := c.session.Get(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	defer c.metrics.ObserveUpstream("qbittorrent", time.Now())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, Err: err}
	}
	defer httphelpers.DrainAndClose(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return errors.Wrap(domain.ErrAuthExpired, "add torrent")
	default:
		excerpt := httphelpers.BodyExcerpt(resp)
		c.log.Error().Str("endpoint", endpoint).Int("status", resp.StatusCode).Str("body", excerpt).Msg("qBittorrent rejected torrent")
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, StatusCode: resp.StatusCode, Body: excerpt}
	}

	if text := strings.TrimSpace(httphelpers.BodyExcerpt(resp)); text == "Fails." {
		return &domain.UpstreamError{Service: "qbittorrent", Endpoint: endpoint, StatusCode: resp.StatusCode, Body: text,
			Message: "qBittorrent refused the torrent"}
	}

	return nil
}

func buildAddForm(opts AddOptions) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if len(opts.File) > 0 {
		name := opts.FileName
		if name == "" {
			name = "upload.torrent"
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="torrents"; filename=%q`, name))
		header.Set("Content-Type", "application/x-bittorrent")

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(opts.File); err != nil {
			return nil, "", err
		}
	} else {
		if err := writer.WriteField("urls", strings.Join(opts.URLs, "\n")); err != nil {
			return nil, "", err
		}
	}

	fields := [][2]string{
		{"savepath", opts.SavePath},
		{"category", opts.Category},
		{"tags", strings.Join(opts.Tags, ",")},
	}
	for _, field := range fields {
		if field[1] == "" {
			continue
		}
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}
