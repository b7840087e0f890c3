// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var minWebAPIVersion = semver.MustParse("2.0.0")

const probeFreshness = 30 * time.Second

// ProbeResult summarizes the download client for health reporting.
type ProbeResult struct {
	Reachable     bool      `json:"reachable"`
	Supported     bool      `json:"supported"`
	AppVersion    string    `json:"appVersion,omitempty"`
	WebAPIVersion string    `json:"webApiVersion,omitempty"`
	Error         string    `json:"error,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
}

// Prober checks that the configured qBittorrent is reachable and new enough.
// Results are cached briefly so health polling does not hammer the WebUI.
type Prober struct {
	cfg qbt.Config

	healthMu sync.RWMutex
	last     *ProbeResult
}

func NewProber(cfg Config) *Prober {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Prober{
		cfg: qbt.Config{
			Host:          cfg.Host,
			Username:      cfg.Username,
			Password:      cfg.Password,
			Timeout:       int(timeout.Seconds()),
			TLSSkipVerify: cfg.TLSSkipVerify,
		},
	}
}

// Probe returns the cached result when fresh, otherwise asks the client for its versions.
func (p *Prober) Probe(ctx context.Context) ProbeResult {
	p.healthMu.RLock()
	if p.last != nil && time.Since(p.last.CheckedAt) < probeFreshness {
		cached := *p.last
		p.healthMu.RUnlock()
		return cached
	}
	p.healthMu.RUnlock()

	result := ProbeResult{CheckedAt: time.Now()}
	if err := p.probe(ctx, &result); err != nil {
		result.Error = err.Error()
		log.Warn().Err(err).Str("host", p.cfg.Host).Msg("qBittorrent probe failed")
	}

	p.healthMu.Lock()
	p.last = &result
	p.healthMu.Unlock()

	return result
}

func (p *Prober) probe(ctx context.Context, result *ProbeResult) error {
	client := qbt.NewClient(p.cfg)

	if err := client.LoginCtx(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to qBittorrent instance")
	}
	result.Reachable = true

	appVersion, err := client.GetAppVersionCtx(ctx)
	if err != nil {
		return errors.Wrap(err, "get app version")
	}
	result.AppVersion = strings.TrimSpace(appVersion)

	webAPIVersion, err := client.GetWebAPIVersionCtx(ctx)
	if err != nil {
		return errors.Wrap(err, "get web API version")
	}
	webAPIVersion = strings.TrimSpace(webAPIVersion)
	if webAPIVersion == "" {
		return errors.New("web API version is empty")
	}
	result.WebAPIVersion = webAPIVersion

	supported, err := supportsWebAPI(webAPIVersion)
	if err != nil {
		return err
	}
	result.Supported = supported

	return nil
}

func supportsWebAPI(version string) (bool, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, errors.Wrapf(err, "parse web API version %q", version)
	}
	return !v.LessThan(minWebAPIVersion), nil
}
