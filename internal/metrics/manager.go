// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

const namespace = "liberry"

// Manager owns the registry and the application counters. A nil *Manager is valid
// and records nothing, so services can run without metrics enabled.
type Manager struct {
	registry *prometheus.Registry

	searches         *prometheus.CounterVec
	acquisitions     *prometheus.CounterVec
	authRetries      prometheus.Counter
	presenceChecks   *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

func NewMetricsManager() *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{
		registry: registry,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_searches_total",
			Help:      "Metadata searches by result (ok, empty, error)",
		}, []string{"result"}),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisitions_total",
			Help:      "Acquisition attempts by source stage and outcome",
		}, []string{"source", "outcome"}),
		authRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_client_auth_retries_total",
			Help:      "Times the download client session expired and the add was retried",
		}),
		presenceChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "library_presence_checks_total",
			Help:      "Library presence checks by the step that matched (none when absent)",
		}, []string{"matched_by"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to external services",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}

	registry.MustRegister(m.searches, m.acquisitions, m.authRetries, m.presenceChecks, m.upstreamDuration)

	log.Debug().Msg("Metrics manager initialized")

	return m
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) ObserveSearch(result string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(result).Inc()
}

func (m *Manager) ObserveAcquisition(source, outcome string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(source, outcome).Inc()
}

func (m *Manager) ObserveAuthRetry() {
	if m == nil {
		return
	}
	m.authRetries.Inc()
}

func (m *Manager) ObservePresence(matchedBy string) {
	if m == nil {
		return
	}
	if matchedBy == "" {
		matchedBy = "none"
	}
	m.presenceChecks.WithLabelValues(matchedBy).Inc()
}

// ObserveUpstream records the time since start for a call to service.
func (m *Manager) ObserveUpstream(service string, start time.Time) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
