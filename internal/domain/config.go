// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "strings"

// Config represents the application configuration
type Config struct {
	Version               string
	Host                  string `toml:"host" mapstructure:"host"`
	Port                  int    `toml:"port" mapstructure:"port"`
	BaseURL               string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel              string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath               string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize            int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups         int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	PprofEnabled          bool   `toml:"pprofEnabled" mapstructure:"pprofEnabled"`
	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`

	// Hardcover metadata search
	HardcoverAPIKey string `toml:"hardcoverApiKey" mapstructure:"hardcoverApiKey"`
	HardcoverURL    string `toml:"hardcoverUrl" mapstructure:"hardcoverUrl"`

	// MyAnonaMouse private tracker
	MAMID       string `toml:"mamId" mapstructure:"mamId"`
	MAMDisabled bool   `toml:"mamDisabled" mapstructure:"mamDisabled"`
	MAMURL      string `toml:"mamUrl" mapstructure:"mamUrl"`

	// Indexer aggregator (Prowlarr or Jackett)
	IndexerBackend string `toml:"indexerBackend" mapstructure:"indexerBackend"`
	IndexerURL     string `toml:"indexerUrl" mapstructure:"indexerUrl"`
	IndexerAPIKey  string `toml:"indexerApiKey" mapstructure:"indexerApiKey"`
	IndexerMode    string `toml:"indexerMode" mapstructure:"indexerMode"`
	IndexerTimeout int    `toml:"indexerTimeout" mapstructure:"indexerTimeout"`
	ReleaseFilter  string `toml:"releaseFilter" mapstructure:"releaseFilter"`

	// qBittorrent download client
	QbitURL           string   `toml:"qbitUrl" mapstructure:"qbitUrl"`
	QbitUsername      string   `toml:"qbitUsername" mapstructure:"qbitUsername"`
	QbitPassword      string   `toml:"qbitPassword" mapstructure:"qbitPassword"`
	QbitCategory      string   `toml:"qbitCategory" mapstructure:"qbitCategory"`
	QbitTags          []string `toml:"qbitTags" mapstructure:"qbitTags"`
	QbitTLSSkipVerify bool     `toml:"qbitTlsSkipVerify" mapstructure:"qbitTlsSkipVerify"`

	// Calibre library
	CalibreURL          string `toml:"calibreUrl" mapstructure:"calibreUrl"`
	CalibreLibraryID    string `toml:"calibreLibraryId" mapstructure:"calibreLibraryId"`
	CalibreUsername     string `toml:"calibreUsername" mapstructure:"calibreUsername"`
	CalibrePassword     string `toml:"calibrePassword" mapstructure:"calibrePassword"`
	CalibreTimeout      int    `toml:"calibreTimeout" mapstructure:"calibreTimeout"`
	CalibreIngestFolder string `toml:"calibreIngestFolder" mapstructure:"calibreIngestFolder"`
}

// PrivateTrackerEnabled reports whether the MyAnonaMouse stage should run.
func (c *Config) PrivateTrackerEnabled() bool {
	return strings.TrimSpace(c.MAMID) != "" && !c.MAMDisabled
}

// CalibreConfigured reports whether a Calibre content server is available for presence checks.
func (c *Config) CalibreConfigured() bool {
	return strings.TrimSpace(c.CalibreURL) != ""
}
