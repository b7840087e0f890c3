// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "fmt"

// RawRelease is an indexer search result before filtering and ranking.
type RawRelease struct {
	Title       string
	GUID        string
	Indexer     string
	IndexerID   string
	Size        int64
	Seeders     *int
	DownloadURL string
	MagnetURL   string
	InfoURL     string
}

// CandidateRelease is a release that survived filtering. Values are never mutated
// after creation; ranking only reorders slices of them.
type CandidateRelease struct {
	Title       string `json:"title"`
	SizeBytes   int64  `json:"sizeBytes"`
	Seeders     *int   `json:"seeders,omitempty"`
	Indexer     string `json:"indexer,omitempty"`
	IndexerID   string `json:"indexerId,omitempty"`
	GUID        string `json:"guid"`
	DownloadRef string `json:"-"`
	InfoURL     string `json:"infoUrl,omitempty"`
	// DisplaySize is a source-formatted size used when the byte count is unknown.
	DisplaySize string `json:"-"`

	// Annotations parsed from the release name
	Year  int    `json:"year,omitempty"`
	Group string `json:"group,omitempty"`
	Ext   string `json:"ext,omitempty"`
}

// SeedCount returns the seeder count, treating an unknown count as zero.
func (c CandidateRelease) SeedCount() int {
	if c.Seeders == nil {
		return 0
	}
	return *c.Seeders
}

// HumanSize formats the size in mebibytes with two decimals, e.g. "1.50 MB".
func (c CandidateRelease) HumanSize() string {
	if c.SizeBytes == 0 && c.DisplaySize != "" {
		return c.DisplaySize
	}
	return FormatMegabytes(c.SizeBytes)
}

// FormatMegabytes renders a byte count as "N.NN MB".
func FormatMegabytes(size int64) string {
	return fmt.Sprintf("%.2f MB", float64(size)/1024/1024)
}

// IntPtr is a small helper for optional counts.
func IntPtr(v int) *int {
	return &v
}
