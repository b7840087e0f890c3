// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// Source identifies which stage produced an acquisition.
type Source string

const (
	SourceNone           Source = ""
	SourcePrivateTracker Source = "privateTracker"
	SourceGenericIndexer Source = "genericIndexer"
)

// AcquisitionResult is the terminal output of one download request.
type AcquisitionResult struct {
	Success     bool
	Source      Source
	Selected    *CandidateRelease
	ErrorReason string
	// SourceName is the user-facing backend label ("mam", "prowlarr", "jackett").
	SourceName string
	RequestID  string
}
