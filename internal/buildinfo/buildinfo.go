// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"encoding/json"
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""

	// UserAgent identifies liberry to upstream APIs that accept tool clients.
	UserAgent string
)

// BrowserUserAgent is sent to sources that reject non-browser clients when fetching torrent files.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

func init() {
	UserAgent = fmt.Sprintf("liberry/%s (%s %s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String returns a human readable multi-line summary of the build.
func String() string {
	return fmt.Sprintf("Version: %s\nCommit: %s\nBuild date: %s\n", Version, Commit, Date)
}

// JSON returns the build information encoded as JSON.
func JSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	})
}
