// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package httphelpers

import (
	"io"
	"net/http"
	"strings"
)

// maxBodyExcerpt bounds how much of an upstream body ends up in logs and errors.
const maxBodyExcerpt = 512

// DrainAndClose consumes the remaining response body and closes it to allow connection reuse.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// BodyExcerpt reads at most 512 bytes of the response body for diagnostics.
func BodyExcerpt(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyExcerpt))
	return Truncate(string(data))
}

// Truncate shortens s to the diagnostic excerpt length.
func Truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxBodyExcerpt {
		return s
	}
	return s[:maxBodyExcerpt] + "..."
}
