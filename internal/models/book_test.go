// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookQueryIndexerQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query BookQuery
		want  string
	}{
		{name: "title only", query: BookQuery{Title: "Dune"}, want: "Dune"},
		{name: "with author", query: BookQuery{Title: "Dune", Author: "Frank Herbert"}, want: "Dune Frank Herbert"},
		{name: "unknown author", query: BookQuery{Title: "Dune", Author: "Unknown"}, want: "Dune"},
		{name: "blank author", query: BookQuery{Title: " Dune ", Author: "  "}, want: "Dune"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.query.IndexerQuery())
		})
	}
}

func TestBookRefFlexibleID(t *testing.T) {
	t.Parallel()

	var refs []BookRef
	payload := `[{"id": 42, "title": "Dune"}, {"id": "abc", "title": "Emma"}, {"id": null, "title": "None"}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &refs))
	require.Len(t, refs, 3)

	assert.Equal(t, "42", refs[0].ID.String())
	assert.Equal(t, "abc", refs[1].ID.String())
	assert.Equal(t, "", refs[2].ID.String())
}

func TestCandidateReleaseHelpers(t *testing.T) {
	t.Parallel()

	c := CandidateRelease{SizeBytes: 1572864}
	assert.Equal(t, "1.50 MB", c.HumanSize())
	assert.Equal(t, 0, c.SeedCount())

	c.Seeders = IntPtr(7)
	assert.Equal(t, 7, c.SeedCount())
	assert.Equal(t, "0.00 MB", FormatMegabytes(0))
}
