// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadCommandFlags(t *testing.T) {
	cmd := RunDownloadCommand()

	for _, name := range []string{"config-dir", "title", "author", "isbn", "year"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	require.NoError(t, cmd.Flags().Parse([]string{"--title", "Dune", "--year", "1965"}))
	year, err := cmd.Flags().GetString("year")
	require.NoError(t, err)
	assert.Equal(t, "1965", year)
}

func TestSeconds(t *testing.T) {
	assert.Zero(t, seconds(0))
	assert.Zero(t, seconds(-3))
	assert.Equal(t, "30s", seconds(30).String())
}
