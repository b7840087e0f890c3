// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldDiacritics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{input: "Brontë", want: "Bronte"},
		{input: "Cien años de soledad", want: "Cien anos de soledad"},
		{input: "Smørrebrød", want: "Smorrebrod"},
		{input: "plain", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, FoldDiacritics(tt.input))
		})
	}
}

func TestNormalizeCatalogTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "dash and colon", input: "Dune - Part One: Arrakis", want: "Dune Part One Arrakis"},
		{name: "quotes", input: `"The" Hobbit`, want: "The Hobbit"},
		{name: "apostrophe", input: "Ender's Game", want: "Enders Game"},
		{name: "em dash and spaces", input: "Foundation—and   Empire", want: "Foundation and Empire"},
		{name: "empty", input: "  ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCatalogTitle(tt.input))
		})
	}
}
