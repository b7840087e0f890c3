// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	diacriticFolder   = NewNormalizer(defaultNormalizerTTL, foldDiacriticsInner)
	catalogNormalizer = NewNormalizer(defaultNormalizerTTL, catalogTitle)
)

// FoldDiacritics strips combining marks so "Brontë" and "Bronte" compare equal.
func FoldDiacritics(s string) string {
	return diacriticFolder.Normalize(s)
}

func foldDiacriticsInner(s string) string {
	// NFKD leaves these as distinct letters
	replacer := strings.NewReplacer(
		"æ", "ae", "Æ", "AE",
		"œ", "oe", "Œ", "OE",
		"ø", "o", "Ø", "O",
		"ß", "ss",
	)
	s = replacer.Replace(s)

	// transform.Chain is not safe for concurrent use, build one per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// NormalizeCatalogTitle prepares a title for a similarity search against a library
// catalog: punctuation, dashes and quotes become spaces and whitespace is collapsed.
func NormalizeCatalogTitle(s string) string {
	return catalogNormalizer.Normalize(s)
}

func catalogTitle(s string) string {
	s = FoldDiacritics(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' || r == '’':
			// "Ender's" searches as "Enders"
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
