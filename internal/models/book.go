// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// BookQuery is the input to every release search path.
type BookQuery struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
	Year   string `json:"year,omitempty"`
}

// IndexerQuery returns the free-text query sent to indexer aggregators:
// the title followed by the author when one is known.
func (q BookQuery) IndexerQuery() string {
	query := strings.TrimSpace(q.Title)
	author := strings.TrimSpace(q.Author)
	if author != "" && author != "Unknown" {
		query += " " + author
	}
	return query
}

// NormalizedBook is the single shape metadata search results are mapped into.
type NormalizedBook struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	ImageURL     string   `json:"imageUrl"`
	ReleaseYear  *int     `json:"releaseYear"`
	PageCount    *int     `json:"pageCount"`
	ISBN10       string   `json:"isbn10"`
	ISBN13       string   `json:"isbn13"`
	AuthorNames  []string `json:"authorNames"`
	Rating       *float64 `json:"rating,omitempty"`
	CanonicalURL string   `json:"canonicalUrl,omitempty"`
}

// BookRef identifies a book in a batch presence check.
type BookRef struct {
	ID     FlexibleID `json:"id"`
	Title  string     `json:"title"`
	Author string     `json:"author,omitempty"`
	ISBN   string     `json:"isbn,omitempty"`
}

// FlexibleID accepts both JSON strings and numbers. Metadata ids arrive as either
// depending on which client produced the payload.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}
