// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package hardcover

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/autobrr/liberry/internal/models"
)

const canonicalBookURL = "https://hardcover.app/books/"

type resultShape int

const (
	shapeEmpty resultShape = iota
	shapeNestedHits
	shapeFlatDocuments
	shapeRawArray
)

func (s resultShape) String() string {
	switch s {
	case shapeNestedHits:
		return "nested-hits"
	case shapeFlatDocuments:
		return "flat-documents"
	case shapeRawArray:
		return "raw-array"
	default:
		return "empty"
	}
}

type hit struct {
	Document json.RawMessage `json:"document"`
}

type nestedResults struct {
	Hits []hit `json:"hits"`
}

type document struct {
	ID          models.FlexibleID `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Image       *struct {
		URL string `json:"url"`
	} `json:"image"`
	ReleaseYear *int     `json:"release_year"`
	Pages       *int     `json:"pages"`
	ISBNs       []string `json:"isbns"`
	AuthorNames []string `json:"author_names"`
	Rating      *float64 `json:"rating"`
	Slug        string   `json:"slug"`
}

// detectShape inspects data.search.results and returns the tagged shape along with
// the raw documents it carries.
func detectShape(results json.RawMessage) (resultShape, []json.RawMessage) {
	trimmed := bytes.TrimSpace(results)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return shapeEmpty, nil
	}

	switch trimmed[0] {
	case '{':
		var nested nestedResults
		if err := json.Unmarshal(trimmed, &nested); err != nil || len(nested.Hits) == 0 {
			return shapeEmpty, nil
		}
		docs := make([]json.RawMessage, 0, len(nested.Hits))
		for _, h := range nested.Hits {
			docs = append(docs, h.Document)
		}
		return shapeNestedHits, docs

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return shapeEmpty, nil
		}

		var first map[string]json.RawMessage
		if err := json.Unmarshal(items[0], &first); err == nil {
			if _, ok := first["document"]; ok {
				docs := make([]json.RawMessage, 0, len(items))
				for _, item := range items {
					var h hit
					if err := json.Unmarshal(item, &h); err != nil {
						continue
					}
					docs = append(docs, h.Document)
				}
				return shapeFlatDocuments, docs
			}
		}
		return shapeRawArray, items
	}

	return shapeEmpty, nil
}

// normalizeResults maps any supported results shape into NormalizedBook values.
// Documents that do not decode, or that carry neither id nor title, are skipped.
func normalizeResults(results json.RawMessage) (resultShape, []models.NormalizedBook) {
	shape, docs := detectShape(results)

	books := make([]models.NormalizedBook, 0, len(docs))
	for _, raw := range docs {
		book, ok := normalizeDocument(raw)
		if !ok {
			continue
		}
		books = append(books, book)
	}

	return shape, books
}

func normalizeDocument(raw json.RawMessage) (models.NormalizedBook, bool) {
	var doc document
	if len(bytes.TrimSpace(raw)) == 0 {
		return models.NormalizedBook{}, false
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.NormalizedBook{}, false
	}
	if doc.ID == "" && strings.TrimSpace(doc.Title) == "" {
		return models.NormalizedBook{}, false
	}

	book := models.NormalizedBook{
		ID:          doc.ID.String(),
		Title:       strings.TrimSpace(doc.Title),
		Description: doc.Description,
		ReleaseYear: doc.ReleaseYear,
		PageCount:   doc.Pages,
		AuthorNames: []string{},
		Rating:      doc.Rating,
	}
	if doc.Image != nil {
		book.ImageURL = doc.Image.URL
	}
	for _, name := range doc.AuthorNames {
		if name = strings.TrimSpace(name); name != "" {
			book.AuthorNames = append(book.AuthorNames, name)
		}
	}
	book.ISBN10, book.ISBN13 = splitISBNs(doc.ISBNs)
	if slug := strings.TrimSpace(doc.Slug); slug != "" {
		book.CanonicalURL = canonicalBookURL + slug
	}

	return book, true
}

// splitISBNs returns the first 10 and 13 character identifiers from the list.
func splitISBNs(isbns []string) (isbn10, isbn13 string) {
	for _, isbn := range isbns {
		clean := strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
		switch len(clean) {
		case 10:
			if isbn10 == "" {
				isbn10 = clean
			}
		case 13:
			if isbn13 == "" {
				isbn13 = clean
			}
		}
	}
	return isbn10, isbn13
}
