// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package calibre

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/liberry/internal/models"
)

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	counts  map[string]int
	errs    map[string]error
	block   map[string]bool
}

func (f *fakeSearcher) Count(ctx context.Context, query string) (int, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()

	if f.block[query] {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := f.errs[query]; err != nil {
		return 0, err
	}
	return f.counts[query], nil
}

func (f *fakeSearcher) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func TestCheckPresence_NotConfigured(t *testing.T) {
	checker := NewChecker(nil, CheckerOptions{})

	presence := checker.CheckPresence(context.Background(), "Dune", "", "")
	assert.Equal(t, Presence{InLibrary: false, Reason: ReasonNotConfigured}, presence)
}

func TestCheckPresence_ISBNShortCircuits(t *testing.T) {
	searcher := &fakeSearcher{counts: map[string]int{`isbn:"=9780441013593"`: 1}}
	checker := NewChecker(searcher, CheckerOptions{})

	presence := checker.CheckPresence(context.Background(), "Dune", "Frank Herbert", "9780441013593")

	assert.True(t, presence.InLibrary)
	assert.Equal(t, MatchISBN, presence.MatchedBy)
	assert.Equal(t, 1, presence.MatchCount)
	assert.Equal(t, []string{`isbn:"=9780441013593"`}, searcher.seen())
}

func TestCheckPresence_CascadeOrder(t *testing.T) {
	title := "The Left Hand of Darkness: 50th Anniversary"
	searcher := &fakeSearcher{}
	checker := NewChecker(searcher, CheckerOptions{})

	presence := checker.CheckPresence(context.Background(), title, "", "123")

	assert.False(t, presence.InLibrary)
	assert.Empty(t, presence.Reason)
	assert.Equal(t, []string{
		`isbn:"=123"`,
		`title:"=The Left Hand of Darkness: 50th Anniversary"`,
		`title:"~The Left Hand of Darkness 50th Anniversary"`,
		`Left Hand Darkness:`,
	}, searcher.seen())
}

func TestCheckPresence_FailingStepContinues(t *testing.T) {
	searcher := &fakeSearcher{
		errs:   map[string]error{`title:"=Dune"`: errors.New("boom")},
		block:  map[string]bool{`isbn:"=1"`: true},
		counts: map[string]int{`title:"~Dune"`: 2},
	}
	checker := NewChecker(searcher, CheckerOptions{StepTimeout: 20 * time.Millisecond})

	presence := checker.CheckPresence(context.Background(), "Dune", "", "1")

	assert.True(t, presence.InLibrary)
	assert.Equal(t, MatchTitleFuzzy, presence.MatchedBy)
	assert.Equal(t, 2, presence.MatchCount)
}

func TestCheckPresence_Keywords(t *testing.T) {
	searcher := &fakeSearcher{counts: map[string]int{"Brief History Time": 1}}
	checker := NewChecker(searcher, CheckerOptions{})

	presence := checker.CheckPresence(context.Background(), "A Brief History of Time - Updated", "", "")

	assert.True(t, presence.InLibrary)
	assert.Equal(t, MatchKeywords, presence.MatchedBy)
}

func TestCheckPresence_Cached(t *testing.T) {
	searcher := &fakeSearcher{counts: map[string]int{`title:"=Dune"`: 1}}
	checker := NewChecker(searcher, CheckerOptions{})

	first := checker.CheckPresence(context.Background(), "Dune", "", "")
	second := checker.CheckPresence(context.Background(), "dune ", "", "")

	assert.Equal(t, first, second)
	assert.Len(t, searcher.seen(), 1)
}

func TestTitleKeywords(t *testing.T) {
	tests := map[string]string{
		"A Brief History of Time":             "Brief History Time",
		"It":                                  "",
		"The Name of the Wind":                "Name Wind",
		"Neverwhere Stardust Coraline Anansi": "Neverwhere Stardust Coraline",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleKeywords(in), in)
	}
}

func TestCheckBatch(t *testing.T) {
	searcher := &fakeSearcher{
		counts: map[string]int{`title:"=Dune"`: 1},
		errs:   map[string]error{`title:"=Broken"`: errors.New("down")},
	}
	checker := NewChecker(searcher, CheckerOptions{BatchConcurrency: 2})

	var books []models.BookRef
	for _, b := range []struct{ id, title string }{{"1", "Dune"}, {"2", "Missing Book"}, {"3", "Broken"}} {
		books = append(books, models.BookRef{ID: models.FlexibleID(b.id), Title: b.title})
	}

	results := checker.CheckBatch(context.Background(), books)
	assert.Equal(t, map[string]bool{"1": true, "2": false, "3": false}, results)

	assert.Empty(t, checker.CheckBatch(context.Background(), nil))
}

func TestClientCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ajax/search", r.URL.Path)
		assert.Equal(t, `title:"=Dune"`, r.URL.Query().Get("query"))
		assert.Equal(t, "books", r.URL.Query().Get("library_id"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "reader", user)
		assert.Equal(t, "pw", pass)

		_, _ = io.WriteString(w, `{"total_num":3,"book_ids":[4],"num":1,"offset":0}`)
	}))
	defer srv.Close()

	client := NewClient(Config{URL: srv.URL + "/", LibraryID: "books", Username: "reader", Password: "pw"})
	count, err := client.Count(context.Background(), `title:"=Dune"`)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestClientCountError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(Config{URL: srv.URL}).Count(context.Background(), "x")
	require.Error(t, err)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `say \"hi\"`, quote(`say "hi"`))
}
