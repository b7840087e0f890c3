// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package calibre

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/liberry/internal/metrics"
	"github.com/autobrr/liberry/internal/models"
	"github.com/autobrr/liberry/pkg/stringutils"
)

const (
	DefaultStepTimeout = 5 * time.Second

	defaultBatchConcurrency = 8
	presenceCacheTTL        = time.Minute

	ReasonNotConfigured = "not configured"
)

// Match steps, in the order they are attempted.
const (
	MatchISBN       = "isbn"
	MatchTitleExact = "titleExact"
	MatchTitleFuzzy = "titleFuzzy"
	MatchKeywords   = "keywords"
)

// Presence is the outcome of a library lookup for one book.
type Presence struct {
	InLibrary  bool   `json:"inLibrary"`
	MatchCount int    `json:"matchCount,omitempty"`
	Reason     string `json:"reason,omitempty"`
	MatchedBy  string `json:"matchedBy,omitempty"`
}

// Searcher counts catalog matches for a search expression.
type Searcher interface {
	Count(ctx context.Context, query string) (int, error)
}

type CheckerOptions struct {
	StepTimeout      time.Duration
	BatchConcurrency int
	Metrics          *metrics.Manager
}

type Checker struct {
	searcher    Searcher
	stepTimeout time.Duration
	concurrency int
	cache       *ttlcache.Cache[uint64, Presence]
	metrics     *metrics.Manager
	log         zerolog.Logger
}

// NewChecker returns a presence checker. A nil searcher means no library is configured.
func NewChecker(searcher Searcher, opts CheckerOptions) *Checker {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}

	return &Checker{
		searcher:    searcher,
		stepTimeout: requestTimeout(opts.StepTimeout),
		concurrency: opts.BatchConcurrency,
		cache:       ttlcache.New(ttlcache.Options[uint64, Presence]{}.SetDefaultTTL(presenceCacheTTL)),
		metrics:     opts.Metrics,
		log:         log.Logger.With().Str("module", "calibre").Logger(),
	}
}

// Configured reports whether presence checks reach a library.
func (c *Checker) Configured() bool {
	return c != nil && c.searcher != nil
}

type step struct {
	name  string
	query string
}

// steps builds the lookup cascade for a book. Steps whose input is empty are omitted.
func steps(title, isbn string) []step {
	var out []step

	if isbn = strings.TrimSpace(isbn); isbn != "" {
		out = append(out, step{name: MatchISBN, query: `isbn:"=` + quote(isbn) + `"`})
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return out
	}

	out = append(out, step{name: MatchTitleExact, query: `title:"=` + quote(title) + `"`})

	if normalized := stringutils.NormalizeCatalogTitle(title); normalized != "" {
		out = append(out, step{name: MatchTitleFuzzy, query: `title:"~` + quote(normalized) + `"`})
	}

	if keywords := titleKeywords(title); keywords != "" {
		out = append(out, step{name: MatchKeywords, query: keywords})
	}

	return out
}

// titleKeywords returns the first three words of title longer than three characters.
func titleKeywords(title string) string {
	var words []string
	for _, word := range strings.Fields(title) {
		if utf8.RuneCountInString(word) > 3 {
			words = append(words, word)
			if len(words) == 3 {
				break
			}
		}
	}
	return strings.Join(words, " ")
}

// CheckPresence runs the lookup cascade and stops at the first step with a match.
// Step failures and timeouts count as a miss for that step.
func (c *Checker) CheckPresence(ctx context.Context, title, author, isbn string) Presence {
	if !c.Configured() {
		return Presence{InLibrary: false, Reason: ReasonNotConfigured}
	}

	key := presenceKey(title, author, isbn)
	if cached, ok := c.cache.Get(key); ok {
		return cached
	}

	failed := false
	for _, s := range steps(title, isbn) {
		if ctx.Err() != nil {
			failed = true
			break
		}

		count, err := c.runStep(ctx, s)
		if err != nil {
			failed = true
			c.log.Debug().Err(err).Str("step", s.name).Str("title", title).Msg("Library lookup step failed, continuing")
			continue
		}

		if count > 0 {
			presence := Presence{InLibrary: true, MatchCount: count, MatchedBy: s.name}
			c.cache.Set(key, presence, ttlcache.DefaultTTL)
			c.metrics.ObservePresence(s.name)
			return presence
		}
	}

	presence := Presence{InLibrary: false}
	if !failed {
		c.cache.Set(key, presence, ttlcache.DefaultTTL)
	}
	c.metrics.ObservePresence("")
	return presence
}

func (c *Checker) runStep(ctx context.Context, s step) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	defer cancel()

	start := time.Now()
	defer c.metrics.ObserveUpstream("calibre", start)

	return c.searcher.Count(ctx, s.query)
}

// CheckBatch checks every book concurrently and returns presence keyed by book id.
// Failures for one book never affect the others; they report false.
func (c *Checker) CheckBatch(ctx context.Context, books []models.BookRef) map[string]bool {
	results := make(map[string]bool, len(books))
	if len(books) == 0 {
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for _, book := range books {
		g.Go(func() error {
			presence := c.CheckPresence(gctx, book.Title, book.Author, book.ISBN)

			mu.Lock()
			results[book.ID.String()] = presence.InLibrary
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	return results
}

func presenceKey(title, author, isbn string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(strings.ToLower(strings.TrimSpace(title)))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strings.ToLower(strings.TrimSpace(author)))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strings.TrimSpace(isbn))
	return h.Sum64()
}
