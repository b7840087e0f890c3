// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releases filters indexer results down to usable ebook releases and ranks them.
package releases

import (
	"slices"
	"strings"
	"sync"

	"github.com/expr-lang/expr/vm"
	"github.com/moistari/rls"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/liberry/internal/models"
)

const (
	ReasonNoResults      = "No results found in indexers"
	ReasonFilteredEmpty  = "No ebook results found (only audiobooks available)"
	ReasonFilterRejected = "No ebook results matched the release filter"
)

var (
	audiobookSignatures = []string{"audiobook", "audio book", ".m4b", ".mp3"}
	// azw and azw3 overlap on purpose; these are existence checks.
	ebookSignatures = []string{"epub", "mobi", "pdf", "azw", "azw3"}
)

// Outcome tells callers why a selection did or did not produce a candidate.
type Outcome int

const (
	OutcomeSelected Outcome = iota
	OutcomeNoResults
	OutcomeFilteredEmpty
	// OutcomeFilterRejected: ebook releases existed but the release filter expression removed all of them.
	OutcomeFilterRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelected:
		return "selected"
	case OutcomeNoResults:
		return "no_results"
	case OutcomeFilteredEmpty:
		return "filtered_empty"
	case OutcomeFilterRejected:
		return "filter_rejected"
	default:
		return "unknown"
	}
}

// Reason returns the user-facing message for an empty outcome.
func (o Outcome) Reason() string {
	switch o {
	case OutcomeNoResults:
		return ReasonNoResults
	case OutcomeFilteredEmpty:
		return ReasonFilteredEmpty
	case OutcomeFilterRejected:
		return ReasonFilterRejected
	default:
		return ""
	}
}

// Selection is the result of SelectBest.
type Selection struct {
	Candidate *models.CandidateRelease
	Ranked    []models.CandidateRelease
	Outcome   Outcome
	RawCount  int
}

// Engine filters and ranks indexer results.
type Engine struct {
	log    zerolog.Logger
	parser *ReleaseCache

	mu     sync.RWMutex
	filter *vm.Program
}

// NewEngine builds a ranking engine. filterExpr is an optional release filter expression.
func NewEngine(filterExpr string) (*Engine, error) {
	e := &Engine{
		log:    log.Logger.With().Str("module", "releases").Logger(),
		parser: NewReleaseCache(),
	}
	if err := e.SetFilter(filterExpr); err != nil {
		return nil, err
	}
	return e, nil
}

// SetFilter replaces the release filter expression. Used on config reload.
func (e *Engine) SetFilter(filterExpr string) error {
	program, err := CompileFilter(filterExpr)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.filter = program
	e.mu.Unlock()
	return nil
}

// Rank drops unusable results and orders the rest best first: EPUB before other
// formats, then seeders descending. The sort is stable so ties keep indexer order.
func (e *Engine) Rank(raw []models.RawRelease) []models.CandidateRelease {
	ranked, _ := e.rank(raw)
	return ranked
}

// rank also reports how many ebook releases the filter expression rejected.
func (e *Engine) rank(raw []models.RawRelease) ([]models.CandidateRelease, int) {
	e.mu.RLock()
	filter := e.filter
	e.mu.RUnlock()

	ranked := make([]models.CandidateRelease, 0, len(raw))
	rejected := 0
	for _, r := range raw {
		reason := rejectReason(r)
		if reason != "" {
			e.log.Trace().Str("title", r.Title).Str("reason", reason).Msg("Dropping release")
			continue
		}

		candidate := e.candidateFrom(r)

		if filter != nil {
			keep, err := evalFilter(filter, candidate)
			if err != nil {
				e.log.Warn().Err(err).Str("title", r.Title).Msg("Release filter evaluation failed")
				rejected++
				continue
			}
			if !keep {
				e.log.Trace().Str("title", r.Title).Msg("Release rejected by filter expression")
				rejected++
				continue
			}
		}

		ranked = append(ranked, candidate)
	}

	slices.SortStableFunc(ranked, compareCandidates)

	return ranked, rejected
}

// SelectBest ranks raw and picks the first candidate. An empty input and an input
// where nothing survives filtering produce different outcomes.
func (e *Engine) SelectBest(raw []models.RawRelease) Selection {
	if len(raw) == 0 {
		return Selection{Outcome: OutcomeNoResults}
	}

	ranked, rejected := e.rank(raw)
	best, ok := Best(ranked)
	if !ok {
		outcome := OutcomeFilteredEmpty
		if rejected > 0 {
			outcome = OutcomeFilterRejected
		}
		return Selection{Outcome: outcome, RawCount: len(raw)}
	}

	return Selection{
		Candidate: &best,
		Ranked:    ranked,
		Outcome:   OutcomeSelected,
		RawCount:  len(raw),
	}
}

// Best returns the head of an already ranked slice.
func Best(ranked []models.CandidateRelease) (models.CandidateRelease, bool) {
	if len(ranked) == 0 {
		return models.CandidateRelease{}, false
	}
	return ranked[0], true
}

func (e *Engine) candidateFrom(r models.RawRelease) models.CandidateRelease {
	ref := r.DownloadURL
	if ref == "" {
		ref = r.MagnetURL
	}

	parsed := e.parser.Parse(r.Title)
	if parsed.Type == rls.Audiobook {
		e.log.Debug().Str("title", r.Title).Msg("Release name parses as audiobook but carries an ebook format")
	}

	return models.CandidateRelease{
		Title:       r.Title,
		SizeBytes:   r.Size,
		Seeders:     r.Seeders,
		Indexer:     r.Indexer,
		IndexerID:   r.IndexerID,
		GUID:        r.GUID,
		DownloadRef: ref,
		InfoURL:     r.InfoURL,
		Year:        parsed.Year,
		Group:       parsed.Group,
		Ext:         parsed.Ext,
	}
}

func rejectReason(r models.RawRelease) string {
	if strings.TrimSpace(r.Title) == "" {
		return "missing title"
	}
	if strings.TrimSpace(r.GUID) == "" {
		return "missing guid"
	}
	if IsAudiobook(r.Title) {
		return "audiobook"
	}
	if !HasEbookFormat(r.Title) {
		return "no ebook format"
	}
	return ""
}

// IsAudiobook reports whether title carries an audiobook signature.
func IsAudiobook(title string) bool {
	return containsAny(strings.ToLower(title), audiobookSignatures)
}

// HasEbookFormat reports whether title names at least one ebook format.
func HasEbookFormat(title string) bool {
	return containsAny(strings.ToLower(title), ebookSignatures)
}

// IsEPUB reports whether title mentions the EPUB format.
func IsEPUB(title string) bool {
	return strings.Contains(strings.ToLower(title), "epub")
}

func compareCandidates(a, b models.CandidateRelease) int {
	aEpub, bEpub := IsEPUB(a.Title), IsEPUB(b.Title)
	switch {
	case aEpub && !bEpub:
		return -1
	case !aEpub && bEpub:
		return 1
	}
	return b.SeedCount() - a.SeedCount()
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
