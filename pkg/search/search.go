// Package search resolves a query against the user and system dictionaries.
//
// Resolution is staged and stops at the first stage that yields anything:
// exact user match, exact system match, pinyin match, then fuzzy match.
// Results from one call therefore never mix stages.
package search

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/japaniel/termlookup/pkg/fuzzy"
	"github.com/japaniel/termlookup/pkg/term"
)

// Options tune the fuzzy stage. The zero value uses fuzzy.DefaultFields and the
// default bitap scorer.
type Options struct {
	Fields []fuzzy.Field
	Scorer fuzzy.Scorer
	// NewSearcher overrides how the fuzzy index is built. Fields and Scorer are
	// ignored when it is set.
	NewSearcher func(records []term.Record) fuzzy.Searcher
	Logger      *zap.Logger
}

// Resolve runs the full pipeline for one query. It builds a fresh Snapshot on
// every call; callers resolving many queries against the same term sets should
// build a Snapshot once instead.
func Resolve(query string, userTerms, systemTerms []term.Record, fuzzyThreshold float64) []term.MatchResult {
	return NewSnapshot(userTerms, systemTerms, Options{}).Resolve(query, fuzzyThreshold)
}

type phoneticKey struct {
	full  string
	first string
}

// Snapshot holds precomputed lookup keys for a fixed pair of term collections.
// It never modifies the collections and is safe for concurrent use.
type Snapshot struct {
	user   []term.Record
	system []term.Record
	// normalized chinese/english term -> positions in user/system, ascending
	userKeys   map[string][]int
	systemKeys map[string][]int
	// aligned with all
	all      []term.Record
	phonetic []phoneticKey

	opts      Options
	logger    *zap.Logger
	fuzzyOnce sync.Once
	searcher  fuzzy.Searcher
}

// NewSnapshot indexes userTerms and systemTerms for resolution.
func NewSnapshot(userTerms, systemTerms []term.Record, opts Options) *Snapshot {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	all := make([]term.Record, 0, len(userTerms)+len(systemTerms))
	all = append(all, userTerms...)
	all = append(all, systemTerms...)

	phonetic := make([]phoneticKey, len(all))
	for i, r := range all {
		phonetic[i] = phoneticKey{
			full:  Normalize(r.PinyinFull.OrEmpty()),
			first: Normalize(r.PinyinFirst.OrEmpty()),
		}
	}

	return &Snapshot{
		user:       userTerms,
		system:     systemTerms,
		userKeys:   exactKeys(userTerms),
		systemKeys: exactKeys(systemTerms),
		all:        all,
		phonetic:   phonetic,
		opts:       opts,
		logger:     logger,
	}
}

func exactKeys(records []term.Record) map[string][]int {
	idx := make(map[string][]int)
	add := func(key string, pos int) {
		if key == "" {
			return
		}
		list := idx[key]
		// chinese and english may normalize to the same key
		if n := len(list); n > 0 && list[n-1] == pos {
			return
		}
		idx[key] = append(list, pos)
	}
	for i, r := range records {
		add(Normalize(r.ChineseTerm), i)
		add(Normalize(r.EnglishTerm), i)
	}
	return idx
}

// Resolve returns the ranked matches for query. An empty result means either the
// trimmed query was empty or nothing matched; callers that need to tell these
// apart check the query themselves.
func (s *Snapshot) Resolve(query string, fuzzyThreshold float64) []term.MatchResult {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []term.MatchResult{}
	}
	q := Normalize(trimmed)

	if res := s.exact(s.user, s.userKeys, q, term.MatchExactUser); len(res) > 0 {
		s.logStage(trimmed, term.MatchExactUser, len(res))
		return res
	}
	if res := s.exact(s.system, s.systemKeys, q, term.MatchExactSystem); len(res) > 0 {
		s.logStage(trimmed, term.MatchExactSystem, len(res))
		return res
	}
	if res := s.pinyin(q); len(res) > 0 {
		s.logStage(trimmed, res[0].MatchType, len(res))
		return res
	}
	// The fuzzy stage receives the trimmed query as typed; scorers fold case
	// themselves but whitespace is not removed.
	if res := s.fuzzyMatch(trimmed, fuzzyThreshold); len(res) > 0 {
		s.logStage(trimmed, term.MatchFuzzy, len(res))
		return res
	}

	s.logger.Debug("no match", zap.String("query", trimmed))
	return []term.MatchResult{}
}

func (s *Snapshot) logStage(query string, stage term.MatchType, n int) {
	s.logger.Debug("query resolved",
		zap.String("query", query),
		zap.String("stage", string(stage)),
		zap.Int("results", n),
	)
}

func (s *Snapshot) exact(records []term.Record, keys map[string][]int, q string, mt term.MatchType) []term.MatchResult {
	positions := keys[q]
	if len(positions) == 0 {
		return nil
	}
	out := make([]term.MatchResult, 0, len(positions))
	for _, i := range positions {
		out = append(out, term.MatchResult{Record: records[i], MatchType: mt})
	}
	return out
}

func (s *Snapshot) pinyin(q string) []term.MatchResult {
	var out []term.MatchResult
	for i, r := range s.all {
		if !r.HasPhonetic() {
			continue
		}
		k := s.phonetic[i]
		// A full-pinyin hit wins; the initials rule is only tried otherwise.
		if k.full != "" && strings.Contains(k.full, q) {
			out = append(out, term.MatchResult{Record: r, MatchType: term.MatchPinyinFull})
			continue
		}
		if k.first != "" && k.first == q {
			out = append(out, term.MatchResult{Record: r, MatchType: term.MatchPinyinInitial})
		}
	}
	return out
}

func (s *Snapshot) fuzzyMatch(query string, threshold float64) []term.MatchResult {
	s.fuzzyOnce.Do(func() {
		if s.opts.NewSearcher != nil {
			s.searcher = s.opts.NewSearcher(s.all)
			return
		}
		fields := s.opts.Fields
		if len(fields) == 0 {
			fields = fuzzy.DefaultFields
		}
		s.searcher = fuzzy.NewIndex(s.all, fields, s.opts.Scorer)
	})

	hits := s.searcher.Search(query, threshold)
	if len(hits) == 0 {
		return nil
	}
	out := make([]term.MatchResult, len(hits))
	for i, h := range hits {
		score := h.Score
		out[i] = term.MatchResult{Record: h.Record, MatchType: term.MatchFuzzy, Score: &score}
	}
	return out
}
