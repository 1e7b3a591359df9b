// Package fuzzy implements weighted multi-field approximate matching over term
// records. Each configured field is scored by a Scorer, the per-field
// dissimilarities are penalised by field weight, and a record's score is the best
// penalised field score. Lower is better; 0 is a perfect match.
package fuzzy

import (
	"math"
	"sort"
	"strings"

	"github.com/japaniel/termlookup/pkg/term"
)

// Field describes one searchable field of a record and its relative weight.
type Field struct {
	Name   string
	Weight float64
	Value  func(term.Record) string
}

// DefaultFields are the fields searched by the resolver: Chinese term counts the
// most, full pinyin the least.
var DefaultFields = []Field{
	{Name: "chinese_term", Weight: 0.5, Value: func(r term.Record) string { return r.ChineseTerm }},
	{Name: "english_term", Weight: 0.3, Value: func(r term.Record) string { return r.EnglishTerm }},
	{Name: "pinyin_full", Weight: 0.2, Value: func(r term.Record) string { return r.PinyinFull.OrEmpty() }},
}

// Hit is a record that passed the threshold, with the field that scored best.
type Hit struct {
	Record term.Record
	Score  float64
	Field  string
}

// Searcher is anything that can answer an approximate query.
type Searcher interface {
	Search(query string, threshold float64) []Hit
}

// Scorer measures how far pattern is from text, in [0,1].
type Scorer interface {
	Dissimilarity(pattern, text string) float64
}

// Index holds the field values of a fixed record set, extracted once.
type Index struct {
	records []term.Record
	fields  []Field
	// exponents[i] = maxWeight / fields[i].Weight
	exponents []float64
	values    [][]string
	scorer    Scorer
}

// NewIndex extracts the configured fields from records. Fields with a
// non-positive weight are ignored. A nil scorer means Bitap with defaults.
func NewIndex(records []term.Record, fields []Field, scorer Scorer) *Index {
	if scorer == nil {
		scorer = NewBitap()
	}
	var kept []Field
	maxWeight := 0.0
	for _, f := range fields {
		if f.Weight <= 0 || f.Value == nil {
			continue
		}
		kept = append(kept, f)
		if f.Weight > maxWeight {
			maxWeight = f.Weight
		}
	}
	exps := make([]float64, len(kept))
	for i, f := range kept {
		exps[i] = maxWeight / f.Weight
	}

	values := make([][]string, len(records))
	for i, r := range records {
		row := make([]string, len(kept))
		for j, f := range kept {
			row[j] = f.Value(r)
		}
		values[i] = row
	}
	return &Index{
		records:   records,
		fields:    kept,
		exponents: exps,
		values:    values,
		scorer:    scorer,
	}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int { return len(ix.records) }

// Search scores every record against query and returns those whose score does not
// exceed threshold, best first. Ties keep index order. threshold is clamped to [0,1].
func (ix *Index) Search(query string, threshold float64) []Hit {
	if strings.TrimSpace(query) == "" || len(ix.fields) == 0 {
		return nil
	}
	threshold = clamp(threshold)

	var hits []Hit
	for i, row := range ix.values {
		best := math.Inf(1)
		bestField := ""
		for j, v := range row {
			if v == "" {
				continue
			}
			d := ix.scorer.Dissimilarity(query, v)
			s := weighted(d, ix.exponents[j])
			if s < best {
				best = s
				bestField = ix.fields[j].Name
			}
		}
		if bestField == "" || best > threshold {
			continue
		}
		hits = append(hits, Hit{Record: ix.records[i], Score: best, Field: bestField})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score < hits[b].Score
	})
	return hits
}

// weighted penalises a dissimilarity found on a lighter field. The heaviest field
// (exp == 1) keeps d unchanged, and a perfect hit stays 0 on every field.
func weighted(d, exp float64) float64 {
	d = clamp(d)
	if exp == 1 {
		return d
	}
	return clamp(1 - math.Pow(1-d, exp))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
