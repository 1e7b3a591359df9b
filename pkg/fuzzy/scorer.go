package fuzzy

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/cases"
)

// Scorer names accepted by ScorerByName.
const (
	AlgorithmBitap       = "bitap"
	AlgorithmLevenshtein = "levenshtein"
	AlgorithmJaroWinkler = "jaro-winkler"
	AlgorithmSubsequence = "subsequence"
)

// Algorithms lists every supported scorer name.
var Algorithms = []string{AlgorithmBitap, AlgorithmLevenshtein, AlgorithmJaroWinkler, AlgorithmSubsequence}

// ScorerByName returns the scorer for a configured algorithm name.
// location and distance only apply to bitap.
func ScorerByName(name string, location, distance int) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AlgorithmBitap:
		return Bitap{Location: location, Distance: distance}, nil
	case AlgorithmLevenshtein:
		return EditDistance{Algorithm: edlib.Levenshtein}, nil
	case AlgorithmJaroWinkler:
		return EditDistance{Algorithm: edlib.JaroWinkler}, nil
	case AlgorithmSubsequence:
		return Subsequence{}, nil
	default:
		return nil, fmt.Errorf("unknown fuzzy algorithm %q", name)
	}
}

// fold gives the case-insensitive form used by every scorer. Whitespace is kept.
func fold(s string) string {
	return cases.Fold().String(s)
}

// EditDistance compares whole strings with a go-edlib similarity algorithm.
type EditDistance struct {
	Algorithm edlib.Algorithm
}

// Dissimilarity returns 1 - similarity.
func (e EditDistance) Dissimilarity(pattern, text string) float64 {
	a, b := fold(pattern), fold(text)
	if a == b {
		return 0
	}
	if a == "" || b == "" {
		return 1
	}
	sim, err := edlib.StringsSimilarity(a, b, e.Algorithm)
	if err != nil {
		return 1
	}
	return clamp(1 - float64(sim))
}

// Subsequence accepts text only when pattern's characters appear in it in order.
// The score is the share of text left unmatched.
type Subsequence struct{}

// Dissimilarity implements Scorer.
func (Subsequence) Dissimilarity(pattern, text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 1
	}
	rank := fuzzy.RankMatchNormalizedFold(pattern, text)
	if rank < 0 {
		return 1
	}
	return clamp(float64(rank) / float64(n))
}
