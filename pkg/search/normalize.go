package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Normalize case-folds s and removes every whitespace character.
// It is the comparison basis for the exact and phonetic stages.
func Normalize(s string) string {
	folded := cases.Fold().String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}
