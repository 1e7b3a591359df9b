package db

import (
	"time"

	"github.com/japaniel/termlookup/pkg/term"
)

// UserTermInput is what the application supplies when creating or editing a
// user term. Chinese and English terms are required; absent pinyin is derived
// from the Chinese term.
type UserTermInput struct {
	ChineseTerm            string `validate:"required"`
	EnglishTerm            string `validate:"required"`
	PinyinFull             term.Optional
	PinyinFirst            term.Optional
	Category               string
	Note                   string
	Usage                  string
	RootAnalysis           string
	MistranslationWarnings []string `validate:"dive,required"`
}

// HistoryEntry is one past lookup.
type HistoryEntry struct {
	ID         int64
	Query      string
	ResultTerm string
	MatchType  string
	SearchedAt time.Time
}
