package dictionary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/japaniel/termlookup/pkg/term"
)

// Entry matches one object of the system dictionary JSON. Every field is optional.
type Entry struct {
	ChineseTerm    string        `json:"chinese_term"`
	EnglishTerm    string        `json:"english_term"`
	PinyinFull     term.Optional `json:"pinyin_full"`
	PinyinFirst    term.Optional `json:"pinyin_first"`
	Category       string        `json:"category"`
	Note           string        `json:"note"`
	Usage          string        `json:"usage"`
	RootAnalysis   string        `json:"root_analysis"`
	Mistranslation []string      `json:"mistranslation"`
}

// SystemID is the synthetic id of the system entry at index.
func SystemID(index int) string {
	return fmt.Sprintf("sys_%d", index)
}

// NewRecord builds a fully populated record from e. Scalars default to "" and the
// mistranslation list to an empty slice; a blank pinyin field becomes absent.
func NewRecord(e Entry, id string, source term.Source) term.Record {
	warnings := e.Mistranslation
	if warnings == nil {
		warnings = []string{}
	}
	return term.Record{
		ID:                     id,
		ChineseTerm:            e.ChineseTerm,
		EnglishTerm:            e.EnglishTerm,
		PinyinFull:             presentIfSet(e.PinyinFull),
		PinyinFirst:            presentIfSet(e.PinyinFirst),
		Category:               e.Category,
		Note:                   e.Note,
		Usage:                  e.Usage,
		RootAnalysis:           e.RootAnalysis,
		MistranslationWarnings: warnings,
		Source:                 source,
	}
}

func presentIfSet(o term.Optional) term.Optional {
	if v, ok := o.Get(); ok && strings.TrimSpace(v) != "" {
		return term.Some(v)
	}
	return term.None()
}

// Hydrate turns raw entries into system records with ids sys_0, sys_1, ...
func Hydrate(entries []Entry) []term.Record {
	out := make([]term.Record, len(entries))
	for i, e := range entries {
		out[i] = NewRecord(e, SystemID(i), term.SourceSystem)
	}
	return out
}

// ParseEntries decodes a dictionary document. Both a bare array and an object
// wrapper { "terms": [...] } are accepted.
func ParseEntries(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Terms []Entry `json:"terms"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse dictionary object: %w", err)
		}
		return wrapper.Terms, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary array: %w", err)
	}
	return entries, nil
}

// LoadSystemTerms reads and hydrates the dictionary at path.
func LoadSystemTerms(path string) ([]term.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	entries, err := ParseEntries(f)
	if err != nil {
		return nil, err
	}
	return Hydrate(entries), nil
}

// EntryFromRecord converts a record back to the dictionary format, used when
// exporting the user dictionary.
func EntryFromRecord(r term.Record) Entry {
	return Entry{
		ChineseTerm:    r.ChineseTerm,
		EnglishTerm:    r.EnglishTerm,
		PinyinFull:     r.PinyinFull,
		PinyinFirst:    r.PinyinFirst,
		Category:       r.Category,
		Note:           r.Note,
		Usage:          r.Usage,
		RootAnalysis:   r.RootAnalysis,
		Mistranslation: r.MistranslationWarnings,
	}
}

// WriteEntries encodes entries as an indented JSON array.
func WriteEntries(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}
