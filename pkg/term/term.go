package term

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Source tags where a record came from.
type Source string

const (
	SourceUser   Source = "user"
	SourceSystem Source = "system"
)

// Optional is a string that may be absent. Only the two pinyin fields use it;
// every other field of a Record is always present (possibly empty).
type Optional struct {
	String string
	Valid  bool
}

// Some returns a present Optional holding v.
func Some(v string) Optional { return Optional{String: v, Valid: true} }

// None returns an absent Optional.
func None() Optional { return Optional{} }

// Get returns the value and whether it is present.
func (o Optional) Get() (string, bool) { return o.String, o.Valid }

// OrEmpty returns the value, or "" when absent.
func (o Optional) OrEmpty() string {
	if !o.Valid {
		return ""
	}
	return o.String
}

// MarshalJSON encodes an absent value as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.String)
}

// UnmarshalJSON treats null as absent.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*o = Some(s)
	return nil
}

// Scan implements sql.Scanner so NULL columns map to absent.
func (o *Optional) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*o = None()
	case string:
		*o = Some(v)
	case []byte:
		*o = Some(string(v))
	default:
		return fmt.Errorf("term.Optional: cannot scan %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (o Optional) Value() (driver.Value, error) {
	if !o.Valid {
		return nil, nil
	}
	return o.String, nil
}

// Record is a single terminology entry.
type Record struct {
	ID                     string   `json:"id"`
	ChineseTerm            string   `json:"chinese_term"`
	EnglishTerm            string   `json:"english_term"`
	PinyinFull             Optional `json:"pinyin_full"`
	PinyinFirst            Optional `json:"pinyin_first"`
	Category               string   `json:"category"`
	Note                   string   `json:"note"`
	Usage                  string   `json:"usage"`
	RootAnalysis           string   `json:"root_analysis"`
	MistranslationWarnings []string `json:"mistranslation"`
	Source                 Source   `json:"source"`
}

// HasPhonetic reports whether either pinyin field carries a non-empty value.
func (r Record) HasPhonetic() bool {
	return r.PinyinFull.OrEmpty() != "" || r.PinyinFirst.OrEmpty() != ""
}

// MatchType records which resolution stage produced a result.
type MatchType string

const (
	MatchExactUser     MatchType = "exact-user"
	MatchExactSystem   MatchType = "exact-system"
	MatchPinyinFull    MatchType = "pinyin-full"
	MatchPinyinInitial MatchType = "pinyin-initial"
	MatchFuzzy         MatchType = "fuzzy"
)

// Valid reports whether m is one of the known match types.
func (m MatchType) Valid() bool {
	switch m {
	case MatchExactUser, MatchExactSystem, MatchPinyinFull, MatchPinyinInitial, MatchFuzzy:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown match types.
func (m *MatchType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mt := MatchType(s)
	if !mt.Valid() {
		return fmt.Errorf("unknown match type %q", s)
	}
	*m = mt
	return nil
}

// MatchResult is a Record annotated with its provenance.
// Score is set only for fuzzy matches; lower is better and 0 is perfect.
type MatchResult struct {
	Record
	MatchType MatchType `json:"matchType"`
	Score     *float64  `json:"score,omitempty"`
}
