package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"

	"github.com/japaniel/termlookup/pkg/phonetic"
	"github.com/japaniel/termlookup/pkg/term"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

var (
	// ErrNotFound is returned when a user term id does not exist.
	ErrNotFound = errors.New("user term not found")
	// ErrDuplicateID is returned when inserting a term whose id already exists.
	ErrDuplicateID = errors.New("user term id already exists")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// NewUserID returns a fresh user term id. User ids never collide with the
// sys_<n> ids of the system dictionary.
func NewUserID() string {
	return "usr_" + strings.ToLower(ulid.Make().String())
}

func (in UserTermInput) normalized() UserTermInput {
	in.ChineseTerm = strings.TrimSpace(in.ChineseTerm)
	in.EnglishTerm = strings.TrimSpace(in.EnglishTerm)
	in.Category = strings.TrimSpace(in.Category)
	var warnings []string
	for _, w := range in.MistranslationWarnings {
		if w = strings.TrimSpace(w); w != "" {
			warnings = append(warnings, w)
		}
	}
	in.MistranslationWarnings = warnings
	return in
}

// Record builds the user record with the given id, filling absent pinyin.
func (in UserTermInput) Record(id string) term.Record {
	warnings := in.MistranslationWarnings
	if warnings == nil {
		warnings = []string{}
	}
	return phonetic.Fill(term.Record{
		ID:                     id,
		ChineseTerm:            in.ChineseTerm,
		EnglishTerm:            in.EnglishTerm,
		PinyinFull:             in.PinyinFull,
		PinyinFirst:            in.PinyinFirst,
		Category:               in.Category,
		Note:                   in.Note,
		Usage:                  in.Usage,
		RootAnalysis:           in.RootAnalysis,
		MistranslationWarnings: warnings,
		Source:                 term.SourceUser,
	})
}

// ValidateInput trims in and checks required fields.
func ValidateInput(in UserTermInput) (UserTermInput, error) {
	in = in.normalized()
	if err := validate.Struct(in); err != nil {
		return in, fmt.Errorf("invalid user term: %w", err)
	}
	return in, nil
}

// CreateUserTerm validates in, assigns a new id and stores the term.
func CreateUserTerm(db DBExecutor, in UserTermInput) (term.Record, error) {
	in, err := ValidateInput(in)
	if err != nil {
		return term.Record{}, err
	}
	rec := in.Record(NewUserID())
	if err := InsertUserTerm(db, rec); err != nil {
		return term.Record{}, err
	}
	return rec, nil
}

// InsertUserTerm stores rec as-is.
func InsertUserTerm(db DBExecutor, rec term.Record) error {
	warnings, err := encodeWarnings(rec.MistranslationWarnings)
	if err != nil {
		return err
	}
	_, err = db.Exec(`INSERT INTO user_terms
		(id, chinese_term, english_term, pinyin_full, pinyin_first, category, note, usage, root_analysis, mistranslation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ChineseTerm, rec.EnglishTerm, rec.PinyinFull, rec.PinyinFirst,
		rec.Category, rec.Note, rec.Usage, rec.RootAnalysis, warnings)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
		}
		return fmt.Errorf("insert user term: %w", err)
	}
	return nil
}

// UpdateUserTerm replaces the editable fields of the term with id.
func UpdateUserTerm(db DBExecutor, id string, in UserTermInput) (term.Record, error) {
	in, err := ValidateInput(in)
	if err != nil {
		return term.Record{}, err
	}
	rec := in.Record(id)
	warnings, err := encodeWarnings(rec.MistranslationWarnings)
	if err != nil {
		return term.Record{}, err
	}
	res, err := db.Exec(`UPDATE user_terms SET
		chinese_term = ?, english_term = ?, pinyin_full = ?, pinyin_first = ?,
		category = ?, note = ?, usage = ?, root_analysis = ?, mistranslation = ?,
		updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		rec.ChineseTerm, rec.EnglishTerm, rec.PinyinFull, rec.PinyinFirst,
		rec.Category, rec.Note, rec.Usage, rec.RootAnalysis, warnings, id)
	if err != nil {
		return term.Record{}, fmt.Errorf("update user term: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return term.Record{}, ErrNotFound
	}
	return rec, nil
}

// DeleteUserTerm removes the term and any favorite pointing at it.
func DeleteUserTerm(db DBExecutor, id string) error {
	res, err := db.Exec(`DELETE FROM user_terms WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user term: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	_, err = db.Exec(`DELETE FROM favorites WHERE term_id = ?`, id)
	return err
}

const userTermColumns = `id, chinese_term, english_term, pinyin_full, pinyin_first, category, note, usage, root_analysis, mistranslation`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserTerm(s rowScanner) (term.Record, error) {
	var rec term.Record
	var warnings string
	if err := s.Scan(&rec.ID, &rec.ChineseTerm, &rec.EnglishTerm, &rec.PinyinFull, &rec.PinyinFirst,
		&rec.Category, &rec.Note, &rec.Usage, &rec.RootAnalysis, &warnings); err != nil {
		return term.Record{}, err
	}
	rec.MistranslationWarnings = []string{}
	if warnings != "" {
		if err := json.Unmarshal([]byte(warnings), &rec.MistranslationWarnings); err != nil {
			return term.Record{}, fmt.Errorf("decode mistranslation for %s: %w", rec.ID, err)
		}
	}
	rec.Source = term.SourceUser
	return rec, nil
}

// GetUserTerm returns the term with id.
func GetUserTerm(db DBExecutor, id string) (term.Record, error) {
	rec, err := scanUserTerm(db.QueryRow(`SELECT `+userTermColumns+` FROM user_terms WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return term.Record{}, ErrNotFound
	}
	return rec, err
}

// ListUserTerms returns every user term in creation order.
func ListUserTerms(db DBExecutor) ([]term.Record, error) {
	rows, err := db.Query(`SELECT ` + userTermColumns + ` FROM user_terms ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []term.Record{}
	for rows.Next() {
		rec, err := scanUserTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func encodeWarnings(w []string) (string, error) {
	if w == nil {
		w = []string{}
	}
	b, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ToggleFavorite flips the favorite state of termID and reports the new state.
func ToggleFavorite(db DBExecutor, termID string) (bool, error) {
	termID = strings.TrimSpace(termID)
	if termID == "" {
		return false, fmt.Errorf("termID must be non-empty")
	}
	res, err := db.Exec(`DELETE FROM favorites WHERE term_id = ?`, termID)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return false, nil
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO favorites (term_id) VALUES (?)`, termID); err != nil {
		return false, err
	}
	return true, nil
}

// ListFavorites returns favorite term ids in the order they were added.
func ListFavorites(db DBExecutor) ([]string, error) {
	rows, err := db.Query(`SELECT term_id FROM favorites ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// AddHistory records a lookup. resultTerm is empty when nothing matched.
func AddHistory(db DBExecutor, query, resultTerm, matchType string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("query must be non-empty")
	}
	_, err := db.Exec(`INSERT INTO history (query, result_term, match_type) VALUES (?, ?, ?)`, query, resultTerm, matchType)
	return err
}

// ListHistory returns up to limit entries, newest first. limit <= 0 means all.
func ListHistory(db DBExecutor, limit int) ([]HistoryEntry, error) {
	q := `SELECT id, query, result_term, match_type, searched_at FROM history ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.Query, &h.ResultTerm, &h.MatchType, &h.SearchedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ClearHistory deletes every history entry.
func ClearHistory(db DBExecutor) error {
	_, err := db.Exec(`DELETE FROM history`)
	return err
}

// MaxFuzzyThreshold is the most permissive tolerance the settings accept.
const MaxFuzzyThreshold = 0.6

// ClampThreshold limits v to [0, MaxFuzzyThreshold] in steps of 0.1.
func ClampThreshold(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > MaxFuzzyThreshold {
		v = MaxFuzzyThreshold
	}
	return math.Round(v*10) / 10
}

const fuzzyThresholdKey = "fuzzy_threshold"

// GetFuzzyThreshold returns the stored tolerance, or fallback when unset.
func GetFuzzyThreshold(db DBExecutor, fallback float64) (float64, error) {
	var raw string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, fuzzyThresholdKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("stored fuzzy threshold %q: %w", raw, err)
	}
	return v, nil
}

// SetFuzzyThreshold clamps and stores the tolerance, returning the stored value.
func SetFuzzyThreshold(db DBExecutor, v float64) (float64, error) {
	v = ClampThreshold(v)
	_, err := db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fuzzyThresholdKey, strconv.FormatFloat(v, 'f', 1, 64))
	if err != nil {
		return 0, err
	}
	return v, nil
}
