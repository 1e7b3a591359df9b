package db

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/japaniel/termlookup/pkg/term"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateUserTerm(t *testing.T) {
	db := setupTestDB(t)
	rec, err := CreateUserTerm(db, UserTermInput{
		ChineseTerm:            " 高血压 ",
		EnglishTerm:            "HTN (custom)",
		MistranslationWarnings: []string{"high blood", " "},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(rec.ID, "usr_") {
		t.Fatalf("unexpected id %q", rec.ID)
	}
	if rec.ChineseTerm != "高血压" || rec.Source != term.SourceUser {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.PinyinFull != term.Some("gaoxueya") || rec.PinyinFirst != term.Some("gxy") {
		t.Fatalf("expected derived pinyin, got %+v / %+v", rec.PinyinFull, rec.PinyinFirst)
	}

	got, err := GetUserTerm(db, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EnglishTerm != "HTN (custom)" || len(got.MistranslationWarnings) != 1 || got.PinyinFirst != term.Some("gxy") {
		t.Fatalf("stored record mismatch: %+v", got)
	}
}

func TestCreateUserTermValidation(t *testing.T) {
	db := setupTestDB(t)
	bad := []UserTermInput{
		{ChineseTerm: "", EnglishTerm: "fever"},
		{ChineseTerm: "发热", EnglishTerm: "   "},
	}
	for _, in := range bad {
		if _, err := CreateUserTerm(db, in); err == nil {
			t.Errorf("expected validation error for %+v", in)
		}
	}
	terms, err := ListUserTerms(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(terms) != 0 {
		t.Fatalf("invalid terms must not be stored, got %d", len(terms))
	}
}

func TestAbsentPinyinStaysNull(t *testing.T) {
	db := setupTestDB(t)
	rec, err := CreateUserTerm(db, UserTermInput{ChineseTerm: "CT", EnglishTerm: "computed tomography"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := GetUserTerm(db, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PinyinFull.Valid || got.PinyinFirst.Valid {
		t.Fatalf("expected absent pinyin, got %+v", got)
	}
}

func TestListUserTermsOrder(t *testing.T) {
	db := setupTestDB(t)
	var want []string
	for _, c := range []string{"发热", "咳嗽", "头痛"} {
		rec, err := CreateUserTerm(db, UserTermInput{ChineseTerm: c, EnglishTerm: "x"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		want = append(want, rec.ID)
	}
	terms, err := ListUserTerms(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(terms) != 3 {
		t.Fatalf("expected 3 terms, got %d", len(terms))
	}
	for i := range want {
		if terms[i].ID != want[i] {
			t.Fatalf("order mismatch at %d: %s != %s", i, terms[i].ID, want[i])
		}
	}
}

func TestUpdateAndDeleteUserTerm(t *testing.T) {
	db := setupTestDB(t)
	rec, err := CreateUserTerm(db, UserTermInput{ChineseTerm: "发热", EnglishTerm: "fever"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, err := UpdateUserTerm(db, rec.ID, UserTermInput{ChineseTerm: "发烧", EnglishTerm: "pyrexia", Note: "colloquial"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.PinyinFull != term.Some("fashao") {
		t.Fatalf("pinyin should follow the new Chinese term, got %+v", updated.PinyinFull)
	}
	got, err := GetUserTerm(db, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EnglishTerm != "pyrexia" || got.Note != "colloquial" {
		t.Fatalf("update not stored: %+v", got)
	}

	if _, err := UpdateUserTerm(db, "usr_missing", UserTermInput{ChineseTerm: "a", EnglishTerm: "b"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := ToggleFavorite(db, rec.ID); err != nil {
		t.Fatalf("favorite: %v", err)
	}
	if err := DeleteUserTerm(db, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetUserTerm(db, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	favs, err := ListFavorites(db)
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if len(favs) != 0 {
		t.Fatalf("favorite should be removed with the term, got %v", favs)
	}
	if err := DeleteUserTerm(db, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestInsertDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	rec := term.Record{ID: "usr_fixed", ChineseTerm: "发热", EnglishTerm: "fever"}
	if err := InsertUserTerm(db, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := InsertUserTerm(db, rec); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	db := setupTestDB(t)
	on, err := ToggleFavorite(db, "sys_3")
	if err != nil || !on {
		t.Fatalf("expected favorite on, got %v %v", on, err)
	}
	if _, err := ToggleFavorite(db, "sys_1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	favs, err := ListFavorites(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(favs) != 2 || favs[0] != "sys_3" || favs[1] != "sys_1" {
		t.Fatalf("unexpected favorites %v", favs)
	}
	on, err = ToggleFavorite(db, "sys_3")
	if err != nil || on {
		t.Fatalf("expected favorite off, got %v %v", on, err)
	}
	if _, err := ToggleFavorite(db, " "); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestHistory(t *testing.T) {
	db := setupTestDB(t)
	if err := AddHistory(db, "高血压", "高血压", string(term.MatchExactSystem)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := AddHistory(db, "xyz", "", ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := AddHistory(db, "  ", "", ""); err == nil {
		t.Fatal("expected error for empty query")
	}

	hist, err := ListHistory(db, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(hist) != 2 || hist[0].Query != "xyz" || hist[1].MatchType != "exact-system" {
		t.Fatalf("unexpected history %+v", hist)
	}
	if hist[1].SearchedAt.IsZero() {
		t.Fatal("expected searched_at to be set")
	}

	hist, err = ListHistory(db, 1)
	if err != nil || len(hist) != 1 {
		t.Fatalf("limit: %v %v", hist, err)
	}

	if err := ClearHistory(db); err != nil {
		t.Fatalf("clear: %v", err)
	}
	hist, _ = ListHistory(db, 0)
	if len(hist) != 0 {
		t.Fatalf("expected empty history, got %d", len(hist))
	}
}

func TestClampThreshold(t *testing.T) {
	tests := []struct{ in, out float64 }{
		{-1, 0},
		{0, 0},
		{0.26, 0.3},
		{0.3, 0.3},
		{0.6, 0.6},
		{0.95, 0.6},
	}
	for _, tt := range tests {
		if got := ClampThreshold(tt.in); got != tt.out {
			t.Errorf("ClampThreshold(%v) = %v; want %v", tt.in, got, tt.out)
		}
	}
}

func TestFuzzyThresholdSetting(t *testing.T) {
	db := setupTestDB(t)
	v, err := GetFuzzyThreshold(db, 0.3)
	if err != nil || v != 0.3 {
		t.Fatalf("expected fallback 0.3, got %v %v", v, err)
	}
	stored, err := SetFuzzyThreshold(db, 0.9)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if stored != 0.6 {
		t.Fatalf("expected clamp to 0.6, got %v", stored)
	}
	if _, err := SetFuzzyThreshold(db, 0.1); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err = GetFuzzyThreshold(db, 0.3)
	if err != nil || v != 0.1 {
		t.Fatalf("expected 0.1, got %v %v", v, err)
	}
}
