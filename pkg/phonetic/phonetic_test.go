package phonetic

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/japaniel/termlookup/pkg/term"
)

func TestDerive(t *testing.T) {
	full, initials := Derive("高血压")
	assert.Equal(t, "gaoxueya", full)
	assert.Equal(t, "gxy", initials)

	full, initials = Derive("HIV")
	assert.Empty(t, full)
	assert.Empty(t, initials)
}

func TestFill(t *testing.T) {
	r := Fill(term.Record{ChineseTerm: "糖尿病"})
	assert.Equal(t, term.Some("tangniaobing"), r.PinyinFull)
	assert.Equal(t, term.Some("tnb"), r.PinyinFirst)

	// explicit values win
	r = Fill(term.Record{ChineseTerm: "糖尿病", PinyinFull: term.Some("")})
	assert.Equal(t, term.Some(""), r.PinyinFull)
	assert.Equal(t, term.Some("tnb"), r.PinyinFirst)

	r = Fill(term.Record{ChineseTerm: "CT"})
	assert.False(t, r.PinyinFull.Valid)
	assert.False(t, r.PinyinFirst.Valid)
}
