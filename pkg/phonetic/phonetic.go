// Package phonetic derives pinyin spellings for Chinese terms.
package phonetic

import (
	"strings"

	"github.com/mozillazg/go-pinyin"

	"github.com/japaniel/termlookup/pkg/term"
)

// Derive returns the toneless full pinyin and the syllable initials of s.
// Characters without a pinyin reading are skipped, so a term with no Han
// characters yields two empty strings.
func Derive(s string) (full, initials string) {
	a := pinyin.NewArgs()
	syllables := pinyin.LazyPinyin(s, a)
	if len(syllables) == 0 {
		return "", ""
	}
	var b strings.Builder
	for _, syl := range syllables {
		if syl != "" {
			b.WriteByte(syl[0])
		}
	}
	return strings.Join(syllables, ""), b.String()
}

// Fill sets any absent pinyin field of r from its Chinese term. Fields the
// caller supplied, even empty ones, are left alone.
func Fill(r term.Record) term.Record {
	if r.PinyinFull.Valid && r.PinyinFirst.Valid {
		return r
	}
	full, initials := Derive(r.ChineseTerm)
	if full == "" {
		return r
	}
	if !r.PinyinFull.Valid {
		r.PinyinFull = term.Some(full)
	}
	if !r.PinyinFirst.Valid {
		r.PinyinFirst = term.Some(initials)
	}
	return r
}
