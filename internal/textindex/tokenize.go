// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textindex tokenizes documents and computes IDF-weighted set
// similarity through an inverted index.
package textindex

import (
	"strings"
	"unicode"
)

// Tokenize converts raw text into an ordered sequence of normalized
// tokens: lowercased, letters and digits only (accented letters kept),
// tokens shorter than minLen dropped. Pure per-document function; the
// same input always yields the same sequence.
func Tokenize(text string, minLen int) []string {
	if minLen < 1 {
		minLen = 1
	}
	var tokens []string
	var b strings.Builder

	flush := func() {
		if b.Len() > 0 {
			tok := b.String()
			if len([]rune(tok)) >= minLen {
				tokens = append(tokens, tok)
			}
			b.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string, minLen int) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text, minLen) {
		set[tok] = struct{}{}
	}
	return set
}

// TermFreq returns token occurrence counts for text.
func TermFreq(text string, minLen int) map[string]int {
	freq := make(map[string]int)
	for _, tok := range Tokenize(text, minLen) {
		freq[tok]++
	}
	return freq
}
