// Package tokenizer normalises tweet text into index terms. It strips a fixed
// punctuation set, lower-cases, removes emoji and pictograph code points,
// replaces the escaped "newline"/"tab" markers with spaces and splits on
// whitespace. There is no stemming and no stop-word removal.
package tokenizer

import (
	"slices"
	"strings"
	"unicode"
)

// punctuation is removed before lower-casing, so "New.line" still collapses
// to the "newline" marker below.
var punctuation = strings.NewReplacer(
	"[", "", "]", "",
	".", "", ",", "",
	"(", "", ")", "",
	"?", "", "!", "",
	`"`, "", "'", "",
	"@", "", ":", "", "#", "",
)

// escapes are artifacts of the upstream export, not real control codes.
var escapes = strings.NewReplacer(
	"newline", " ",
	"tab", " ",
)

// pictographs covers regional indicators, pictographs, emoticons, transport,
// alchemical, geometric-extended, supplemental arrows and symbols, chess
// symbols and dingbats.
var pictographs = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2702, Hi: 0x27B0, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1F1E0, Hi: 0x1F1FF, Stride: 1},
		{Lo: 0x1F300, Hi: 0x1F5FF, Stride: 1},
		{Lo: 0x1F600, Hi: 0x1F64F, Stride: 1},
		{Lo: 0x1F680, Hi: 0x1F6FF, Stride: 1},
		{Lo: 0x1F700, Hi: 0x1F77F, Stride: 1},
		{Lo: 0x1F780, Hi: 0x1F7FF, Stride: 1},
		{Lo: 0x1F800, Hi: 0x1F8FF, Stride: 1},
		{Lo: 0x1F900, Hi: 0x1F9FF, Stride: 1},
		{Lo: 0x1FA00, Hi: 0x1FA6F, Stride: 1},
		{Lo: 0x1FA70, Hi: 0x1FAFF, Stride: 1},
	},
}

// Token is a normalised term together with the ordinal of its first
// occurrence in the document.
type Token struct {
	Term     string
	Position int
}

// Tokenize returns the distinct terms of text in first-occurrence order.
func Tokenize(text string) []Token {
	words := strings.Fields(clean(text))
	tokens := make([]Token, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, word := range words {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, Token{
			Term:     word,
			Position: len(tokens),
		})
	}
	return tokens
}

// Normalize returns the term set of text in ascending order. Empty or
// degenerate input yields an empty, non-nil slice.
func Normalize(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, tok.Term)
	}
	slices.Sort(terms)
	return terms
}

func clean(text string) string {
	text = punctuation.Replace(text)
	text = strings.ToLower(text)
	text = stripPictographs(text)
	return escapes.Replace(text)
}

func stripPictographs(text string) string {
	if !strings.ContainsFunc(text, isPictograph) {
		return text
	}
	return strings.Map(func(r rune) rune {
		if isPictograph(r) {
			return -1
		}
		return r
	}, text)
}

func isPictograph(r rune) bool {
	return unicode.Is(pictographs, r)
}
