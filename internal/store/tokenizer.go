package store

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeWhitespace collapses every run of Unicode whitespace into a
// single space and trims both ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Tokenize lowercases text and splits it on every rune that is not a letter
// or digit. Empty tokens are dropped.
//
// Every lexical backend tokenizes both the corpus and the query with this
// function so that index-time and query-time terms always agree.
//
// Examples:
//   - "Refund Policy" -> ["refund", "policy"]
//   - "e-mail, v2.0!" -> ["e", "mail", "v2", "0"]
func Tokenize(s string) []string {
	spans := tokenSpans(s)
	// Return empty slice, not nil, for consistent API behavior
	tokens := make([]string, 0, len(spans))
	for _, sp := range spans {
		tokens = append(tokens, strings.ToLower(s[sp.start:sp.end]))
	}
	return tokens
}

// span is a byte range [start, end) of one token in the source text.
type span struct {
	start, end int
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// tokenSpans returns the byte ranges of maximal letter/digit runs in s.
func tokenSpans(s string) []span {
	var spans []span
	start := -1
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			spans = append(spans, span{start, i})
			start = -1
		}
		i += size
	}
	if start >= 0 {
		spans = append(spans, span{start, len(s)})
	}
	return spans
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
