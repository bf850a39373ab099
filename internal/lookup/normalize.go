package lookup

import (
	"strings"
	"unicode"

	"github.com/epimorphics/dclib-sub000/internal/value"
)

// stopWords are dropped from normalized keys.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "and": true, "or": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "by": true,
	"with": true,
}

// Normalize reduces a lookup key to its comparison form.
// The pipeline:
//  1. Fold diacritics.
//  2. Split on case transitions and non-alphanumeric runs.
//  3. Lower-case every token.
//  4. Drop stop words (unless nothing else is left).
//  5. Join with single spaces.
//
// Normalize is idempotent.
//
// Examples:
//   - "theWorldEnds" -> "world ends"
//   - "XMLParser" -> "xml parser"
//   - "Café_au-Lait" -> "cafe au lait"
func Normalize(s string) string {
	return strings.Join(Tokenize(s), " ")
}

// Tokenize returns the normalized tokens of s.
func Tokenize(s string) []string {
	raw := splitWords(value.FoldDiacritics(s))
	if len(raw) == 0 {
		return nil
	}

	kept := make([]string, 0, len(raw))
	for i, t := range raw {
		raw[i] = strings.ToLower(t)
		if !stopWords[raw[i]] {
			kept = append(kept, raw[i])
		}
	}
	if len(kept) == 0 {
		return raw
	}

	return kept
}

// splitWords splits s into alphanumeric runs, further split on camelCase
// and acronym boundaries.
func splitWords(s string) []string {
	var tokens []string

	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()

			continue
		}

		if i > 0 && startsWord(runes, i) {
			flush()
		}

		current.WriteRune(r)
	}
	flush()

	return tokens
}

// startsWord reports whether a new token begins at runes[i].
func startsWord(runes []rune, i int) bool {
	r := runes[i]
	prev := runes[i-1]
	if !unicode.IsUpper(r) {
		return false
	}

	// "worldEnds" -> split before 'E'
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}

	// "XMLParser" -> split before 'P'
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}
