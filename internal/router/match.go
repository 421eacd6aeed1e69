package router

import (
	"strings"
	"unicode"
)

// tokenize lowercases text and splits it into words without surrounding
// punctuation.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '%'
		})
		f = strings.TrimSuffix(f, "%")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// hasPhrase reports whether the words of phrase occur consecutively in
// tokens. The last word may carry a plural "s". A word ending in "*"
// matches any token with that prefix, so "band kar*" covers "band karo"
// and "band kardo".
func hasPhrase(tokens []string, phrase string) bool {
	words := strings.Fields(phrase)
	if len(words) == 0 || len(words) > len(tokens) {
		return false
	}
	last := len(words) - 1
outer:
	for i := 0; i+len(words) <= len(tokens); i++ {
		for j, w := range words {
			tok := tokens[i+j]
			if prefix, ok := strings.CutSuffix(w, "*"); ok {
				if strings.HasPrefix(tok, prefix) {
					continue
				}
				continue outer
			}
			if tok == w || (j == last && tok == w+"s") {
				continue
			}
			continue outer
		}
		return true
	}
	return false
}

// hasAny reports whether any phrase occurs in tokens.
func hasAny(tokens []string, phrases ...string) bool {
	for _, p := range phrases {
		if hasPhrase(tokens, p) {
			return true
		}
	}
	return false
}
