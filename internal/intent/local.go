package intent

import (
	"context"
	"regexp"
	"strings"
	"unicode"
)

// Defaults used when stripping leaves nothing to search for.
const (
	DefaultYouTubeQuery = "trending"
	DefaultGoogleQuery  = "latest news"
)

var domainPattern = regexp.MustCompile(`[a-z0-9-]+\.(?:com|in|org|net|io|gov|edu)\b`)

var (
	mediaKeywords = []string{"youtube", "song", "video", "music", "gaana", "play"}

	// Stripped from YouTube queries in addition to mediaKeywords. "chalao"
	// and "bajao" are the Hindi verbs for play.
	mediaFillers = []string{"search", "karo", "par", "pe", "chalao", "bajao"}

	googleFillers = []string{
		"google", "search", "karo", "par", "pe", "me", "on", "in", "find",
		"ke", "ka", "ki", "ko",
	}
)

// LocalRules is the network-free classifier. Its rules are evaluated in
// order and the first match wins:
//
//  1. a domain token (word.tld) resolves to [Website] with the domain as target
//  2. a media keyword resolves to [YouTube] with the remaining words as query
//  3. everything else resolves to [Google]
//
// LocalRules never fails.
type LocalRules struct{}

var _ Classifier = LocalRules{}

type localRule struct {
	name string
	// catchAll marks the rule that matches any input.
	catchAll bool
	apply    func(text string, tokens []string) (Resolved, bool)
}

var localRules = []localRule{
	{name: "website", apply: func(text string, _ []string) (Resolved, bool) {
		m := domainPattern.FindString(text)
		if m == "" {
			return Resolved{}, false
		}
		return Resolved{Category: Website, Target: m}, true
	}},
	{name: "youtube", apply: func(_ string, tokens []string) (Resolved, bool) {
		if !containsAny(tokens, mediaKeywords) {
			return Resolved{}, false
		}
		q := strip(tokens, true, mediaKeywords, mediaFillers)
		if q == "" {
			q = DefaultYouTubeQuery
		}
		return Resolved{Category: YouTube, Target: q}, true
	}},
	{name: "google", catchAll: true, apply: func(_ string, tokens []string) (Resolved, bool) {
		q := strip(tokens, false, googleFillers)
		if q == "" {
			q = DefaultGoogleQuery
		}
		return Resolved{Category: Google, Target: q}, true
	}},
}

// Understand applies the rule list to text.
func (LocalRules) Understand(text string) Resolved {
	res, _ := evaluate(text, true)
	return res
}

// Cue applies every rule except the catch-all Google search. It reports
// false when text carries no website or media cue.
func (LocalRules) Cue(text string) (Resolved, bool) {
	return evaluate(text, false)
}

func evaluate(text string, catchAll bool) (Resolved, bool) {
	norm := NormalizeSpokenDomain(strings.ToLower(strings.TrimSpace(text)))
	tokens := strings.Fields(norm)
	for _, r := range localRules {
		if r.catchAll && !catchAll {
			continue
		}
		if res, ok := r.apply(norm, tokens); ok {
			res.Source = SourceLocal
			return res, true
		}
	}
	return Resolved{}, false
}

// Classify implements [Classifier].
func (l LocalRules) Classify(_ context.Context, text string) (Resolved, error) {
	return l.Understand(text), nil
}

// NormalizeSpokenDomain rewrites a spoken " dot " between words into a
// literal dot, so "github dot com" becomes "github.com".
func NormalizeSpokenDomain(text string) string {
	return strings.ReplaceAll(text, " dot ", ".")
}

// bare lowercases a token and trims surrounding punctuation.
func bare(tok string) string {
	return strings.TrimFunc(strings.ToLower(tok), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// matchesWord reports whether tok is word, or its plural when plural is set.
func matchesWord(tok, word string, plural bool) bool {
	return tok == word || (plural && tok == word+"s")
}

func containsAny(tokens, words []string) bool {
	for _, t := range tokens {
		b := bare(t)
		for _, w := range words {
			if matchesWord(b, w, true) {
				return true
			}
		}
	}
	return false
}

// strip removes every token found in any of the word lists and joins the
// rest with single spaces. With plural set, "songs" counts as "song".
func strip(tokens []string, plural bool, lists ...[]string) string {
	kept := make([]string, 0, len(tokens))
next:
	for _, t := range tokens {
		b := bare(t)
		for _, words := range lists {
			for _, w := range words {
				if matchesWord(b, w, plural) {
					continue next
				}
			}
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}
