package contacts

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a name whose
// Double Metaphone codes overlap the spoken word. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a name without
// phonetic overlap. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher ranks candidate names against a spoken name. It is read-only
// after construction.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewMatcher returns a Matcher with the default thresholds.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the name from names closest to spoken. Phonetic candidates
// always beat purely fuzzy ones.
func (m *Matcher) Match(spoken string, names []string) (name string, score float64, ok bool) {
	spoken = strings.ToLower(strings.TrimSpace(spoken))
	if spoken == "" || len(names) == 0 {
		return "", 0, false
	}
	tokens := strings.Fields(spoken)
	codes := metaphoneCodes(tokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, n := range names {
		lower := strings.ToLower(n)
		nTokens := strings.Fields(lower)
		if len(nTokens) == 0 {
			continue
		}
		s := similarity(tokens, nTokens)
		phonetic := overlaps(codes, metaphoneCodes(nTokens))
		switch {
		case phonetic && s >= m.phoneticThreshold:
			if !bestPhonetic || s > bestScore {
				best, bestScore, bestPhonetic = n, s, true
			}
		case !phonetic && !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore:
			best, bestScore = n, s
		}
	}
	return best, bestScore, best != ""
}

func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, 2*len(tokens))
	for _, t := range tokens {
		primary, secondary := matchr.DoubleMetaphone(t)
		for _, c := range []string{primary, secondary} {
			if c != "" {
				codes[c] = struct{}{}
			}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score over the full strings, the
// space-stripped strings and every token pair.
func similarity(a, b []string) float64 {
	score := matchr.JaroWinkler(strings.Join(a, " "), strings.Join(b, " "), false)
	if len(a) > 1 || len(b) > 1 {
		score = max(score, matchr.JaroWinkler(strings.Join(a, ""), strings.Join(b, ""), false))
	}
	for _, x := range a {
		for _, y := range b {
			score = max(score, matchr.JaroWinkler(x, y, false))
		}
	}
	return score
}
