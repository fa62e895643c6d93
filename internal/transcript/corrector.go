package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Correction records one lexicon substitution applied to a transcript.
type Correction struct {
	Original   string
	Corrected  string
	Confidence float64
}

// CorrectorOption is a functional option for configuring a [Corrector].
type CorrectorOption func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the corrector falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// Corrector replaces misheard game terms in a transcript with canonical
// names from a lexicon. Matching runs in two stages: Double Metaphone codes
// pick phonetic candidates, then Jaro-Winkler similarity ranks them. When no
// candidate sounds alike, a stricter pure-similarity pass catches plain
// misspellings.
//
// Multi-word terms are handled by sliding an n-gram window over the
// transcript, longest window first, so "tower of whispers" wins over a
// partial match on "tower". Corrector is read-only after construction and
// safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	terms    []term
	maxWords int
}

// term is a lexicon entry with its phonetic codes precomputed.
type term struct {
	canonical string
	lower     string
	tokens    []string
	codes     map[string]struct{}
}

// NewCorrector builds a Corrector over the given lexicon of canonical game
// terms. An empty lexicon yields a corrector that passes text through
// unchanged.
func NewCorrector(lexicon []string, opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	for _, entry := range lexicon {
		lower := strings.ToLower(strings.TrimSpace(entry))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		c.terms = append(c.terms, term{
			canonical: strings.TrimSpace(entry),
			lower:     lower,
			tokens:    tokens,
			codes:     codesForTokens(tokens),
		})
		if len(tokens) > c.maxWords {
			c.maxWords = len(tokens)
		}
	}
	return c
}

// Correct scans text for misheard lexicon terms and substitutes the
// canonical spellings. The corrected text and the list of substitutions are
// returned; when nothing matches, text comes back unchanged.
//
// Windows that already spell a term exactly are left alone and not reported
// as corrections.
func (c *Corrector) Correct(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 || len(c.terms) == 0 {
		return text, nil
	}

	var output []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		maxN := c.maxWords
		if i+maxN > len(tokens) {
			maxN = len(tokens) - i
		}

		matched := false
		for n := maxN; n >= 1; n-- {
			window := strings.Join(tokens[i:i+n], " ")
			canonical, conf, ok := c.match(window)
			if !ok {
				continue
			}

			output = append(output, strings.Fields(canonical)...)
			if !strings.EqualFold(window, canonical) {
				corrections = append(corrections, Correction{
					Original:   window,
					Corrected:  canonical,
					Confidence: conf,
				})
			}
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(output, " "), corrections
}

// match finds the lexicon term most similar to window, or reports no match.
func (c *Corrector) match(window string) (string, float64, bool) {
	lower := strings.ToLower(strings.TrimSpace(window))
	if lower == "" {
		return window, 0, false
	}
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)

	var (
		bestTerm     string
		bestScore    float64
		bestPhonetic bool
	)

	for _, t := range c.terms {
		phonetic := codesOverlap(codes, t.codes)
		score := bestJWScore(tokens, t.tokens, lower, t.lower)

		if phonetic {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestTerm, bestScore, bestPhonetic = t.canonical, score, true
			}
		} else if !bestPhonetic {
			if score >= c.fuzzyThreshold && score > bestScore {
				bestTerm, bestScore = t.canonical, score
			}
		}
	}

	if bestTerm == "" {
		return window, 0, false
	}
	return bestTerm, bestScore, true
}

// codesForTokens returns the union of Double Metaphone codes for the tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between input and
// term across three comparisons: the full strings, the strings with spaces
// stripped, and the best pairwise token score.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, tt := range termTokens {
			if s := matchr.JaroWinkler(it, tt, false); s > score {
				score = s
			}
		}
	}
	return score
}
