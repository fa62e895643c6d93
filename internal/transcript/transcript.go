// Package transcript post-processes speech-to-text output before it reaches
// the rest of the pipeline.
//
// Two concerns live here. Normalize canonicalises a transcript so that
// spoken repeats of the same question compare equal, which is what the
// response cache keys on. Corrector fixes game-specific proper nouns that
// general STT models reliably mangle ("eldrin axe" for "Eldrinax"), using
// phonetic matching against a lexicon of known names.
package transcript

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, strips punctuation, and collapses whitespace
// runs to single spaces. Two utterances that differ only in casing,
// punctuation, or spacing normalize to the same string.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case r == '\'':
			// Apostrophes are dropped so "what's" and "whats" agree.
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}
