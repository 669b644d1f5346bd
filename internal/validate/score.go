// Package validate quantifies round-trip fidelity of a language's speech
// pair: each suite run synthesizes sentences, transcribes the audio back,
// and scores how much of the original text survived.
//
// The word-match score is an ordered greedy subsequence match over
// normalized words. It is a lower bound on intelligibility: a transcribed
// word can satisfy at most one original word, and a miss cannot be recovered
// by a later repeat, so the score only falls as transcription quality
// degrades.
package validate

import (
	"strings"
	"unicode"
)

// NormalizeText lowercases s, strips punctuation and symbol runes, and
// collapses whitespace runs to single spaces with the ends trimmed.
// Letters with diacritics pass through unchanged, which keeps Vietnamese
// text comparable.
func NormalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// WordMatchPercent scores, from 0 to 100, how many words of original appear
// in transcribed in the same order. Both texts are normalized first.
//
// The match walks transcribed left to right with a cursor: each original
// word scans forward from the cursor for an equal transcribed word, and on a
// hit the cursor advances past it so the same transcribed word never counts
// twice. A miss leaves the cursor where it was. The denominator is the
// original word count, so extra transcribed words do not raise the score.
//
// An empty original scores 100 against an empty transcription and 0 against
// anything else.
func WordMatchPercent(original, transcribed string) float64 {
	origWords := strings.Fields(NormalizeText(original))
	transWords := strings.Fields(NormalizeText(transcribed))

	if len(origWords) == 0 {
		if len(transWords) == 0 {
			return 100.0
		}
		return 0.0
	}

	matches := 0
	cursor := 0
	for _, word := range origWords {
		for i := cursor; i < len(transWords); i++ {
			if transWords[i] == word {
				matches++
				cursor = i + 1
				break
			}
		}
	}
	return float64(matches) / float64(len(origWords)) * 100.0
}
