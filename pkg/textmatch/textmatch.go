// Package textmatch holds the string normalization and similarity measures
// shared by the locator and the vision intent mapper.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
)

// fillerWords are dropped from target descriptions before matching: UI nouns
// and verbs that describe the element rather than name it.
var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "on": true, "to": true, "of": true,
	"button": true, "btn": true, "icon": true, "tab": true, "link": true, "label": true,
	"field": true, "option": true, "menu": true, "item": true,
	"tap": true, "click": true, "press": true, "select": true, "hit": true,
}

// Normalize lower-cases s, replaces punctuation with spaces and collapses whitespace.
func Normalize(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space && sb.Len() > 0 {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// Tokens returns the normalized words of s.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// Core returns the normalized description with filler words removed. When
// every word is filler the normalized description is returned unchanged.
func Core(s string) string {
	toks := Tokens(s)
	kept := toks[:0:0]
	for _, t := range toks {
		if !fillerWords[t] {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return strings.Join(toks, " ")
	}
	return strings.Join(kept, " ")
}

// ContainsWords reports whether phrase occurs in s on word boundaries.
// Both arguments are normalized first.
func ContainsWords(s, phrase string) bool {
	s, phrase = " "+Normalize(s)+" ", " "+Normalize(phrase)+" "
	return strings.TrimSpace(phrase) != "" && strings.Contains(s, phrase)
}

// Levenshtein returns the edit distance between a and b (by rune).
func Levenshtein(a, b string) int {
	return edlib.LevenshteinDistance(a, b)
}

// Ratio is 1 - distance/maxLen, in [0,1]. Two empty strings score 1.
func Ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(max(la, lb))
}

// IndelRatio is 2*LCS/(len(a)+len(b)), the insert/delete-only similarity.
func IndelRatio(a, b string) float64 {
	n := len([]rune(a)) + len([]rune(b))
	if n == 0 {
		return 1
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(n)
}

// PartialRatio is the best IndelRatio of the shorter string against the
// windows of the longer one: every full-length window plus the shorter
// windows that overhang either edge. Equal-length inputs are tried both ways.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		if len(rb) == 0 {
			return 1
		}
		return 0
	}
	best := partialAligned(ra, rb)
	if len(ra) == len(rb) && best < 1 {
		best = max(best, partialAligned(rb, ra))
	}
	return best
}

func partialAligned(short, long []rune) float64 {
	m, n := len(short), len(long)
	s := string(short)
	best := 0.0
	try := func(w []rune) bool {
		if r := IndelRatio(s, string(w)); r > best {
			best = r
		}
		return best == 1
	}
	for i := 1; i < m; i++ {
		if try(long[:i]) {
			return 1
		}
	}
	for i := 0; i+m <= n; i++ {
		if try(long[i : i+m]) {
			return 1
		}
	}
	for i := n - m + 1; i < n; i++ {
		if try(long[i:]) {
			return 1
		}
	}
	return best
}

// TokenJaccard is |A∩B| / |A∪B| over word sets.
func TokenJaccard(a, b string) float64 {
	ta, tb := uniqueTokens(a), uniqueTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	return float64(edlib.JaccardSimilarity(strings.Join(ta, " "), strings.Join(tb, " "), 0))
}

func uniqueTokens(s string) []string {
	toks := Tokens(s)
	seen := make(map[string]bool, len(toks))
	out := toks[:0]
	for _, t := range toks {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Similarity is the better of the character ratio and the token overlap of
// the normalized strings.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	return max(Ratio(na, nb), TokenJaccard(na, nb))
}
