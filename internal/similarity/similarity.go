// Package similarity provides string similarity functions. Every function
// returns a value in [0,1] where 1 means the strings are identical.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

const (
	jaroWinklerPrefixScale = 0.1
	jaroWinklerMaxPrefix   = 4
	defaultNGramSize       = 2
)

// Levenshtein returns 1 - distance/max(len(a), len(b)), measured in runes.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// Jaccard returns intersection over union of the character sets of a and b.
func Jaccard(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return jaccardSets(runeSet(a), runeSet(b))
}

// JaccardWords returns intersection over union of the lowercased
// whitespace-separated word sets of a and b.
func JaccardWords(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return jaccardSets(wordSet(a), wordSet(b))
}

// Cosine returns the cosine similarity of the case-folded character
// frequency vectors of a and b.
func Cosine(a, b string) float64 {
	if a == b {
		return 1.0
	}
	fa := frequencies(a)
	fb := frequencies(b)

	var dot, magA, magB float64
	for r, ca := range fa {
		magA += ca * ca
		dot += ca * fb[r]
	}
	for _, cb := range fb {
		magB += cb * cb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// JaroWinkler returns the Jaro similarity boosted by a common-prefix bonus of
// 0.1 per character, for at most four characters.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 || lb == 0 {
		return 0
	}

	window := max(la, lb)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, la)
	matchedB := make([]bool, lb)
	matches := 0
	for i := 0; i < la; i++ {
		lo := max(0, i-window)
		hi := min(lb, i+window+1)
		for j := lo; j < hi; j++ {
			if matchedB[j] || ra[i] != rb[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i := 0; i < la; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[k] {
			k++
		}
		if ra[i] != rb[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(la) + m/float64(lb) + (m-float64(transpositions)/2)/m) / 3.0

	prefix := 0
	for i := 0; i < min(la, lb, jaroWinklerMaxPrefix); i++ {
		if ra[i] != rb[i] {
			break
		}
		prefix++
	}

	return jaro + jaroWinklerPrefixScale*float64(prefix)*(1.0-jaro)
}

// NGram returns the Jaccard similarity of the n-rune substrings of a and b.
// A string shorter than n counts as a single gram. n <= 0 means bigrams.
func NGram(a, b string, n int) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	if n <= 0 {
		n = defaultNGramSize
	}
	return jaccardSets(grams(a, n), grams(b, n))
}

func grams(s string, n int) map[string]struct{} {
	rs := []rune(s)
	set := make(map[string]struct{})
	if len(rs) < n {
		set[s] = struct{}{}
		return set
	}
	for i := 0; i+n <= len(rs); i++ {
		set[string(rs[i:i+n])] = struct{}{}
	}
	return set
}

func runeSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range s {
		set[string(r)] = struct{}{}
	}
	return set
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

func jaccardSets(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func frequencies(s string) map[rune]float64 {
	f := make(map[rune]float64)
	for _, r := range s {
		f[unicode.ToLower(r)]++
	}
	return f
}
