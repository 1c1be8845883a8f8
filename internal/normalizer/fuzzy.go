package normalizer

import "strings"

// FuzzyThreshold is the minimum similarity accepted by the fuzzy stage.
const FuzzyThreshold = 0.8

// similarity scores two uppercase strings in [0,1], taking the better
// of normalized edit distance and token overlap. Token overlap rescues
// reordered or partially-truncated names that edit distance punishes.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	lev := levenshteinRatio(a, b)
	tok := tokenOverlap(a, b)
	if tok > lev {
		return tok
	}
	return lev
}

func levenshteinRatio(a, b string) float64 {
	dist := levenshtein(a, b)
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return 1 - float64(dist)/float64(max)
}

// levenshtein computes edit distance with the two-row method.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// tokenOverlap is the Dice coefficient over whitespace tokens.
func tokenOverlap(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	set := make(map[string]int, len(ta))
	for _, t := range ta {
		set[t]++
	}
	shared := 0
	for _, t := range tb {
		if set[t] > 0 {
			set[t]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

// bestFuzzyMatch scans the canonical map's keys for the closest match
// at or above the threshold.
func bestFuzzyMatch(key string, m *CanonicalMap) (canonical string, score float64, ok bool) {
	var bestKey string
	for _, k := range m.Keys() {
		if s := similarity(key, k); s > score {
			score, bestKey = s, k
		}
	}
	if score < FuzzyThreshold {
		return "", 0, false
	}
	canonical, _ = m.Lookup(bestKey)
	return canonical, score, true
}
