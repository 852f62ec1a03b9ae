// Package leven computes Levenshtein edit distance, used by the analyzer
// to produce "did you mean" suggestions for unknown type and option names
// (spec §4.3). No library in the reference corpus implements edit
// distance, so this is a small hand-rolled routine rather than an
// imported dependency.
package leven

// Distance returns the Levenshtein edit distance between a and b.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// maxSuggestDistance bounds how different a candidate may be from the
// query before it stops being a useful "did you mean" suggestion.
const maxSuggestDistance = 3

// Closest returns the candidate string closest to query by edit distance,
// provided it is within maxSuggestDistance; ok is false if candidates is
// empty or nothing is close enough to be a plausible typo fix.
func Closest(query string, candidates []string) (best string, ok bool) {
	bestDist := maxSuggestDistance + 1
	for _, c := range candidates {
		d := Distance(query, c)
		if d < bestDist {
			bestDist = d
			best = c
			ok = true
		}
	}
	return best, ok
}
