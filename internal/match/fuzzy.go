package match

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}]+`)

func tokenSet(s string) []string {
	fields := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(s), " "))
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// TokenSetRatio scores the similarity of a and b from 0 to 100 ignoring
// token order and repetition. Shared tokens are compared against each side's
// full token set, so "Backend Engineer" scores 100 against
// "Backend Engineer II".
func TokenSetRatio(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inB := make(map[string]bool, len(tb))
	for _, t := range tb {
		inB[t] = true
	}

	var common, onlyA, onlyB []string
	inA := make(map[string]bool, len(ta))
	for _, t := range ta {
		inA[t] = true
		if inB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if !inA[t] {
			onlyB = append(onlyB, t)
		}
	}

	shared := strings.Join(common, " ")
	withA := strings.TrimSpace(shared + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(shared + " " + strings.Join(onlyB, " "))

	best := ratio(withA, withB)
	if shared != "" {
		best = max(best, ratio(shared, withA), ratio(shared, withB))
	}
	return best
}

// ratio is the Ratcliff/Obershelp similarity scaled to 0..100.
func ratio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 100
	}
	return int(math.Round(200 * float64(matchingRunes(ra, rb)) / float64(total)))
}

func matchingRunes(a, b []rune) int {
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+k:], b[j+k:])
}

// longestMatch returns the earliest longest common block of a and b.
func longestMatch(a, b []rune) (int, int, int) {
	bestI, bestJ, bestK := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestK {
					bestI, bestJ, bestK = i-cur[j], j-cur[j], cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestK
}
