package modules

import (
	"math"
	"regexp"
	"strings"
)

// Round3 rounds to three decimals, the precision every published score uses.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Clamp01 clamps a score into [0, 1].
func Clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// RiskLevel buckets an aggregate fraud score.
func RiskLevel(score float64) string {
	switch {
	case score >= 0.9:
		return "CRITICAL"
	case score >= 0.75:
		return "HIGH"
	case score >= 0.45:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// normKey canonicalizes a field name so "Father Name", "father_name" and
// "fatherName" collide.
func normKey(v string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(v), "")
}

// textSimilarity returns a [0,1] similarity ratio between two values based
// on edit distance over the longer string.
func textSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

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
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
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
