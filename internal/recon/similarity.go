package recon

import (
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// Similarity scores how alike two strings are as a percentage from 0 to 100.
// Both inputs are case-folded and trimmed first. The score is the classic
// similar-text measure: twice the total length of recursively extracted
// longest common substrings over the combined length.
func Similarity(a, b string) float64 {
	a = foldCaser.String(strings.TrimSpace(a))
	b = foldCaser.String(strings.TrimSpace(b))
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := commonLength(a, b)
	return float64(2*common) * 100 / float64(len(a)+len(b))
}

// commonLength sums the longest common substring and, recursively, the common
// substrings of the unmatched prefixes and suffixes on either side of it.
func commonLength(a, b string) int {
	posA, posB, max := longestCommon(a, b)
	if max == 0 {
		return 0
	}
	total := max
	if posA > 0 && posB > 0 {
		total += commonLength(a[:posA], b[:posB])
	}
	if posA+max < len(a) && posB+max < len(b) {
		total += commonLength(a[posA+max:], b[posB+max:])
	}
	return total
}

func longestCommon(a, b string) (posA, posB, max int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			var k int
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > max {
				posA, posB, max = i, j, k
			}
		}
	}
	return posA, posB, max
}
