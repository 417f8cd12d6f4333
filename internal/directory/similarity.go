package directory

import "strings"

// Similarity computes a symmetric similarity ratio in [0,1] between two
// strings, case-insensitively: twice the total length of their matching
// blocks divided by the combined length. Matching blocks are found by
// recursively taking the longest common substring and repeating on the
// pieces to its left and right, so transposed words still score well.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	matched := matchLength([]byte(a), []byte(b))
	return 2.0 * float64(matched) / float64(total)
}

// matchLength sums the lengths of the matching blocks of a and b.
func matchLength(a, b []byte) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	return size +
		matchLength(a[:ai], b[:bi]) +
		matchLength(a[ai+size:], b[bi+size:])
}

// longestCommonSubstring returns the start offsets and length of the
// longest run of bytes common to a and b. Standard dynamic programming
// over suffix match lengths, one rolling row.
func longestCommonSubstring(a, b []byte) (ai, bi, size int) {
	row := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		prev := 0
		for j := 1; j <= len(b); j++ {
			cur := row[j]
			if a[i-1] == b[j-1] {
				row[j] = prev + 1
				if row[j] > size {
					size = row[j]
					ai = i - size
					bi = j - size
				}
			} else {
				row[j] = 0
			}
			prev = cur
		}
	}
	return ai, bi, size
}
