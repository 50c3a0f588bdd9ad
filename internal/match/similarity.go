package match

import (
	"strings"

	"github.com/agext/levenshtein"
)

// Similarity scores how alike two strings are on a 0-100 scale.
// Implementations must be symmetric and return 100 only for equal inputs.
type Similarity func(a, b string) float64

var levenshteinParams = levenshtein.NewParams()

// LevenshteinRatio is the default Similarity: a normalized edit-distance
// ratio scaled to 0-100. An empty string on either side scores 0, so absent
// values never match anything.
func LevenshteinRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, levenshteinParams) * 100
}

// normalize prepares a string for comparison: trimmed and case-folded.
// Absent values normalize to the empty string.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
