package source

import (
	"regexp"
	"strings"
)

var nameSuffixRe = regexp.MustCompile(`(?i)\s+(Jr\.?|Sr\.?|III|II|IV)$`)

// ParseFullName splits a single display name into first and last components.
// Generational suffixes are ignored for the split but kept in the full name.
// With three or more words, everything after the first word is treated as
// the last name.
func ParseFullName(fullName string) (full, first, last string) {
	full = strings.TrimSpace(fullName)
	if full == "" {
		return "", "", ""
	}

	trimmed := nameSuffixRe.ReplaceAllString(full, "")
	parts := strings.Fields(trimmed)

	switch len(parts) {
	case 0:
		return full, "", ""
	case 1:
		return full, parts[0], ""
	case 2:
		return full, parts[0], parts[1]
	default:
		return full, parts[0], strings.Join(parts[1:], " ")
	}
}

// CombineNameParts builds a candidate name from the split fields the
// Maryland listing publishes: first+middle in one column, ballot last name
// (with suffix) in another. The first word of the first+middle column is the
// first name.
func CombineNameParts(firstMiddle, lastAndSuffix string) (full, first, last string) {
	firstMiddle = strings.TrimSpace(firstMiddle)
	lastAndSuffix = strings.TrimSpace(lastAndSuffix)

	if fields := strings.Fields(firstMiddle); len(fields) > 0 {
		first = fields[0]
	}
	last = lastAndSuffix

	full = strings.TrimSpace(firstMiddle + " " + lastAndSuffix)
	return full, first, last
}
