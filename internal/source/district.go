package source

import (
	"regexp"
	"strings"
)

var districtPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)district\s+(\d+)`),
	regexp.MustCompile(`(?i)dist\.?\s+(\d+)`),
	regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)\s+district`),
}

var digitsRe = regexp.MustCompile(`\d+`)

// ExtractDistrict pulls a district number out of free text like
// "State Senate District 5" or "3rd District". Returns "" when no district
// pattern is present.
func ExtractDistrict(text string) string {
	if text == "" {
		return ""
	}
	for _, re := range districtPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return trimLeadingZeros(m[1])
		}
	}
	return ""
}

// ExtractDistrictField pulls the first run of digits out of an explicit
// district column, falling back to the office-name patterns.
func ExtractDistrictField(districtField, officeName string) string {
	if districtField != "" {
		if m := digitsRe.FindString(districtField); m != "" {
			return trimLeadingZeros(m)
		}
	}
	return ExtractDistrict(officeName)
}

// trimLeadingZeros normalizes "05" to "5" so district comparisons and OCD id
// containment checks line up across sources. All-zero input stays "0".
func trimLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
