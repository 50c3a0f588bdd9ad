package source

import (
	"strings"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// officeKeywords maps keywords to office levels, checked in order: a school
// board is "other" even though "board" alone would read as local, and
// "state senate" must win over the bare "senate" federal keyword, so the
// more specific levels come first.
var officeKeywords = []struct {
	level    model.OfficeLevel
	keywords []string
}{
	{model.OfficeLevelOther, []string{
		"school board", "board of education",
	}},
	{model.OfficeLevelState, []string{
		"governor", "lieutenant governor", "lt. governor",
		"attorney general", "comptroller", "treasurer", "auditor",
		"secretary of state", "insurance commissioner",
		"state senate", "state senator", "state house",
		"state representative",
		"nc senate", "nc house",
		"house of delegates", "delegate",
		"superintendent of public instruction",
		"commissioner of agriculture", "commissioner of insurance",
		"commissioner of labor",
	}},
	{model.OfficeLevelFederal, []string{
		"president", "u.s. senat", "united states senat", "us senate",
		"u.s. representative", "us house", "u.s. house",
		"representative in congress", "congress",
	}},
	{model.OfficeLevelJudicial, []string{
		"judge", "justice", "court", "district attorney",
	}},
	{model.OfficeLevelLocal, []string{
		"county", "mayor", "council", "commissioner", "sheriff",
		"clerk", "register of wills",
	}},
}

// ClassifyOffice maps a verbatim office name onto the coarse office-level
// scale. Unrecognized offices default to local, matching how the state
// listings skew.
func ClassifyOffice(officeName string) model.OfficeLevel {
	if officeName == "" {
		return model.OfficeLevelLocal
	}
	lower := strings.ToLower(officeName)
	for _, group := range officeKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.level
			}
		}
	}
	return model.OfficeLevelLocal
}
