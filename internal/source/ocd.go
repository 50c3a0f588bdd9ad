package source

import (
	"fmt"
	"strings"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// OCDDivisionID derives a best-effort Open Civic Data division id for a
// candidate's jurisdiction. Only the offices with unambiguous statewide or
// districted divisions get one; everything else returns "" and matching
// falls back to name and office context.
func OCDDivisionID(state string, level model.OfficeLevel, officeName, district string) string {
	if state == "" {
		return ""
	}
	base := fmt.Sprintf("ocd-division/country:us/state:%s", strings.ToLower(state))
	office := strings.ToLower(officeName)

	switch level {
	case model.OfficeLevelFederal:
		if strings.Contains(office, "senat") {
			return base
		}
		if strings.Contains(office, "congress") || strings.Contains(office, "representative") {
			if district != "" {
				return base + "/cd:" + district
			}
		}
	case model.OfficeLevelState:
		switch {
		case strings.Contains(office, "governor"),
			strings.Contains(office, "comptroller"),
			strings.Contains(office, "attorney"),
			strings.Contains(office, "treasurer"),
			strings.Contains(office, "auditor"):
			return base
		case strings.Contains(office, "senat"):
			if district != "" {
				return base + "/sldu:" + district
			}
		case strings.Contains(office, "delegate"), strings.Contains(office, "house"),
			strings.Contains(office, "representative"):
			if district != "" {
				return base + "/sldl:" + district
			}
		}
	}

	return ""
}
