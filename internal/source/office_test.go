package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

func TestClassifyOffice(t *testing.T) {
	cases := []struct {
		office string
		want   model.OfficeLevel
	}{
		{"Governor", model.OfficeLevelState},
		{"Comptroller", model.OfficeLevelState},
		{"State Senate District 12", model.OfficeLevelState},
		{"House of Delegates District 3A", model.OfficeLevelState},
		{"NC SENATE DISTRICT 05", model.OfficeLevelState},
		{"US SENATE", model.OfficeLevelFederal},
		{"Representative in Congress District 2", model.OfficeLevelFederal},
		{"President of the United States", model.OfficeLevelFederal},
		{"Judge of the Circuit Court", model.OfficeLevelJudicial},
		{"County Executive", model.OfficeLevelLocal},
		{"Mayor", model.OfficeLevelLocal},
		{"Register of Wills", model.OfficeLevelLocal},
		{"Board of Education At Large", model.OfficeLevelOther},
		{"Red Clay School Board", model.OfficeLevelOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyOffice(tc.office), "office %q", tc.office)
	}
}

func TestClassifyOfficeSpecificityOrder(t *testing.T) {
	// "state senate" must not read as federal via the bare senate keyword,
	// and a school board must not read as local via "board".
	assert.Equal(t, model.OfficeLevelState, ClassifyOffice("State Senator, District 7"))
	assert.Equal(t, model.OfficeLevelOther, ClassifyOffice("School Board Member, District 1"))
}

func TestClassifyOfficeDefaultsLocal(t *testing.T) {
	assert.Equal(t, model.OfficeLevelLocal, ClassifyOffice("Soil Conservation Supervisor"))
	assert.Equal(t, model.OfficeLevelLocal, ClassifyOffice(""))
}
