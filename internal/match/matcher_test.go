package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

func TestLevenshteinRatio_Identical(t *testing.T) {
	assert.Equal(t, 100.0, LevenshteinRatio("smith", "smith"))
}

func TestLevenshteinRatio_Empty(t *testing.T) {
	assert.Equal(t, 0.0, LevenshteinRatio("", "smith"))
	assert.Equal(t, 0.0, LevenshteinRatio("smith", ""))
	assert.Equal(t, 0.0, LevenshteinRatio("", ""))
}

func TestLevenshteinRatio_SingleEdit(t *testing.T) {
	assert.InDelta(t, 80.0, LevenshteinRatio("smith", "smyth"), 1e-9)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100.0, cfg.ExactMatchThreshold)
	assert.Equal(t, 95.0, cfg.HighConfidenceThreshold)
	assert.Equal(t, 85.0, cfg.ReviewThreshold)
	assert.False(t, cfg.UseExternalIDs)
}

func TestFindMatch_EmptyPool(t *testing.T) {
	m := New(DefaultConfig(), nil)
	res := m.FindMatch(model.NormalizedCandidate{FullName: "Jane Doe", OfficeName: "Governor"}, nil)
	assert.Nil(t, res.Candidate)
	assert.Equal(t, MethodNoMatch, res.Method)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestFindMatch_ExactShortcut(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:           "c1",
		FullName:     "Jane Doe",
		Party:        "Democratic",
		OfficeName:   "State Senate",
		ElectionYear: 2026,
	}}
	incoming := model.NormalizedCandidate{
		FullName:     "Jane Doe",
		Party:        "Democratic",
		OfficeName:   "State Senate",
		ElectionYear: 2026,
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, "c1", res.Candidate.ID)
	assert.Equal(t, 100.0, res.Confidence)
	assert.Equal(t, MethodNameOfficeExact, res.Method)
}

func TestFindMatch_ExactShortcut_YearWildcard(t *testing.T) {
	// A missing election year on the stored side is a wildcard.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "Jane Doe",
		OfficeName: "State Senate",
	}}
	incoming := model.NormalizedCandidate{
		FullName:     "Jane Doe",
		OfficeName:   "State Senate",
		ElectionYear: 2026,
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, 100.0, res.Confidence)
}

func TestFindMatch_DifferentYearSkipped(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:           "c1",
		FullName:     "Jane Doe",
		OfficeName:   "State Senate",
		ElectionYear: 2024,
	}}
	incoming := model.NormalizedCandidate{
		FullName:     "Jane Doe",
		OfficeName:   "State Senate",
		ElectionYear: 2026,
	}

	res := m.FindMatch(incoming, pool)
	assert.Nil(t, res.Candidate)
	assert.Equal(t, MethodNoMatch, res.Method)
}

func TestFindMatch_CaseAndWhitespaceInsensitive(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "JANE DOE",
		OfficeName: " State Senate ",
	}}
	incoming := model.NormalizedCandidate{
		FullName:   "jane doe",
		OfficeName: "state senate",
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, 100.0, res.Confidence)
	assert.Equal(t, MethodNameOfficeExact, res.Method)
}

func TestFindMatch_SubThresholdNameNeverMatches(t *testing.T) {
	// Name similarity below the hard floor of 70 skips the candidate even
	// with an identical office.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "Xavier Quintero",
		OfficeName: "State Senate",
	}}
	incoming := model.NormalizedCandidate{
		FullName:   "Jane Doe",
		OfficeName: "State Senate",
	}

	res := m.FindMatch(incoming, pool)
	assert.Nil(t, res.Candidate)
	assert.Equal(t, MethodNoMatch, res.Method)
}

func TestFindMatch_PartyMismatchPenalty(t *testing.T) {
	// Identical name and office but conflicting parties: the exact shortcut
	// is off and the halved combined score (45) falls below review.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "Mary Lee",
		OfficeName: "Mayor",
		Party:      "Democratic",
	}}
	incoming := model.NormalizedCandidate{
		FullName:   "Mary Lee",
		OfficeName: "Mayor",
		Party:      "Republican",
	}

	res := m.FindMatch(incoming, pool)
	assert.Nil(t, res.Candidate)
	assert.Equal(t, MethodNoMatch, res.Method)
}

func TestFindMatch_UnspecifiedPartyIsCompatible(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "Mary Lee",
		OfficeName: "Mayor",
		Party:      "Democratic",
	}}
	incoming := model.NormalizedCandidate{
		FullName:   "Mary Lee",
		OfficeName: "Mayor",
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, 100.0, res.Confidence)
}

func TestMatchByNameAndOffice_CombinedScoreCapped(t *testing.T) {
	// The weights sum to 0.9, so without the exact shortcut the formula
	// tops out below the high-confidence threshold: a perfect name with a
	// near-perfect office lands at 87, never 95+.
	m := New(DefaultConfig(), stubSim(map[[2]string]float64{
		{"jane doe", "jane doe"}:           100,
		{"state senate", "state senate 3"}: 90,
	}))
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "Jane Doe",
		OfficeName: "State Senate 3",
	}}
	incoming := model.NormalizedCandidate{
		FullName:   "Jane Doe",
		OfficeName: "State Senate",
	}

	got := m.matchByNameAndOffice(incoming, pool)
	require.NotNil(t, got)
	assert.InDelta(t, 87.0, got.score, 1e-9)
}

func TestMatchByNameAndOffice_BestOfPool(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{
		{ID: "weak", FullName: "Jane Does", OfficeName: "City Council"},
		{ID: "strong", FullName: "Jane Doe", OfficeName: "Mayor"},
	}
	incoming := model.NormalizedCandidate{
		FullName:   "Jane Doe",
		OfficeName: "Mayor",
	}

	got := m.matchByNameAndOffice(incoming, pool)
	require.NotNil(t, got)
	assert.Equal(t, "strong", got.candidate.ID)
}

func TestMatchByFuzzyName_RequiresLastName(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{ID: "c1", FullName: "John Smith", LastName: "Smith"}}
	assert.Nil(t, m.matchByFuzzyName(model.NormalizedCandidate{FullName: "John Smith"}, pool))
}

func TestMatchByFuzzyName_LastNameFloor(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:          "c1",
		FullName:    "John Smith",
		FirstName:   "John",
		LastName:    "Smith",
		OfficeLevel: model.OfficeLevelState,
	}}
	incoming := model.NormalizedCandidate{
		FullName:    "John Smithfield",
		FirstName:   "John",
		LastName:    "Smithfield",
		OfficeLevel: model.OfficeLevelState,
	}

	// "smith" vs "smithfield" is 50, below the 85 floor.
	assert.Nil(t, m.matchByFuzzyName(incoming, pool))
}

func TestMatchByFuzzyName_InitialEquivalence(t *testing.T) {
	// "J Smith" vs "John Smith": the single-letter initial forces the
	// first-name score to at least 85, and full context pushes the combined
	// score past the high-confidence threshold.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:            "c1",
		FullName:      "John Smith",
		FirstName:     "John",
		LastName:      "Smith",
		OfficeLevel:   model.OfficeLevelState,
		OCDDivisionID: "ocd-division/country:us/state:md/sldl:3",
	}}
	incoming := model.NormalizedCandidate{
		FullName:       "J Smith",
		FirstName:      "J",
		LastName:       "Smith",
		OfficeLevel:    model.OfficeLevelState,
		DistrictNumber: "3",
	}

	got := m.matchByFuzzyName(incoming, pool)
	require.NotNil(t, got)
	// last 100*0.4 + first 85*0.3 + context 100*0.3
	assert.InDelta(t, 95.5, got.score, 1e-9)

	res := m.FindMatch(incoming, pool)
	assert.Equal(t, MethodFuzzyName, res.Method)
	assert.InDelta(t, 95.5, res.Confidence, 1e-9)
}

func TestMatchByFuzzyName_DistrictSubstringContext(t *testing.T) {
	// District containment is substring-based, so district "1" also hits
	// division ids for districts 10-19. Known recall-over-precision choice.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:            "c1",
		FullName:      "Ann Park",
		FirstName:     "Ann",
		LastName:      "Park",
		OfficeLevel:   model.OfficeLevelState,
		OCDDivisionID: "ocd-division/country:us/state:md/sldl:14",
	}}
	incoming := model.NormalizedCandidate{
		FullName:       "Ann Park",
		FirstName:      "Ann",
		LastName:       "Park",
		OfficeLevel:    model.OfficeLevelState,
		DistrictNumber: "1",
	}

	got := m.matchByFuzzyName(incoming, pool)
	require.NotNil(t, got)
	assert.InDelta(t, 100.0, got.score, 1e-9)
}

func TestFindMatch_ExternalIDDisabledByDefault(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:          "c1",
		FullName:    "Someone Else Entirely",
		ExternalIDs: []model.ExternalID{{Authority: "md_filing_id", Value: "F-123"}},
	}}
	incoming := model.NormalizedCandidate{
		FullName:        "Jane Doe",
		OfficeName:      "Governor",
		ExternalIDType:  "md_filing_id",
		ExternalIDValue: "F-123",
	}

	res := m.FindMatch(incoming, pool)
	assert.Equal(t, MethodNoMatch, res.Method)
}

func TestFindMatch_ExternalIDShortCircuits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UseExternalIDs = true
	m := New(cfg, nil)
	pool := []model.ExistingCandidate{{
		ID:          "c1",
		FullName:    "Someone Else Entirely",
		ExternalIDs: []model.ExternalID{{Authority: "md_filing_id", Value: "F-123"}},
	}}
	incoming := model.NormalizedCandidate{
		FullName:        "Jane Doe",
		OfficeName:      "Governor",
		ExternalIDType:  "md_filing_id",
		ExternalIDValue: "F-123",
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, "c1", res.Candidate.ID)
	assert.Equal(t, 100.0, res.Confidence)
	assert.Equal(t, MethodExternalID, res.Method)
}

func TestFindMatch_TieFavorsNameOffice(t *testing.T) {
	// Both strategies land on 87; the name+office result wins the tie.
	sim := stubSim(map[[2]string]float64{
		{"pat green", "patrick green"}: 100, // Strategy B name
		{"mayor", "mayor of augusta"}:  90,  // Strategy B office -> (60+27)=87
		{"green", "green"}:             90,  // Strategy C last -> 36
		{"pat", "patrick"}:             70,  // Strategy C first -> 21
	})
	m := New(DefaultConfig(), sim)
	pool := []model.ExistingCandidate{{
		ID:            "c1",
		FullName:      "Patrick Green",
		FirstName:     "Patrick",
		LastName:      "Green",
		OfficeName:    "Mayor of Augusta",
		OfficeLevel:   model.OfficeLevelLocal,
		OCDDivisionID: "ocd-division/country:us/state:de/place:augusta/ward:7",
	}}
	incoming := model.NormalizedCandidate{
		FullName:       "Pat Green",
		FirstName:      "Pat",
		LastName:       "Green",
		OfficeName:     "Mayor",
		OfficeLevel:    model.OfficeLevelLocal,
		DistrictNumber: "7", // context 50+50 -> C combined 36+21+30=87
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, MethodNameOffice, res.Method)
	assert.InDelta(t, 87.0, res.Confidence, 1e-9)
}

func TestFindMatch_FuzzyWinsWhenStrictlyHigher(t *testing.T) {
	sim := stubSim(map[[2]string]float64{
		{"pat green", "patrick green"}: 100,
		{"mayor", "mayor of augusta"}:  90, // B = 87
		{"green", "green"}:             90,
		{"pat", "patrick"}:             80, // C = 36+24+30 = 90
	})
	m := New(DefaultConfig(), sim)
	pool := []model.ExistingCandidate{{
		ID:            "c1",
		FullName:      "Patrick Green",
		FirstName:     "Patrick",
		LastName:      "Green",
		OfficeName:    "Mayor of Augusta",
		OfficeLevel:   model.OfficeLevelLocal,
		OCDDivisionID: "ocd-division/country:us/state:de/place:augusta/ward:7",
	}}
	incoming := model.NormalizedCandidate{
		FullName:       "Pat Green",
		FirstName:      "Pat",
		LastName:       "Green",
		OfficeName:     "Mayor",
		OfficeLevel:    model.OfficeLevelLocal,
		DistrictNumber: "7",
	}

	res := m.FindMatch(incoming, pool)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, MethodFuzzyName, res.Method)
	assert.InDelta(t, 90.0, res.Confidence, 1e-9)
}

func TestFindMatch_Deterministic(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{
		{ID: "a", FullName: "Robert Jones", OfficeName: "County Council District 3"},
		{ID: "b", FullName: "Roberta Jones", OfficeName: "County Council District 4"},
	}
	incoming := model.NormalizedCandidate{FullName: "Robert Jones", OfficeName: "County Council District 3"}

	first := m.FindMatch(incoming, pool)
	second := m.FindMatch(incoming, pool)
	assert.Equal(t, first, second)
}

// stubSim returns a Similarity keyed on exact (a, b) input pairs; any pair
// not listed scores 0, keeping unintended strategies quiet in tests.
func stubSim(scores map[[2]string]float64) Similarity {
	return func(a, b string) float64 {
		return scores[[2]string{a, b}]
	}
}
