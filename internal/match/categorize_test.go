package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

func TestCategorizeBatch_EmptyPool(t *testing.T) {
	m := New(DefaultConfig(), nil)
	batch := []model.NormalizedCandidate{
		{FullName: "Robert Jones", OfficeName: "County Council District 3", ElectionYear: 2026},
	}

	out := m.CategorizeBatch(batch, nil)
	require.Len(t, out.New, 1)
	assert.Empty(t, out.Update)
	assert.Empty(t, out.Review)
	assert.Empty(t, out.Skip)
	assert.Nil(t, out.New[0].Match)
	assert.Equal(t, 0, out.New[0].Index)
}

func TestCategorizeBatch_ExactMatchBecomesUpdate(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:           "abc",
		FullName:     "Robert Jones",
		OfficeName:   "County Council District 3",
		ElectionYear: 2026,
	}}
	batch := []model.NormalizedCandidate{
		{FullName: "Robert Jones", OfficeName: "County Council District 3", ElectionYear: 2026},
	}

	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.Update, 1)
	assert.Empty(t, out.New)

	info := out.Update[0].Match
	require.NotNil(t, info)
	assert.Equal(t, "abc", info.CandidateID)
	assert.Equal(t, 100.0, info.Confidence)
	assert.Equal(t, MethodNameOfficeExact, info.Method)
	assert.Equal(t, "Robert Jones", info.ExistingName)
}

func TestCategorizeBatch_PartyMismatchBecomesNew(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:         "c1",
		FullName:   "Mary Lee",
		OfficeName: "Mayor",
		Party:      "Democratic",
	}}
	batch := []model.NormalizedCandidate{
		{FullName: "Mary Lee", OfficeName: "Mayor", Party: "Republican"},
	}

	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.New, 1)
	assert.Nil(t, out.New[0].Match)
}

// boundaryFixture builds a matcher with a stubbed similarity so the fuzzy
// strategy produces an exact combined score:
// last*0.4 + first*0.3 + 100*0.3 (office level and district both match).
func boundaryFixture(t *testing.T, lastScore, firstScore float64) (*Matcher, []model.NormalizedCandidate, []model.ExistingCandidate) {
	t.Helper()
	sim := stubSim(map[[2]string]float64{
		{"smithson", "smithsen"}: lastScore,
		{"jo", "joan"}:           firstScore,
	})
	m := New(DefaultConfig(), sim)
	pool := []model.ExistingCandidate{{
		ID:            "c1",
		FullName:      "Joan Smithsen",
		FirstName:     "Joan",
		LastName:      "Smithsen",
		OfficeLevel:   model.OfficeLevelState,
		OCDDivisionID: "ocd-division/country:us/state:md/sldl:12",
	}}
	batch := []model.NormalizedCandidate{{
		FullName:       "Jo Smithson",
		FirstName:      "Jo",
		LastName:       "Smithson",
		OfficeLevel:    model.OfficeLevelState,
		OfficeName:     "House of Delegates",
		DistrictNumber: "12",
	}}
	return m, batch, pool
}

func TestCategorizeBatch_ScoreAtHighThresholdIsUpdate(t *testing.T) {
	// 95*0.4 + 90*0.3 + 30 = 95, exactly the high-confidence threshold.
	m, batch, pool := boundaryFixture(t, 95, 90)
	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.Update, 1)
	assert.InDelta(t, 95.0, out.Update[0].Match.Confidence, 1e-9)
}

func TestCategorizeBatch_ScoreBelowHighThresholdIsReview(t *testing.T) {
	// 90*0.4 + 90*0.3 + 30 = 93: plausible but not certain.
	m, batch, pool := boundaryFixture(t, 90, 90)
	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.Review, 1)
	assert.Empty(t, out.Update)
	assert.InDelta(t, 93.0, out.Review[0].Match.Confidence, 1e-9)
}

func TestCategorizeBatch_ScoreAtReviewThresholdIsReview(t *testing.T) {
	// 100*0.4 + 50*0.3 + 30 = 85, exactly the review threshold.
	m, batch, pool := boundaryFixture(t, 100, 50)
	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.Review, 1)
	assert.InDelta(t, 85.0, out.Review[0].Match.Confidence, 1e-9)
}

func TestCategorizeBatch_ScoreBelowReviewThresholdIsNew(t *testing.T) {
	// 100*0.4 + 40*0.3 + 30 = 82: the matcher drops it entirely, so the
	// candidate surfaces as new with no match info at all.
	m, batch, pool := boundaryFixture(t, 100, 40)
	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.New, 1)
	assert.Nil(t, out.New[0].Match)
}

func TestCategorizeBatch_IdempotentReingestion(t *testing.T) {
	m := New(DefaultConfig(), nil)
	batch := []model.NormalizedCandidate{
		{FullName: "Robert Jones", OfficeName: "County Council District 3", Party: "Democratic", ElectionYear: 2026},
		{FullName: "Jane Doe", OfficeName: "State Senate", ElectionYear: 2026},
		{FullName: "Mary Lee", OfficeName: "Mayor", Party: "Republican", ElectionYear: 2026},
	}

	first := m.CategorizeBatch(batch, nil)
	require.Len(t, first.New, 3)

	// Incorporate the first run's new candidates into the pool, then ingest
	// the identical batch again: everything is an exact-match update.
	pool := make([]model.ExistingCandidate, 0, len(first.New))
	for i, item := range first.New {
		c := item.Candidate
		pool = append(pool, model.ExistingCandidate{
			ID:           string(rune('a' + i)),
			FullName:     c.FullName,
			Party:        c.Party,
			OfficeName:   c.OfficeName,
			ElectionYear: c.ElectionYear,
		})
	}

	second := m.CategorizeBatch(batch, pool)
	assert.Empty(t, second.New)
	assert.Empty(t, second.Review)
	require.Len(t, second.Update, 3)
	for _, item := range second.Update {
		assert.Equal(t, 100.0, item.Match.Confidence)
		assert.Equal(t, MethodNameOfficeExact, item.Match.Method)
	}
}

func TestCategorizeBatch_EmptyFullNameBecomesNew(t *testing.T) {
	// Upstream transformers drop nameless rows; if one slips through, every
	// strategy scores zero and the record lands in new rather than erroring.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{ID: "c1", FullName: "Jane Doe", OfficeName: "Governor"}}
	batch := []model.NormalizedCandidate{{FullName: "", OfficeName: "Governor"}}

	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.New, 1)
	assert.Nil(t, out.New[0].Match)
}

func TestCategorizeBatch_IndependentRecords(t *testing.T) {
	// Two near-duplicate incoming records may both match the same existing
	// candidate; resolving that is the orchestrator's job, not the core's.
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{{
		ID:           "c1",
		FullName:     "Robert Jones",
		OfficeName:   "County Council District 3",
		ElectionYear: 2026,
	}}
	batch := []model.NormalizedCandidate{
		{FullName: "Robert Jones", OfficeName: "County Council District 3", ElectionYear: 2026},
		{FullName: "Robert Jones", OfficeName: "County Council District 3", ElectionYear: 2026},
	}

	out := m.CategorizeBatch(batch, pool)
	require.Len(t, out.Update, 2)
	assert.Equal(t, "c1", out.Update[0].Match.CandidateID)
	assert.Equal(t, "c1", out.Update[1].Match.CandidateID)
	assert.Equal(t, 0, out.Update[0].Index)
	assert.Equal(t, 1, out.Update[1].Index)
}

func TestCategorizeBatch_Deterministic(t *testing.T) {
	m := New(DefaultConfig(), nil)
	pool := []model.ExistingCandidate{
		{ID: "a", FullName: "Robert Jones", OfficeName: "County Council District 3"},
		{ID: "b", FullName: "Jane Doe", OfficeName: "State Senate"},
	}
	batch := []model.NormalizedCandidate{
		{FullName: "Robert Jones", OfficeName: "County Council District 3"},
		{FullName: "Janet Doe", FirstName: "Janet", LastName: "Doe", OfficeName: "State Senate"},
	}

	first := m.CategorizeBatch(batch, pool)
	second := m.CategorizeBatch(batch, pool)
	assert.Equal(t, first, second)
}
