package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

// anyArgs returns n pgxmock.AnyArg matchers, for statements whose individual
// argument values are not under test.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ingest_runs`).
		WithArgs(pgxmock.AnyArg(), "maryland_boe", "MD", pgxmock.AnyArg(), "https://elections.example/state.csv", "running", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "maryland_boe", "MD", "https://elections.example/state.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinalizeRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ingest_runs`).
		WithArgs("complete", pgxmock.AnyArg(), 10, 9, 5, 3, 1, 0, "missing-run").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinalizeRun(context.Background(), "missing-run", model.RunStatusComplete, model.RunStats{
		TotalRaw: 10, TotalStaged: 9, NewCandidates: 5, UpdatedCandidates: 3, ReviewCandidates: 1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, source, state, run_key, endpoint_or_file, status`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	// actor and notes are NULL on every row the pipeline writes; only an
	// operator annotation fills them.
	rows := pgxmock.NewRows([]string{
		"id", "source", "state", "run_key", "endpoint_or_file", "status",
		"started_at", "finished_at", "row_count_raw", "row_count_staged",
		"new_candidates", "updated_candidates", "review_candidates", "errors",
		"actor", "notes",
	}).AddRow("run-1", "nc_boe", "NC", "NC-nc_boe-1", "", "complete",
		now, &now, 20, 18, 7, 9, 2, 0, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM ingest_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 7, run.NewCandidates)
	assert.Empty(t, run.Actor)
	assert.Empty(t, run.Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "source", "state", "run_key", "endpoint_or_file", "status",
		"started_at", "finished_at", "row_count_raw", "row_count_staged",
		"new_candidates", "updated_candidates", "review_candidates", "errors",
		"actor", "notes",
	}).AddRow("run-1", "maryland_boe", "MD", "MD-maryland_boe-1", "", "complete",
		now, &now, 10, 9, 5, 3, 1, 0, nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM ingest_runs WHERE true AND state = \$1 AND status = \$2 ORDER BY started_at DESC LIMIT \$3`).
		WithArgs("MD", "complete", 50).
		WillReturnRows(rows)

	runs, err := s.ListRuns(context.Background(), RunFilter{State: "MD", Status: model.RunStatusComplete, Limit: 50})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, 5, runs[0].NewCandidates)
	assert.Empty(t, runs[0].Actor)
	assert.Empty(t, runs[0].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StageCandidates_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom(pgx.Identifier{"candidates_stage"},
		[]string{"id", "run_id", "source", "source_row_id", "payload", "created_at"}).
		WillReturnResult(2)

	batch := []model.StagedCandidate{
		{Candidate: model.NormalizedCandidate{FullName: "Jane Doe", OfficeName: "Governor", State: "MD", Source: "STATE"}},
		{Candidate: model.NormalizedCandidate{FullName: "John Roe", OfficeName: "Mayor", State: "MD", Source: "STATE"}},
	}
	n, err := s.StageCandidates(context.Background(), "run-1", batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StageCandidates_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	n, err := s.StageCandidates(context.Background(), "run-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPostgresStore_ExistingCandidates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	candidateRows := pgxmock.NewRows([]string{
		"id", "full_name", "first_name", "last_name", "party", "office_level",
		"office_name", "state", "district_number", "ocd_division_id",
		"election_year", "status", "is_withdrawn",
	}).
		AddRow("c1", "Jane Doe", "Jane", "Doe", "Democratic", "state",
			"Governor", "MD", "", "ocd-division/country:us/state:md", 2026, "active", false).
		AddRow("c2", "John Roe", "John", "Roe", "Republican", "local",
			"Mayor", "MD", "", "", 2026, "active", false)

	mock.ExpectQuery(`SELECT id, full_name, .+ FROM candidates WHERE state = \$1 AND election_year = \$2`).
		WithArgs("MD", 2026).
		WillReturnRows(candidateRows)

	idRows := pgxmock.NewRows([]string{"candidate_id", "authority", "value"}).
		AddRow("c1", "fec", "H6MD00001")

	mock.ExpectQuery(`SELECT e.candidate_id, e.authority, e.value`).
		WithArgs("MD").
		WillReturnRows(idRows)

	pool, err := s.ExistingCandidates(context.Background(), "MD", 2026)
	require.NoError(t, err)
	require.Len(t, pool, 2)
	assert.Equal(t, "Jane Doe", pool[0].FullName)
	require.Len(t, pool[0].ExternalIDs, 1)
	assert.Equal(t, "fec", pool[0].ExternalIDs[0].Authority)
	assert.Empty(t, pool[1].ExternalIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertCandidate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO candidates`).
		WithArgs(anyArgs(25)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.InsertCandidate(context.Background(), "run-1", model.StagedCandidate{
		Candidate: model.NormalizedCandidate{FullName: "Jane Doe", OfficeName: "Governor", State: "MD"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateCandidate_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE candidates`).
		WithArgs(anyArgs(17)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateCandidate(context.Background(), "missing", "run-1", model.StagedCandidate{
		Candidate: model.NormalizedCandidate{FullName: "Jane Doe", OfficeName: "Governor", State: "MD"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "candidate not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordMatch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO candidate_matches`).
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordMatch(context.Background(), model.MatchRecord{
		RunID:        "run-1",
		CandidateID:  "c1",
		IncomingName: "Jane M Doe",
		MatchedName:  "Jane Doe",
		Confidence:   97.0,
		Method:       "name_office",
		DecidedBy:    model.MatchDecisionAuto,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnqueueAndResolveReview(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO review_queue`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := s.EnqueueReview(context.Background(), model.ReviewItem{
		RunID:       "run-1",
		Staged:      model.StagedCandidate{Candidate: model.NormalizedCandidate{FullName: "Jane M Doe", OfficeName: "Governor", State: "MD"}},
		CandidateID: "c1",
		MatchedName: "Jane Doe",
		Confidence:  88.0,
		Method:      "fuzzy_name",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	resolvedBy := "analyst"
	resolvedRows := pgxmock.NewRows([]string{
		"id", "run_id", "staged", "candidate_id", "matched_name", "confidence",
		"method", "status", "created_at", "resolved_at", "resolved_by",
	}).AddRow(id, "run-1", []byte(`{"candidate":{"full_name":"Jane M Doe","office_level":"state","office_name":"Governor","state":"MD","election_year":2026,"is_withdrawn":false}}`),
		"c1", "Jane Doe", 88.0, "fuzzy_name", "approved", now, &now, &resolvedBy)

	mock.ExpectQuery(`UPDATE review_queue`).
		WithArgs("approved", pgxmock.AnyArg(), "analyst", id).
		WillReturnRows(resolvedRows)

	item, err := s.ResolveReview(context.Background(), id, model.ReviewStatusApproved, "analyst")
	require.NoError(t, err)
	assert.Equal(t, "Jane M Doe", item.Staged.Candidate.FullName)
	assert.Equal(t, "analyst", item.ResolvedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ResolveReview_NotPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE review_queue`).
		WithArgs("rejected", pgxmock.AnyArg(), "analyst", "gone").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.ResolveReview(context.Background(), "gone", model.ReviewStatusRejected, "analyst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending review not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PendingReviews_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "run_id", "staged", "candidate_id", "matched_name", "confidence",
		"method", "status", "created_at", "resolved_at", "resolved_by",
	})
	mock.ExpectQuery(`SELECT .+ FROM review_queue WHERE status = 'pending'`).
		WithArgs(25).
		WillReturnRows(rows)

	items, err := s.PendingReviews(context.Background(), 25)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
