package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id               TEXT PRIMARY KEY,
	full_name        TEXT NOT NULL,
	first_name       TEXT,
	last_name        TEXT,
	party            TEXT,
	office_level     TEXT NOT NULL DEFAULT 'local',
	office_name      TEXT NOT NULL,
	state            TEXT NOT NULL,
	district_number  TEXT,
	ocd_division_id  TEXT,
	election_year    INTEGER NOT NULL DEFAULT 0,
	gender           TEXT,
	jurisdiction     TEXT,
	committee_name   TEXT,
	website          TEXT,
	email            TEXT,
	status           TEXT NOT NULL DEFAULT 'active',
	is_withdrawn     INTEGER NOT NULL DEFAULT 0,
	contact          TEXT,
	social           TEXT,
	filing           TEXT,
	first_seen_run   TEXT,
	last_seen_run    TEXT,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_candidates_state ON candidates(state);
CREATE INDEX IF NOT EXISTS idx_candidates_state_year ON candidates(state, election_year);
CREATE INDEX IF NOT EXISTS idx_candidates_last_name ON candidates(last_name);

CREATE TABLE IF NOT EXISTS candidate_external_ids (
	candidate_id TEXT NOT NULL REFERENCES candidates(id),
	authority    TEXT NOT NULL,
	value        TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (authority, value)
);

CREATE INDEX IF NOT EXISTS idx_external_ids_candidate ON candidate_external_ids(candidate_id);

CREATE TABLE IF NOT EXISTS candidates_stage (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	source        TEXT NOT NULL,
	source_row_id TEXT,
	payload       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_stage_run_id ON candidates_stage(run_id);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id                 TEXT PRIMARY KEY,
	source             TEXT NOT NULL,
	state              TEXT NOT NULL,
	run_key            TEXT,
	endpoint_or_file   TEXT,
	status             TEXT NOT NULL DEFAULT 'running',
	started_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at        DATETIME,
	row_count_raw      INTEGER NOT NULL DEFAULT 0,
	row_count_staged   INTEGER NOT NULL DEFAULT 0,
	new_candidates     INTEGER NOT NULL DEFAULT 0,
	updated_candidates INTEGER NOT NULL DEFAULT 0,
	review_candidates  INTEGER NOT NULL DEFAULT 0,
	errors             INTEGER NOT NULL DEFAULT 0,
	actor              TEXT,
	notes              TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_state ON ingest_runs(state);
CREATE INDEX IF NOT EXISTS idx_runs_status ON ingest_runs(status);

CREATE TABLE IF NOT EXISTS candidate_matches (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	candidate_id  TEXT NOT NULL,
	incoming_name TEXT NOT NULL,
	matched_name  TEXT NOT NULL,
	confidence    REAL NOT NULL,
	method        TEXT NOT NULL,
	decided_by    TEXT NOT NULL,
	decided_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	note          TEXT
);

CREATE INDEX IF NOT EXISTS idx_matches_run_id ON candidate_matches(run_id);
CREATE INDEX IF NOT EXISTS idx_matches_candidate ON candidate_matches(candidate_id);

CREATE TABLE IF NOT EXISTS review_queue (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	staged       TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	matched_name TEXT NOT NULL,
	confidence   REAL NOT NULL,
	method       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	resolved_at  DATETIME,
	resolved_by  TEXT
);

CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_run_id ON review_queue(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, source, state, endpoint string) (*model.IngestRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	runKey := fmt.Sprintf("%s-%s-%d", state, source, now.Unix())

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, source, state, run_key, endpoint_or_file, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, source, state, runKey, endpoint, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.IngestRun{
		ID:             id,
		Source:         source,
		State:          state,
		RunKey:         runKey,
		EndpointOrFile: endpoint,
		Status:         model.RunStatusRunning,
		StartedAt:      now,
	}, nil
}

func (s *SQLiteStore) FinalizeRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs
		 SET status = ?, finished_at = ?, row_count_raw = ?, row_count_staged = ?,
		     new_candidates = ?, updated_candidates = ?, review_candidates = ?, errors = ?
		 WHERE id = ?`,
		string(status), time.Now().UTC(), stats.TotalRaw, stats.TotalStaged,
		stats.NewCandidates, stats.UpdatedCandidates, stats.ReviewCandidates, stats.Errors, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.IngestRun, error) {
	var r model.IngestRun
	var actor, notes, runKey, endpoint sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, state, run_key, endpoint_or_file, status, started_at, finished_at, row_count_raw, row_count_staged, new_candidates, updated_candidates, review_candidates, errors, actor, notes FROM ingest_runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.Source, &r.State, &runKey, &endpoint, &r.Status,
		&r.StartedAt, &r.FinishedAt, &r.RowCountRaw, &r.RowCountStaged,
		&r.NewCandidates, &r.UpdatedCandidates, &r.ReviewCandidates, &r.Errors,
		&actor, &notes)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	r.RunKey = runKey.String
	r.EndpointOrFile = endpoint.String
	r.Actor = actor.String
	r.Notes = notes.String
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error) {
	query := `SELECT id, source, state, run_key, endpoint_or_file, status, started_at, finished_at, row_count_raw, row_count_staged, new_candidates, updated_candidates, review_candidates, errors, actor, notes FROM ingest_runs WHERE 1=1`
	args := []any{}

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var actor, notes, runKey, endpoint sql.NullString
		if err := rows.Scan(&r.ID, &r.Source, &r.State, &runKey, &endpoint,
			&r.Status, &r.StartedAt, &r.FinishedAt, &r.RowCountRaw, &r.RowCountStaged,
			&r.NewCandidates, &r.UpdatedCandidates, &r.ReviewCandidates, &r.Errors,
			&actor, &notes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.RunKey = runKey.String
		r.EndpointOrFile = endpoint.String
		r.Actor = actor.String
		r.Notes = notes.String
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) StageCandidates(ctx context.Context, runID string, batch []model.StagedCandidate) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin stage tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candidates_stage (id, run_id, source, source_row_id, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare stage insert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, sc := range batch {
		payload, err := json.Marshal(sc)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal staged candidate")
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, sc.Candidate.Source, sc.Candidate.SourceRowID,
			string(payload), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: stage candidate for run %s", runID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit stage tx")
	}
	return len(batch), nil
}

func (s *SQLiteStore) ExistingCandidates(ctx context.Context, state string, electionYear int) ([]model.ExistingCandidate, error) {
	query := `SELECT id, full_name, first_name, last_name, party, office_level, office_name, state, district_number, ocd_division_id, election_year, status, is_withdrawn FROM candidates WHERE state = ?`
	args := []any{state}
	if electionYear > 0 {
		query += ` AND election_year = ?`
		args = append(args, electionYear)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query existing candidates")
	}
	defer rows.Close()

	var pool []model.ExistingCandidate
	index := make(map[string]int)
	for rows.Next() {
		var c model.ExistingCandidate
		var first, last, party, district, ocd sql.NullString
		if err := rows.Scan(&c.ID, &c.FullName, &first, &last, &party,
			&c.OfficeLevel, &c.OfficeName, &c.State, &district,
			&ocd, &c.ElectionYear, &c.Status, &c.IsWithdrawn); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan existing candidate")
		}
		c.FirstName = first.String
		c.LastName = last.String
		c.Party = party.String
		c.DistrictNumber = district.String
		c.OCDDivisionID = ocd.String
		index[c.ID] = len(pool)
		pool = append(pool, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: existing candidates iterate")
	}

	idRows, err := s.db.QueryContext(ctx,
		`SELECT e.candidate_id, e.authority, e.value
		 FROM candidate_external_ids e
		 JOIN candidates c ON c.id = e.candidate_id
		 WHERE c.state = ?`,
		state,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query external ids")
	}
	defer idRows.Close()

	for idRows.Next() {
		var candidateID string
		var eid model.ExternalID
		if err := idRows.Scan(&candidateID, &eid.Authority, &eid.Value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan external id")
		}
		if i, ok := index[candidateID]; ok {
			pool[i].ExternalIDs = append(pool[i].ExternalIDs, eid)
		}
	}
	return pool, eris.Wrap(idRows.Err(), "sqlite: external ids iterate")
}

func (s *SQLiteStore) InsertCandidate(ctx context.Context, runID string, sc model.StagedCandidate) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	c := sc.Candidate

	contactJSON, socialJSON, filingJSON, err := marshalAux(sc)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal candidate detail")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO candidates
		 (id, full_name, first_name, last_name, party, office_level, office_name, state, district_number, ocd_division_id, election_year, gender, jurisdiction, committee_name, website, email, status, is_withdrawn, contact, social, filing, first_seen_run, last_seen_run, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.FullName, c.FirstName, c.LastName, c.Party, string(c.OfficeLevel),
		c.OfficeName, c.State, c.DistrictNumber, c.OCDDivisionID, c.ElectionYear,
		c.Gender, c.Jurisdiction, c.CommitteeName, c.Website, c.Email, c.Status,
		c.IsWithdrawn, nullableJSON(contactJSON), nullableJSON(socialJSON), nullableJSON(filingJSON),
		runID, runID, now, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert candidate")
	}
	return id, nil
}

func (s *SQLiteStore) UpdateCandidate(ctx context.Context, candidateID, runID string, sc model.StagedCandidate) error {
	now := time.Now().UTC()
	c := sc.Candidate

	contactJSON, socialJSON, filingJSON, err := marshalAux(sc)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal candidate detail")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates
		 SET party = ?, office_name = ?, district_number = ?, ocd_division_id = ?,
		     election_year = ?, jurisdiction = ?, committee_name = ?, website = ?,
		     email = ?, status = ?, is_withdrawn = ?, contact = ?, social = ?,
		     filing = ?, last_seen_run = ?, updated_at = ?
		 WHERE id = ?`,
		c.Party, c.OfficeName, c.DistrictNumber, c.OCDDivisionID, c.ElectionYear,
		c.Jurisdiction, c.CommitteeName, c.Website, c.Email, c.Status, c.IsWithdrawn,
		nullableJSON(contactJSON), nullableJSON(socialJSON), nullableJSON(filingJSON),
		runID, now, candidateID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update candidate %s", candidateID)
	}
	return checkRowsAffected(res, "candidate", candidateID)
}

func (s *SQLiteStore) UpsertExternalIDs(ctx context.Context, ids []ExternalIDRow) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tx")
	}
	defer tx.Rollback()

	var n int64
	for _, row := range ids {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO candidate_external_ids (candidate_id, authority, value, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (authority, value) DO UPDATE SET candidate_id = excluded.candidate_id`,
			row.CandidateID, row.Authority, row.Value, time.Now().UTC(),
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: upsert external id")
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert tx")
	}
	return n, nil
}

func (s *SQLiteStore) RecordMatch(ctx context.Context, rec model.MatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO candidate_matches (id, run_id, candidate_id, incoming_name, matched_name, confidence, method, decided_by, decided_at, note) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.CandidateID, rec.IncomingName, rec.MatchedName,
		rec.Confidence, rec.Method, string(rec.DecidedBy), rec.DecidedAt, rec.Note,
	)
	return eris.Wrap(err, "sqlite: record match")
}

func (s *SQLiteStore) EnqueueReview(ctx context.Context, item model.ReviewItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	stagedJSON, err := json.Marshal(item.Staged)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal review payload")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO review_queue (id, run_id, staged, candidate_id, matched_name, confidence, method, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.RunID, string(stagedJSON), item.CandidateID, item.MatchedName,
		item.Confidence, item.Method, string(model.ReviewStatusPending), item.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: enqueue review")
	}
	return item.ID, nil
}

func (s *SQLiteStore) PendingReviews(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, staged, candidate_id, matched_name, confidence, method, status, created_at, resolved_at, resolved_by
		 FROM review_queue WHERE status = 'pending'
		 ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending reviews")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewRow(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review")
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: pending reviews iterate")
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, reviewID string, status model.ReviewStatus, resolvedBy string) (*model.ReviewItem, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE review_queue SET status = ?, resolved_at = ?, resolved_by = ? WHERE id = ? AND status = 'pending'`,
		string(status), time.Now().UTC(), resolvedBy, reviewID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: resolve review %s", reviewID)
	}
	if err := checkRowsAffected(res, "pending review", reviewID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, staged, candidate_id, matched_name, confidence, method, status, created_at, resolved_at, resolved_by
		 FROM review_queue WHERE id = ?`,
		reviewID,
	)
	item, err := scanReviewRow(row.Scan)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read resolved review %s", reviewID)
	}
	return item, nil
}

// nullableJSON converts an absent payload to NULL instead of an empty blob.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
