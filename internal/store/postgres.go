package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/SPMStrategies/Candidate-Database/internal/db"
	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot ingest path.
var preparedStatements = map[string]string{
	"insert_run":   `INSERT INTO ingest_runs (id, source, state, run_key, endpoint_or_file, status, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"get_run":      `SELECT id, source, state, run_key, endpoint_or_file, status, started_at, finished_at, row_count_raw, row_count_staged, new_candidates, updated_candidates, review_candidates, errors, actor, notes FROM ingest_runs WHERE id = $1`,
	"insert_match": `INSERT INTO candidate_matches (id, run_id, candidate_id, incoming_name, matched_name, confidence, method, decided_by, decided_at, note) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	is_withdrawn     BOOLEAN NOT NULL DEFAULT false,
	contact          JSONB,
	social           JSONB,
	filing           JSONB,
	first_seen_run   TEXT,
	last_seen_run    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_candidates_state ON candidates(state);
CREATE INDEX IF NOT EXISTS idx_candidates_state_year ON candidates(state, election_year);
CREATE INDEX IF NOT EXISTS idx_candidates_last_name ON candidates(last_name);

CREATE TABLE IF NOT EXISTS candidate_external_ids (
	candidate_id TEXT NOT NULL REFERENCES candidates(id),
	authority    TEXT NOT NULL,
	value        TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (authority, value)
);

CREATE INDEX IF NOT EXISTS idx_external_ids_candidate ON candidate_external_ids(candidate_id);

CREATE TABLE IF NOT EXISTS candidates_stage (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	source        TEXT NOT NULL,
	source_row_id TEXT,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_stage_run_id ON candidates_stage(run_id);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id                 TEXT PRIMARY KEY,
	source             TEXT NOT NULL,
	state              TEXT NOT NULL,
	run_key            TEXT,
	endpoint_or_file   TEXT,
	status             TEXT NOT NULL DEFAULT 'running',
	started_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at        TIMESTAMPTZ,
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
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	candidate_id TEXT NOT NULL,
	incoming_name TEXT NOT NULL,
	matched_name  TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	method       TEXT NOT NULL,
	decided_by   TEXT NOT NULL,
	decided_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	note         TEXT
);

CREATE INDEX IF NOT EXISTS idx_matches_run_id ON candidate_matches(run_id);
CREATE INDEX IF NOT EXISTS idx_matches_candidate ON candidate_matches(candidate_id);

CREATE TABLE IF NOT EXISTS review_queue (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL,
	staged       JSONB NOT NULL,
	candidate_id TEXT NOT NULL,
	matched_name TEXT NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	method       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at  TIMESTAMPTZ,
	resolved_by  TEXT
);

CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status);
CREATE INDEX IF NOT EXISTS idx_review_run_id ON review_queue(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, source, state, endpoint string) (*model.IngestRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	runKey := fmt.Sprintf("%s-%s-%d", state, source, now.Unix())

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, source, state, run_key, endpoint_or_file, status, started_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, source, state, runKey, endpoint, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
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

func (s *PostgresStore) FinalizeRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs
		 SET status = $1, finished_at = $2, row_count_raw = $3, row_count_staged = $4,
		     new_candidates = $5, updated_candidates = $6, review_candidates = $7, errors = $8
		 WHERE id = $9`,
		string(status), time.Now().UTC(), stats.TotalRaw, stats.TotalStaged,
		stats.NewCandidates, stats.UpdatedCandidates, stats.ReviewCandidates, stats.Errors, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.IngestRun, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, state, run_key, endpoint_or_file, status, started_at, finished_at, row_count_raw, row_count_staged, new_candidates, updated_candidates, review_candidates, errors, actor, notes FROM ingest_runs WHERE id = $1`,
		runID,
	)
	r, err := scanRunRow(row.Scan)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error) {
	query := `SELECT id, source, state, run_key, endpoint_or_file, status, started_at, finished_at, row_count_raw, row_count_staged, new_candidates, updated_candidates, review_candidates, errors, actor, notes FROM ingest_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		r, err := scanRunRow(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// scanRunRow scans one ingest_runs row; actor and notes stay NULL until an
// operator annotates the run.
func scanRunRow(scan func(dest ...any) error) (*model.IngestRun, error) {
	var r model.IngestRun
	var actor, notes *string

	if err := scan(&r.ID, &r.Source, &r.State, &r.RunKey, &r.EndpointOrFile,
		&r.Status, &r.StartedAt, &r.FinishedAt, &r.RowCountRaw, &r.RowCountStaged,
		&r.NewCandidates, &r.UpdatedCandidates, &r.ReviewCandidates, &r.Errors,
		&actor, &notes); err != nil {
		return nil, err
	}
	if actor != nil {
		r.Actor = *actor
	}
	if notes != nil {
		r.Notes = *notes
	}
	return &r, nil
}

func (s *PostgresStore) StageCandidates(ctx context.Context, runID string, batch []model.StagedCandidate) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(batch))
	for _, sc := range batch {
		payload, err := json.Marshal(sc)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal staged candidate")
		}
		rows = append(rows, []any{
			uuid.New().String(), runID, sc.Candidate.Source, sc.Candidate.SourceRowID, payload, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "candidates_stage",
		[]string{"id", "run_id", "source", "source_row_id", "payload", "created_at"}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: stage candidates for run %s", runID)
	}
	return int(n), nil
}

func (s *PostgresStore) ExistingCandidates(ctx context.Context, state string, electionYear int) ([]model.ExistingCandidate, error) {
	query := `SELECT id, full_name, first_name, last_name, party, office_level, office_name, state, district_number, ocd_division_id, election_year, status, is_withdrawn FROM candidates WHERE state = $1`
	args := []any{state}
	if electionYear > 0 {
		query += ` AND election_year = $2`
		args = append(args, electionYear)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query existing candidates")
	}
	defer rows.Close()

	var pool []model.ExistingCandidate
	index := make(map[string]int)
	for rows.Next() {
		var c model.ExistingCandidate
		if err := rows.Scan(&c.ID, &c.FullName, &c.FirstName, &c.LastName, &c.Party,
			&c.OfficeLevel, &c.OfficeName, &c.State, &c.DistrictNumber,
			&c.OCDDivisionID, &c.ElectionYear, &c.Status, &c.IsWithdrawn); err != nil {
			return nil, eris.Wrap(err, "postgres: scan existing candidate")
		}
		index[c.ID] = len(pool)
		pool = append(pool, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: existing candidates iterate")
	}

	idRows, err := s.pool.Query(ctx,
		`SELECT e.candidate_id, e.authority, e.value
		 FROM candidate_external_ids e
		 JOIN candidates c ON c.id = e.candidate_id
		 WHERE c.state = $1`,
		state,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query external ids")
	}
	defer idRows.Close()

	for idRows.Next() {
		var candidateID string
		var eid model.ExternalID
		if err := idRows.Scan(&candidateID, &eid.Authority, &eid.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan external id")
		}
		if i, ok := index[candidateID]; ok {
			pool[i].ExternalIDs = append(pool[i].ExternalIDs, eid)
		}
	}
	return pool, eris.Wrap(idRows.Err(), "postgres: external ids iterate")
}

func (s *PostgresStore) InsertCandidate(ctx context.Context, runID string, sc model.StagedCandidate) (string, error) {
	id := uuid.New().String()
	now := time.Now().UTC()
	c := sc.Candidate

	contactJSON, socialJSON, filingJSON, err := marshalAux(sc)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal candidate detail")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO candidates
		 (id, full_name, first_name, last_name, party, office_level, office_name, state, district_number, ocd_division_id, election_year, gender, jurisdiction, committee_name, website, email, status, is_withdrawn, contact, social, filing, first_seen_run, last_seen_run, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		id, c.FullName, c.FirstName, c.LastName, c.Party, string(c.OfficeLevel),
		c.OfficeName, c.State, c.DistrictNumber, c.OCDDivisionID, c.ElectionYear,
		c.Gender, c.Jurisdiction, c.CommitteeName, c.Website, c.Email, c.Status,
		c.IsWithdrawn, contactJSON, socialJSON, filingJSON, runID, runID, now, now,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert candidate")
	}
	return id, nil
}

func (s *PostgresStore) UpdateCandidate(ctx context.Context, candidateID, runID string, sc model.StagedCandidate) error {
	now := time.Now().UTC()
	c := sc.Candidate

	contactJSON, socialJSON, filingJSON, err := marshalAux(sc)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal candidate detail")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates
		 SET party = $1, office_name = $2, district_number = $3, ocd_division_id = $4,
		     election_year = $5, jurisdiction = $6, committee_name = $7, website = $8,
		     email = $9, status = $10, is_withdrawn = $11, contact = $12, social = $13,
		     filing = $14, last_seen_run = $15, updated_at = $16
		 WHERE id = $17`,
		c.Party, c.OfficeName, c.DistrictNumber, c.OCDDivisionID, c.ElectionYear,
		c.Jurisdiction, c.CommitteeName, c.Website, c.Email, c.Status, c.IsWithdrawn,
		contactJSON, socialJSON, filingJSON, runID, now, candidateID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update candidate %s", candidateID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("candidate not found: %s", candidateID)
	}
	return nil
}

func (s *PostgresStore) UpsertExternalIDs(ctx context.Context, ids []ExternalIDRow) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(ids))
	for _, row := range ids {
		rows = append(rows, []any{row.CandidateID, row.Authority, row.Value})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "candidate_external_ids",
		Columns:      []string{"candidate_id", "authority", "value"},
		ConflictKeys: []string{"authority", "value"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert external ids")
	}
	return n, nil
}

func (s *PostgresStore) RecordMatch(ctx context.Context, rec model.MatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO candidate_matches (id, run_id, candidate_id, incoming_name, matched_name, confidence, method, decided_by, decided_at, note) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.RunID, rec.CandidateID, rec.IncomingName, rec.MatchedName,
		rec.Confidence, rec.Method, string(rec.DecidedBy), rec.DecidedAt, rec.Note,
	)
	return eris.Wrap(err, "postgres: record match")
}

func (s *PostgresStore) EnqueueReview(ctx context.Context, item model.ReviewItem) (string, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	stagedJSON, err := json.Marshal(item.Staged)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal review payload")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO review_queue (id, run_id, staged, candidate_id, matched_name, confidence, method, status, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.RunID, stagedJSON, item.CandidateID, item.MatchedName,
		item.Confidence, item.Method, string(model.ReviewStatusPending), item.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: enqueue review")
	}
	return item.ID, nil
}

func (s *PostgresStore) PendingReviews(ctx context.Context, limit int) ([]model.ReviewItem, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, staged, candidate_id, matched_name, confidence, method, status, created_at, resolved_at, resolved_by
		 FROM review_queue WHERE status = 'pending'
		 ORDER BY created_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending reviews")
	}
	defer rows.Close()

	var items []model.ReviewItem
	for rows.Next() {
		item, err := scanReviewRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, eris.Wrap(rows.Err(), "postgres: pending reviews iterate")
}

func (s *PostgresStore) ResolveReview(ctx context.Context, reviewID string, status model.ReviewStatus, resolvedBy string) (*model.ReviewItem, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE review_queue
		 SET status = $1, resolved_at = $2, resolved_by = $3
		 WHERE id = $4 AND status = 'pending'
		 RETURNING id, run_id, staged, candidate_id, matched_name, confidence, method, status, created_at, resolved_at, resolved_by`,
		string(status), time.Now().UTC(), resolvedBy, reviewID,
	)

	item, err := scanReviewRow(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("pending review not found: %s", reviewID)
		}
		return nil, eris.Wrapf(err, "postgres: resolve review %s", reviewID)
	}
	return item, nil
}

// scanReviewRow scans one review_queue row; the staged payload column is
// unmarshalled back into the full staged candidate.
func scanReviewRow(scan func(dest ...any) error) (*model.ReviewItem, error) {
	var item model.ReviewItem
	var stagedJSON []byte
	var resolvedBy *string

	if err := scan(&item.ID, &item.RunID, &stagedJSON, &item.CandidateID,
		&item.MatchedName, &item.Confidence, &item.Method, &item.Status,
		&item.CreatedAt, &item.ResolvedAt, &resolvedBy); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stagedJSON, &item.Staged); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal review payload")
	}
	if resolvedBy != nil {
		item.ResolvedBy = *resolvedBy
	}
	return &item, nil
}

func marshalAux(sc model.StagedCandidate) (contact, social, filing []byte, err error) {
	if sc.Contact != nil {
		if contact, err = json.Marshal(sc.Contact); err != nil {
			return nil, nil, nil, err
		}
	}
	if len(sc.Social) > 0 {
		if social, err = json.Marshal(sc.Social); err != nil {
			return nil, nil, nil, err
		}
	}
	if sc.Filing != nil {
		if filing, err = json.Marshal(sc.Filing); err != nil {
			return nil, nil, nil, err
		}
	}
	return contact, social, filing, nil
}
