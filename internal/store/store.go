// Package store persists candidates, ingest runs, match audit records, and
// the manual review queue. Two backends implement the same interface:
// PostgreSQL for the shared database and SQLite for local workflows.
package store

import (
	"context"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// RunFilter specifies criteria for listing ingest runs.
type RunFilter struct {
	State  string          `json:"state,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// ExternalIDRow links one external authority id to a stored candidate.
type ExternalIDRow struct {
	CandidateID string
	Authority   string
	Value       string
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, source, state, endpoint string) (*model.IngestRun, error)
	FinalizeRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error
	GetRun(ctx context.Context, runID string) (*model.IngestRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.IngestRun, error)

	// Staging
	StageCandidates(ctx context.Context, runID string, batch []model.StagedCandidate) (int, error)

	// Candidates
	ExistingCandidates(ctx context.Context, state string, electionYear int) ([]model.ExistingCandidate, error)
	InsertCandidate(ctx context.Context, runID string, sc model.StagedCandidate) (string, error)
	UpdateCandidate(ctx context.Context, candidateID, runID string, sc model.StagedCandidate) error
	UpsertExternalIDs(ctx context.Context, ids []ExternalIDRow) (int64, error)

	// Match audit and review queue
	RecordMatch(ctx context.Context, rec model.MatchRecord) error
	EnqueueReview(ctx context.Context, item model.ReviewItem) (string, error)
	PendingReviews(ctx context.Context, limit int) ([]model.ReviewItem, error)
	ResolveReview(ctx context.Context, reviewID string, status model.ReviewStatus, resolvedBy string) (*model.ReviewItem, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
