package model

import "time"

// RunStatus represents the current state of an ingest run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// IngestRun tracks one execution of a state ingestion pipeline.
type IngestRun struct {
	ID                string     `json:"id" yaml:"id"`
	Source            string     `json:"source" yaml:"source"`
	State             string     `json:"state" yaml:"state"`
	RunKey            string     `json:"run_key,omitempty" yaml:"run_key,omitempty"`
	EndpointOrFile    string     `json:"endpoint_or_file,omitempty" yaml:"endpoint_or_file,omitempty"`
	Status            RunStatus  `json:"status" yaml:"status"`
	StartedAt         time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	RowCountRaw       int        `json:"row_count_raw" yaml:"row_count_raw"`
	RowCountStaged    int        `json:"row_count_staged" yaml:"row_count_staged"`
	NewCandidates     int        `json:"new_candidates" yaml:"new_candidates"`
	UpdatedCandidates int        `json:"updated_candidates" yaml:"updated_candidates"`
	ReviewCandidates  int        `json:"review_candidates" yaml:"review_candidates"`
	Errors            int        `json:"errors" yaml:"errors"`
	Actor             string     `json:"actor,omitempty" yaml:"actor,omitempty"`
	Notes             string     `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// MatchDecision records who or what accepted a candidate match.
type MatchDecision string

const (
	MatchDecisionAuto     MatchDecision = "auto"
	MatchDecisionManual   MatchDecision = "manual"
	MatchDecisionRejected MatchDecision = "rejected"
)

// MatchRecord is the audit-trail entry written for every accepted match.
type MatchRecord struct {
	ID           string        `json:"id"`
	RunID        string        `json:"run_id"`
	CandidateID  string        `json:"candidate_id"`
	IncomingName string        `json:"incoming_name"`
	MatchedName  string        `json:"matched_name"`
	Confidence   float64       `json:"confidence"`
	Method       string        `json:"method"`
	DecidedBy    MatchDecision `json:"decided_by"`
	DecidedAt    time.Time     `json:"decided_at"`
	Note         string        `json:"note,omitempty"`
}

// ReviewStatus is the lifecycle state of a review-queue entry.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// ReviewItem is a candidate whose best match needs a human decision.
type ReviewItem struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	Staged      StagedCandidate `json:"staged"`
	CandidateID string          `json:"candidate_id"`
	MatchedName string          `json:"matched_name"`
	Confidence  float64         `json:"confidence"`
	Method      string          `json:"method"`
	Status      ReviewStatus    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	ResolvedBy  string          `json:"resolved_by,omitempty"`
}

// RunStats summarizes one pipeline execution for CLI output.
type RunStats struct {
	TotalRaw          int           `json:"total_raw"`
	TotalStaged       int           `json:"total_staged"`
	NewCandidates     int           `json:"new_candidates"`
	UpdatedCandidates int           `json:"updated_candidates"`
	ReviewCandidates  int           `json:"review_candidates"`
	Errors            int           `json:"errors"`
	Elapsed           time.Duration `json:"elapsed"`
	DryRun            bool          `json:"dry_run"`
}
