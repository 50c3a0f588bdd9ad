// Package source fetches and normalizes candidate listings from state
// election authorities. Each state publishes a different shape (CSV exports,
// HTML tables); every source reduces its shape to the common staged-candidate
// form the deduplication core and store operate on.
package source

import (
	"context"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// SourceName is the ingest-source label recorded on every staged candidate.
const SourceName = "STATE"

// Source produces the normalized candidate batch for one state.
type Source interface {
	// State returns the two-letter postal code.
	State() string
	// Name identifies the source for run tracking and logging.
	Name() string
	// Candidates fetches and transforms the current listing. The second
	// return is the raw row count before transformation dropped any rows.
	Candidates(ctx context.Context, useCache bool) ([]model.StagedCandidate, int, error)
}
