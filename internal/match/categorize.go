package match

import (
	"go.uber.org/zap"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

// MatchInfo annotates a categorized candidate with the match that placed it
// in the update or review bucket.
type MatchInfo struct {
	CandidateID  string  `json:"candidate_id"`
	Confidence   float64 `json:"confidence"`
	Method       Method  `json:"method"`
	ExistingName string  `json:"existing_name"`
}

// Item is one incoming candidate after categorization. Index is the
// candidate's position in the input batch, so callers can correlate buckets
// back to records staged alongside the batch.
type Item struct {
	Index     int                       `json:"index"`
	Candidate model.NormalizedCandidate `json:"candidate"`
	Match     *MatchInfo                `json:"match_info,omitempty"`
}

// Batch is the categorized output of one deduplication run. Skip is reserved
// for explicit exclude-lists and is never populated by the default policy.
type Batch struct {
	New    []Item `json:"new"`
	Update []Item `json:"update"`
	Review []Item `json:"review"`
	Skip   []Item `json:"skip"`
}

// CategorizeBatch runs FindMatch on every candidate in the batch and buckets
// each result. It is a pure function of the batch, the pool, and the
// configured thresholds: no I/O, no state across calls, and the outcome for
// one candidate never depends on another's.
func (m *Matcher) CategorizeBatch(batch []model.NormalizedCandidate, pool []model.ExistingCandidate) *Batch {
	log := zap.L().With(zap.String("component", "categorizer"))
	out := &Batch{}

	for i, candidate := range batch {
		res := m.FindMatch(candidate, pool)
		item := Item{Index: i, Candidate: candidate}

		if res.Candidate == nil {
			out.New = append(out.New, item)
			log.Debug("new candidate", zap.String("name", candidate.FullName))
			continue
		}

		item.Match = &MatchInfo{
			CandidateID:  res.Candidate.ID,
			Confidence:   res.Confidence,
			Method:       res.Method,
			ExistingName: res.Candidate.FullName,
		}

		switch {
		case res.Confidence >= m.cfg.HighConfidenceThreshold:
			out.Update = append(out.Update, item)
			log.Info("auto-match",
				zap.String("incoming", candidate.FullName),
				zap.String("existing", res.Candidate.FullName),
				zap.Float64("confidence", res.Confidence),
				zap.String("method", string(res.Method)),
			)
		case res.Confidence >= m.cfg.ReviewThreshold:
			out.Review = append(out.Review, item)
			log.Info("review needed",
				zap.String("incoming", candidate.FullName),
				zap.String("existing", res.Candidate.FullName),
				zap.Float64("confidence", res.Confidence),
				zap.String("method", string(res.Method)),
			)
		default:
			// The matcher filters sub-review scores out already; treat
			// anything that slips through as a new candidate.
			out.New = append(out.New, item)
		}
	}

	log.Info("matching complete",
		zap.Int("new", len(out.New)),
		zap.Int("updates", len(out.Update)),
		zap.Int("review", len(out.Review)),
		zap.Int("skipped", len(out.Skip)),
	)

	return out
}
