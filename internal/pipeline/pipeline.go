// Package pipeline orchestrates one state ingestion: fetch and normalize the
// listing, stage it, match every candidate against the stored pool, then
// apply the categorized batch (insert, update, or queue for review).
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/SPMStrategies/Candidate-Database/internal/match"
	"github.com/SPMStrategies/Candidate-Database/internal/model"
	"github.com/SPMStrategies/Candidate-Database/internal/source"
	"github.com/SPMStrategies/Candidate-Database/internal/store"
)

// Options controls one pipeline execution.
type Options struct {
	// DryRun fetches and matches but writes nothing.
	DryRun bool
	// UseCache serves listings from the local fetch cache when available.
	UseCache bool
}

// Pipeline runs state ingestions against a store.
type Pipeline struct {
	store   store.Store
	matcher *match.Matcher
}

// New creates a Pipeline.
func New(st store.Store, m *match.Matcher) *Pipeline {
	return &Pipeline{store: st, matcher: m}
}

// Run executes the full ingestion for one state source and returns its stats.
func (p *Pipeline) Run(ctx context.Context, src source.Source, opts Options) (*model.RunStats, error) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("state", src.State()),
		zap.String("source", src.Name()),
	)
	start := time.Now()

	staged, rawCount, err := src.Candidates(ctx, opts.UseCache)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch %s", src.Name())
	}
	log.Info("listing fetched", zap.Int("raw", rawCount), zap.Int("staged", len(staged)))

	pool, err := p.store.ExistingCandidates(ctx, src.State(), 0)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load candidate pool")
	}

	candidates := make([]model.NormalizedCandidate, len(staged))
	for i, sc := range staged {
		candidates[i] = sc.Candidate
	}
	batch := p.matcher.CategorizeBatch(candidates, pool)

	stats := &model.RunStats{
		TotalRaw:          rawCount,
		TotalStaged:       len(staged),
		NewCandidates:     len(batch.New),
		UpdatedCandidates: len(batch.Update),
		ReviewCandidates:  len(batch.Review),
		DryRun:            opts.DryRun,
	}

	if opts.DryRun {
		stats.Elapsed = time.Since(start)
		log.Info("dry run complete",
			zap.Int("new", stats.NewCandidates),
			zap.Int("update", stats.UpdatedCandidates),
			zap.Int("review", stats.ReviewCandidates))
		return stats, nil
	}

	run, err := p.store.CreateRun(ctx, src.Name(), src.State(), "")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}

	if _, err := p.store.StageCandidates(ctx, run.ID, staged); err != nil {
		p.finalize(ctx, log, run.ID, model.RunStatusFailed, stats, start)
		return nil, eris.Wrap(err, "pipeline: stage candidates")
	}

	stats.NewCandidates, stats.UpdatedCandidates, stats.ReviewCandidates = 0, 0, 0
	var externalIDs []store.ExternalIDRow

	for _, item := range batch.New {
		id, err := p.store.InsertCandidate(ctx, run.ID, staged[item.Index])
		if err != nil {
			log.Error("insert failed", zap.String("name", item.Candidate.FullName), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.NewCandidates++
		externalIDs = appendExternalID(externalIDs, id, item.Candidate)
	}

	for _, item := range batch.Update {
		if err := p.store.UpdateCandidate(ctx, item.Match.CandidateID, run.ID, staged[item.Index]); err != nil {
			log.Error("update failed", zap.String("name", item.Candidate.FullName), zap.Error(err))
			stats.Errors++
			continue
		}
		if err := p.store.RecordMatch(ctx, model.MatchRecord{
			RunID:        run.ID,
			CandidateID:  item.Match.CandidateID,
			IncomingName: item.Candidate.FullName,
			MatchedName:  item.Match.ExistingName,
			Confidence:   item.Match.Confidence,
			Method:       string(item.Match.Method),
			DecidedBy:    model.MatchDecisionAuto,
		}); err != nil {
			log.Warn("match record failed", zap.String("name", item.Candidate.FullName), zap.Error(err))
		}
		stats.UpdatedCandidates++
		externalIDs = appendExternalID(externalIDs, item.Match.CandidateID, item.Candidate)
	}

	for _, item := range batch.Review {
		if _, err := p.store.EnqueueReview(ctx, model.ReviewItem{
			RunID:       run.ID,
			Staged:      staged[item.Index],
			CandidateID: item.Match.CandidateID,
			MatchedName: item.Match.ExistingName,
			Confidence:  item.Match.Confidence,
			Method:      string(item.Match.Method),
		}); err != nil {
			log.Error("review enqueue failed", zap.String("name", item.Candidate.FullName), zap.Error(err))
			stats.Errors++
			continue
		}
		stats.ReviewCandidates++
	}

	if len(externalIDs) > 0 {
		if _, err := p.store.UpsertExternalIDs(ctx, externalIDs); err != nil {
			log.Warn("external id upsert failed", zap.Error(err))
			stats.Errors++
		}
	}

	status := model.RunStatusComplete
	if stats.Errors > 0 && stats.NewCandidates+stats.UpdatedCandidates+stats.ReviewCandidates == 0 {
		status = model.RunStatusFailed
	}
	p.finalize(ctx, log, run.ID, status, stats, start)

	log.Info("ingestion complete",
		zap.String("run_id", run.ID),
		zap.Int("new", stats.NewCandidates),
		zap.Int("update", stats.UpdatedCandidates),
		zap.Int("review", stats.ReviewCandidates),
		zap.Int("errors", stats.Errors),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func (p *Pipeline) finalize(ctx context.Context, log *zap.Logger, runID string, status model.RunStatus, stats *model.RunStats, start time.Time) {
	stats.Elapsed = time.Since(start)
	if err := p.store.FinalizeRun(ctx, runID, status, *stats); err != nil {
		log.Warn("run finalize failed", zap.String("run_id", runID), zap.Error(err))
	}
}

// ResolveReview applies a human decision to a queued match. Approval updates
// the matched candidate and records a manual match; rejection inserts the
// staged candidate as a new record instead.
func (p *Pipeline) ResolveReview(ctx context.Context, reviewID string, approve bool, resolvedBy string) (*model.ReviewItem, error) {
	status := model.ReviewStatusApproved
	if !approve {
		status = model.ReviewStatusRejected
	}

	item, err := p.store.ResolveReview(ctx, reviewID, status, resolvedBy)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: resolve review %s", reviewID)
	}

	if approve {
		if err := p.store.UpdateCandidate(ctx, item.CandidateID, item.RunID, item.Staged); err != nil {
			return nil, eris.Wrap(err, "pipeline: apply approved review")
		}
		if err := p.store.RecordMatch(ctx, model.MatchRecord{
			RunID:        item.RunID,
			CandidateID:  item.CandidateID,
			IncomingName: item.Staged.Candidate.FullName,
			MatchedName:  item.MatchedName,
			Confidence:   item.Confidence,
			Method:       item.Method,
			DecidedBy:    model.MatchDecisionManual,
		}); err != nil {
			zap.L().Warn("match record failed",
				zap.String("component", "pipeline"), zap.String("review_id", reviewID), zap.Error(err))
		}
		return item, nil
	}

	if _, err := p.store.InsertCandidate(ctx, item.RunID, item.Staged); err != nil {
		return nil, eris.Wrap(err, "pipeline: insert rejected review as new")
	}
	return item, nil
}

func appendExternalID(ids []store.ExternalIDRow, candidateID string, c model.NormalizedCandidate) []store.ExternalIDRow {
	if c.ExternalIDType == "" || c.ExternalIDValue == "" {
		return ids
	}
	return append(ids, store.ExternalIDRow{
		CandidateID: candidateID,
		Authority:   c.ExternalIDType,
		Value:       c.ExternalIDValue,
	})
}
