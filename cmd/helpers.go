package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/SPMStrategies/Candidate-Database/internal/fetcher"
	"github.com/SPMStrategies/Candidate-Database/internal/match"
	"github.com/SPMStrategies/Candidate-Database/internal/pipeline"
	"github.com/SPMStrategies/Candidate-Database/internal/source"
	"github.com/SPMStrategies/Candidate-Database/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "candidates.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initFetcher() *fetcher.HTTPFetcher {
	return fetcher.New(fetcher.Options{
		UserAgent:  cfg.HTTP.UserAgent,
		Timeout:    time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxRetries: cfg.HTTP.MaxRetries,
		RatePerSec: cfg.HTTP.RatePerSec,
		CacheDir:   cfg.HTTP.CacheDir,
	})
}

func initMatcher() *match.Matcher {
	mc := match.DefaultConfig()
	if cfg.Matching.HighConfidence > 0 {
		mc.HighConfidenceThreshold = cfg.Matching.HighConfidence
	}
	if cfg.Matching.Review > 0 {
		mc.ReviewThreshold = cfg.Matching.Review
	}
	mc.UseExternalIDs = cfg.Matching.UseExternalIDs
	return match.New(mc, nil)
}

func initPipeline(ctx context.Context) (*pipeline.Pipeline, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, err
	}
	return pipeline.New(st, initMatcher()), st, nil
}

// newSource builds the ingestion source for one state code.
func newSource(state string) (source.Source, error) {
	f := initFetcher()
	year := cfg.Election.Year

	switch strings.ToLower(state) {
	case "md":
		return source.NewMaryland(f, cfg.Sources.Maryland, year), nil
	case "de":
		return source.NewDelaware(f, cfg.Sources.Delaware, year), nil
	case "nc":
		return source.NewNorthCarolina(f, cfg.Sources.NorthCarolina, year), nil
	default:
		return nil, eris.Errorf("unknown state: %s (want md, de, or nc)", state)
	}
}

func allStates() []string {
	return []string{"md", "de", "nc"}
}
