package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
	"github.com/SPMStrategies/Candidate-Database/internal/pipeline"
)

var (
	ingestState    string
	ingestDryRun   bool
	ingestUseCache bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch and merge state candidate listings",
	Long:  "Downloads the configured state's candidate listing, deduplicates it against stored candidates, and applies inserts, updates, and review-queue entries.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, st, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		states := []string{ingestState}
		if ingestState == "all" {
			states = allStates()
		}

		opts := pipeline.Options{DryRun: ingestDryRun, UseCache: ingestUseCache}
		results := make([]*model.RunStats, len(states))

		g, gctx := errgroup.WithContext(ctx)
		for i, state := range states {
			src, err := newSource(state)
			if err != nil {
				return err
			}
			g.Go(func() error {
				stats, err := p.Run(gctx, src, opts)
				if err != nil {
					return eris.Wrapf(err, "ingest %s", src.State())
				}
				results[i] = stats
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		printIngestSummary(states, results)
		return nil
	},
}

func printIngestSummary(states []string, results []*model.RunStats) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tRAW\tSTAGED\tNEW\tUPDATED\tREVIEW\tERRORS\tELAPSED")
	for i, stats := range results {
		if stats == nil {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			states[i], stats.TotalRaw, stats.TotalStaged, stats.NewCandidates,
			stats.UpdatedCandidates, stats.ReviewCandidates, stats.Errors,
			stats.Elapsed.Round(time.Millisecond))
	}
	w.Flush() //nolint:errcheck
	for _, stats := range results {
		if stats != nil && stats.DryRun {
			fmt.Fprintln(os.Stderr, "Dry run: no changes were written.")
			break
		}
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestState, "state", "all", "state to ingest: md, de, nc, or all")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "match and report without writing")
	ingestCmd.Flags().BoolVar(&ingestUseCache, "use-cache", false, "serve listings from the local fetch cache when available")
	rootCmd.AddCommand(ingestCmd)
}
