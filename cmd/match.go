package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/SPMStrategies/Candidate-Database/internal/match"
	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

var (
	matchFile  string
	matchState string
	matchYear  int
)

// matchOutput is the serialized result for one input candidate.
type matchOutput struct {
	Candidate  string  `json:"candidate"`
	Bucket     string  `json:"bucket"`
	MatchedID  string  `json:"matched_id,omitempty"`
	Matched    string  `json:"matched_name,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Method     string  `json:"method,omitempty"`
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match a candidate batch without ingesting",
	Long:  "Reads normalized candidates from a JSON file, matches them against the stored pool, and prints the categorization. Nothing is written.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(matchFile)
		if err != nil {
			return eris.Wrap(err, "match: read input")
		}
		var candidates []model.NormalizedCandidate
		if err := json.Unmarshal(data, &candidates); err != nil {
			return eris.Wrap(err, "match: parse input")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		pool, err := st.ExistingCandidates(ctx, matchState, matchYear)
		if err != nil {
			return eris.Wrap(err, "match: load pool")
		}

		batch := initMatcher().CategorizeBatch(candidates, pool)

		out := make([]matchOutput, 0, len(candidates))
		appendItems := func(bucket string, items []match.Item) {
			for _, item := range items {
				o := matchOutput{Candidate: item.Candidate.FullName, Bucket: bucket}
				if item.Match != nil {
					o.MatchedID = item.Match.CandidateID
					o.Matched = item.Match.ExistingName
					o.Confidence = item.Match.Confidence
					o.Method = string(item.Match.Method)
				}
				out = append(out, o)
			}
		}
		appendItems("new", batch.New)
		appendItems("update", batch.Update)
		appendItems("review", batch.Review)
		appendItems("skip", batch.Skip)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchFile, "file", "", "JSON file of normalized candidates (required)")
	matchCmd.Flags().StringVar(&matchState, "state", "", "state code for the comparison pool (required)")
	matchCmd.Flags().IntVar(&matchYear, "year", 0, "restrict the pool to one election year (0 = all)")
	matchCmd.MarkFlagRequired("file")  //nolint:errcheck
	matchCmd.MarkFlagRequired("state") //nolint:errcheck
	rootCmd.AddCommand(matchCmd)
}
