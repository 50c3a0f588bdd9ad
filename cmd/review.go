package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/SPMStrategies/Candidate-Database/internal/model"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the manual review queue",
	Long:  "Commands for listing, resolving, and exporting ambiguous candidate matches.",
}

// -- review list --

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")

		items, err := st.PendingReviews(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "review list")
		}

		if len(items) == 0 {
			fmt.Fprintln(os.Stderr, "No pending reviews.")
			return nil
		}

		formatReviewList(os.Stdout, items)
		return nil
	},
}

// -- review approve / reject --

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Accept the suggested match for a review item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReview(cmd, args[0], true)
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <review-id>",
	Short: "Reject the suggested match and store the candidate as new",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return resolveReview(cmd, args[0], false)
	},
}

func resolveReview(cmd *cobra.Command, reviewID string, approve bool) error {
	ctx := cmd.Context()

	pipe, st, err := initPipeline(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	by, _ := cmd.Flags().GetString("by")

	item, err := pipe.ResolveReview(ctx, reviewID, approve, by)
	if err != nil {
		return eris.Wrap(err, "review resolve")
	}

	verb := "approved"
	if !approve {
		verb = "rejected"
	}
	fmt.Printf("Review %s %s: %s -> %s (%.1f)\n",
		truncateID(item.ID), verb,
		item.Staged.Candidate.FullName, item.MatchedName, item.Confidence)
	return nil
}

// -- review export --

var reviewExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pending reviews to an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		out, _ := cmd.Flags().GetString("out")

		items, err := st.PendingReviews(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "review export")
		}

		if err := writeReviewWorkbook(out, items); err != nil {
			return err
		}

		fmt.Printf("Wrote %d pending reviews to %s\n", len(items), out)
		return nil
	},
}

func init() {
	reviewListCmd.Flags().Int("limit", 50, "max number of items to display")

	reviewApproveCmd.Flags().String("by", "", "name of the person resolving the item")
	reviewRejectCmd.Flags().String("by", "", "name of the person resolving the item")

	reviewExportCmd.Flags().Int("limit", 1000, "max number of items to export")
	reviewExportCmd.Flags().String("out", "reviews.xlsx", "output workbook path")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	reviewCmd.AddCommand(reviewExportCmd)
	rootCmd.AddCommand(reviewCmd)
}

// formatReviewList writes a tabular list of pending review items to w.
func formatReviewList(out io.Writer, items []model.ReviewItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINCOMING\tOFFICE\tMATCHED\tCONF\tMETHOD\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t--------\t------\t-------\t----\t------\t-------")

	for _, it := range items {
		c := it.Staged.Candidate
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%s\t%s\n",
			truncateID(it.ID),
			c.FullName,
			c.OfficeName,
			it.MatchedName,
			it.Confidence,
			it.Method,
			it.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

var reviewExportHeader = []string{
	"review_id", "created_at", "state", "incoming_name", "party", "office",
	"district", "election_year", "matched_name", "matched_id", "confidence",
	"method", "source",
}

// writeReviewWorkbook writes pending reviews to an XLSX file, one row per
// item, for offline triage by campaign staff.
func writeReviewWorkbook(path string, items []model.ReviewItem) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pending Reviews")
	if err != nil {
		return eris.Wrap(err, "review export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range reviewExportHeader {
		header.AddCell().SetString(h)
	}

	for _, it := range items {
		c := it.Staged.Candidate
		row := sheet.AddRow()
		row.AddCell().SetString(it.ID)
		row.AddCell().SetString(it.CreatedAt.Format(time.RFC3339))
		row.AddCell().SetString(c.State)
		row.AddCell().SetString(c.FullName)
		row.AddCell().SetString(c.Party)
		row.AddCell().SetString(c.OfficeName)
		row.AddCell().SetString(c.DistrictNumber)
		row.AddCell().SetInt(c.ElectionYear)
		row.AddCell().SetString(it.MatchedName)
		row.AddCell().SetString(it.CandidateID)
		row.AddCell().SetFloat(it.Confidence)
		row.AddCell().SetString(it.Method)
		row.AddCell().SetString(c.Source)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "review export: save workbook")
	}
	return nil
}
