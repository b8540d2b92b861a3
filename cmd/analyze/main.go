package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roivaz/prcohort/internal/config"
	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
	"github.com/roivaz/prcohort/internal/stats"
)

const significance = 0.05

// comparedFields are the numeric fields tested between the two populations.
var comparedFields = []records.Field{
	records.FieldCommits,
	records.FieldComments,
	records.FieldReviewerCount,
	records.FieldAdditions,
	records.FieldDeletions,
	records.FieldChangedFiles,
}

var rootCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Compare treatment and control pull request snapshots",
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Compare hours until first review (or close when unreviewed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return compareLatencies(cmd, "review hours", stats.ReviewLatencies)
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Compare hours until merge of merged pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		return compareLatencies(cmd, "merge hours", stats.MergeLatencies)
	},
}

var abandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Compare abandonment rates and the categories of abandoned and merged pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		treatment, control, err := loadPopulations(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		t, c := stats.Abandonment(treatment), stats.Abandonment(control)
		for _, s := range []struct {
			name string
			sum  stats.AbandonmentSummary
		}{{"treatment", t}, {"control", c}} {
			fmt.Fprintf(out, "%s: total=%d merged=%d abandoned=%d rate=%.2f%%\n", s.name, s.sum.Total, s.sum.Merged, s.sum.Abandoned, s.sum.Rate)
		}

		for _, group := range []struct {
			label string
			a, b  []string
		}{
			{"abandoned categories", t.AbandonedCategories, c.AbandonedCategories},
			{"merged categories", t.MergedCategories, c.MergedCategories},
		} {
			labels, fa, fb := stats.CategoryFrequencies(group.a, group.b)
			printFrequencies(out, labels, fa, fb)
			if err := printComparison(out, group.label, fa, fb); err != nil {
				return err
			}
		}
		return nil
	},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Compare the numeric fields of both populations",
	RunE: func(cmd *cobra.Command, args []string) error {
		treatment, control, err := loadPopulations(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printMissing(out, "treatment", stats.MissingScoringFields(treatment))
		printMissing(out, "control", stats.MissingScoringFields(control))
		for _, f := range comparedFields {
			if err := printComparison(out, string(f), stats.FieldValues(treatment, f), stats.FieldValues(control, f)); err != nil {
				return err
			}
		}
		return nil
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Compare how often each change category occurs",
	RunE: func(cmd *cobra.Command, args []string) error {
		treatment, control, err := loadPopulations(cmd)
		if err != nil {
			return err
		}
		labels, fa, fb := stats.CategoryFrequencies(categoriesOf(treatment), categoriesOf(control))
		printFrequencies(cmd.OutOrStdout(), labels, fa, fb)
		return printComparison(cmd.OutOrStdout(), "category frequencies", fa, fb)
	},
}

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Write each repository's padded creation window",
	RunE: func(cmd *cobra.Command, args []string) error {
		pad, _ := cmd.Flags().GetInt("pad")
		output, _ := cmd.Flags().GetString("output")
		recs, err := loadInput(cmd)
		if err != nil {
			return err
		}
		windows, err := stats.RepoWindows(records.PullRequestsOnly(recs), pad)
		if err != nil {
			return err
		}
		return writeOutput(cmd, output, func(w io.Writer) error {
			cw := csv.NewWriter(w)
			_ = cw.Write([]string{"Repository", "Min Date", "Max Date", "Range", "Number of PRs"})
			for _, rw := range windows {
				_ = cw.Write([]string{rw.Repo, rw.Start, rw.End, strconv.Itoa(rw.Days), strconv.Itoa(rw.Count)})
			}
			cw.Flush()
			return cw.Error()
		})
	},
}

var duplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "List repository and number pairs that occur more than once",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := loadInput(cmd)
		if err != nil {
			return err
		}
		dups := records.FindDuplicates(recs)
		out := cmd.OutOrStdout()
		if len(dups) == 0 {
			fmt.Fprintln(out, "no duplicates")
			return nil
		}
		for _, k := range dups {
			fmt.Fprintf(out, "%s#%d\n", k.RepoName, k.Number)
		}
		return nil
	},
}

var spanCmd = &cobra.Command{
	Use:   "span",
	Short: "Show the earliest and latest pull request",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := loadInput(cmd)
		if err != nil {
			return err
		}
		first, last, err := records.Span(recs)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "first\t%s\t%s\n", first.CreatedAt, first.URL)
		fmt.Fprintf(out, "last\t%s\t%s\n", last.CreatedAt, last.URL)
		return nil
	},
}

var durationsCmd = &cobra.Command{
	Use:   "durations",
	Short: "Write how long each pull request stayed open",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		recs, err := loadInput(cmd)
		if err != nil {
			return err
		}
		rows, err := stats.DurationRows(recs)
		if err != nil {
			return err
		}
		return writeOutput(cmd, output, func(w io.Writer) error {
			cw := csv.NewWriter(w)
			_ = cw.Write([]string{"RepoName", "Number", "URL", "State", "CommentsCount", "CommitsTotalCount", "Time To Close", "Time To Merge"})
			for _, r := range rows {
				_ = cw.Write([]string{
					r.RepoName, strconv.Itoa(r.Number), r.URL, r.State,
					strconv.Itoa(r.Comments), strconv.Itoa(r.Commits),
					formatDuration(r.ToClose, r.Closed), formatDuration(r.ToMerge, r.Merged),
				})
			}
			cw.Flush()
			return cw.Error()
		})
	},
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	config.Init(rootCmd)
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	for _, c := range []*cobra.Command{reviewCmd, mergeCmd, abandonCmd, fieldsCmd, categoriesCmd} {
		c.Flags().String("treatment", "", "Treatment Sources JSON")
		c.Flags().String("control", "", "Control Sources JSON")
		_ = c.MarkFlagRequired("treatment")
		_ = c.MarkFlagRequired("control")
	}
	for _, c := range []*cobra.Command{rangesCmd, duplicatesCmd, spanCmd, durationsCmd} {
		c.Flags().String("input", "", "Sources JSON")
		_ = c.MarkFlagRequired("input")
	}
	rangesCmd.Flags().Int("pad", 7, "Days added before the first and after the last pull request")
	rangesCmd.Flags().String("output", "", "CSV file to write (stdout when empty)")
	durationsCmd.Flags().String("output", "", "CSV file to write (stdout when empty)")

	rootCmd.AddCommand(reviewCmd, mergeCmd, abandonCmd, fieldsCmd, categoriesCmd, rangesCmd, duplicatesCmd, spanCmd, durationsCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("analyze: %v", err)
	}
}

func newLogger() logging.Logger {
	return logging.New(logging.LoggerForLevel(config.LogLevel()))
}
