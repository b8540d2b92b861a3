package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roivaz/prcohort/internal/records"
	"github.com/roivaz/prcohort/internal/stats"
)

type latencyFunc func([]records.PullRequestRecord) ([]stats.Latency, error)

func loadPopulations(cmd *cobra.Command) (treatment, control []records.PullRequestRecord, err error) {
	treatmentPath, _ := cmd.Flags().GetString("treatment")
	controlPath, _ := cmd.Flags().GetString("control")
	logger := newLogger()
	if treatment, err = records.Load(treatmentPath, logger); err != nil {
		return nil, nil, err
	}
	if control, err = records.Load(controlPath, logger); err != nil {
		return nil, nil, err
	}
	return records.PullRequestsOnly(treatment), records.PullRequestsOnly(control), nil
}

func loadInput(cmd *cobra.Command) ([]records.PullRequestRecord, error) {
	path, _ := cmd.Flags().GetString("input")
	return records.Load(path, newLogger())
}

func compareLatencies(cmd *cobra.Command, label string, measure latencyFunc) error {
	treatment, control, err := loadPopulations(cmd)
	if err != nil {
		return err
	}
	lt, err := measure(treatment)
	if err != nil {
		return err
	}
	lc, err := measure(control)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := printComparison(out, label, stats.Hours(lt), stats.Hours(lc)); err != nil {
		return err
	}

	labels, fa, fb := stats.CategoryFrequencies(stats.Categories(lt), stats.Categories(lc))
	printFrequencies(out, labels, fa, fb)
	return nil
}

func printComparison(out io.Writer, label string, x, y []float64) error {
	c, err := stats.Compare(label, x, y)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "== %s\n", label)
	printSummary(out, "treatment", c.X)
	printSummary(out, "control", c.Y)
	fmt.Fprintf(out, "mann-whitney U=%.1f p=%.6g significant=%t\n", c.RankSum.U, c.RankSum.P, c.RankSum.P < significance)
	fmt.Fprintf(out, "cliff's delta=%.4f (%s)\n\n", c.Delta, c.Magnitude)
	return nil
}

func printMissing(out io.Writer, name string, missing map[records.Field]int) {
	for _, f := range records.ScoringFields {
		if n := missing[f]; n > 0 {
			fmt.Fprintf(out, "%s: %s missing on %d records (scored as 0)\n", name, f, n)
		}
	}
}

func printSummary(out io.Writer, name string, s stats.Summary) {
	fmt.Fprintf(out, "%-9s n=%d mean=%.2f median=%.2f min=%.2f max=%.2f sd=%.2f\n", name, s.N, s.Mean, s.Median, s.Min, s.Max, s.StdDev)
}

func printFrequencies(out io.Writer, labels []string, a, b []float64) {
	for i, l := range labels {
		if l == "" {
			l = "(unlabelled)"
		}
		fmt.Fprintf(out, "%-16s treatment=%.0f control=%.0f\n", l, a[i], b[i])
	}
}

func categoriesOf(recs []records.PullRequestRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Category
	}
	return out
}

func formatDuration(d time.Duration, ok bool) string {
	if !ok {
		return ""
	}
	return d.String()
}

func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}
	return records.WriteFile(path, write)
}
