package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roivaz/prcohort/internal/config"
	"github.com/roivaz/prcohort/internal/db"
	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/matching"
	"github.com/roivaz/prcohort/internal/records"
	"github.com/roivaz/prcohort/internal/study"
)

var rootCmd = &cobra.Command{
	Use:   "match",
	Short: "Pair treatment pull requests with similar control pull requests",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Match a treatment snapshot against a control snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifestFromFlags(cmd)
		if err != nil {
			return err
		}
		weights, err := matchWeights(m)
		if err != nil {
			return err
		}
		storeResults, _ := cmd.Flags().GetBool("store")

		ctx, cancel := signalContext()
		defer cancel()
		var store cache
		defer store.Close()

		logger := newLogger()
		treatment, err := store.load(ctx, m.Treatment, m.TreatmentPopulation, logger)
		if err != nil {
			return err
		}
		control, err := store.load(ctx, m.Control, m.ControlPopulation, logger)
		if err != nil {
			return err
		}

		res := matching.New(matching.WithWeights(weights), matching.WithLogger(logger)).Match(treatment, control)

		if err := records.WriteFile(m.Outputs.Pairs, func(w io.Writer) error { return matching.WritePairs(w, res.Pairs) }); err != nil {
			return err
		}
		if err := records.Save(m.Outputs.Controls, res.Controls); err != nil {
			return err
		}
		if m.Outputs.Matched != "" {
			if err := records.WriteFile(m.Outputs.Matched, func(w io.Writer) error {
				return records.WriteURLList(w, records.MatchedURLsHeader, res.MatchedURLs())
			}); err != nil {
				return err
			}
		}
		if m.Outputs.Unmatched != "" {
			if err := records.WriteFile(m.Outputs.Unmatched, func(w io.Writer) error {
				return records.WriteURLList(w, records.UnmatchedURLsHeader, res.Unmatched)
			}); err != nil {
				return err
			}
		}

		if !storeResults {
			return nil
		}
		repo, err := store.repository(ctx)
		if err != nil {
			return err
		}
		if err := repo.StoreRecords(ctx, db.TreatmentPopulation(m.RunID()), treatment); err != nil {
			return err
		}
		if err := repo.StoreRecords(ctx, db.ControlPopulation(m.RunID()), res.Controls); err != nil {
			return err
		}
		if err := repo.StorePairs(ctx, m.RunID(), res.Pairs); err != nil {
			return err
		}
		logger.Info("stored matching run", "run", m.RunID(), "pairs", len(res.Pairs))
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute the similarity scores of an existing pairs CSV or stored run",
	RunE: func(cmd *cobra.Command, args []string) error {
		pairsPath, _ := cmd.Flags().GetString("pairs")
		runID, _ := cmd.Flags().GetString("run-id")
		treatmentPath, _ := cmd.Flags().GetString("treatment")
		controlPath, _ := cmd.Flags().GetString("control")
		output, _ := cmd.Flags().GetString("output")

		if (pairsPath == "") == (runID == "") {
			return errors.New("exactly one of --pairs or --run-id is required")
		}
		var treatmentPopulation, controlPopulation string
		if treatmentPath == "" || controlPath == "" {
			if runID == "" {
				return errors.New("--treatment and --control are required with --pairs")
			}
			if treatmentPath == "" {
				treatmentPopulation = db.TreatmentPopulation(runID)
			}
			if controlPath == "" {
				controlPopulation = db.ControlPopulation(runID)
			}
		}

		weights, err := matching.ParseWeights(config.MatchWeights())
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		var store cache
		defer store.Close()

		logger := newLogger()
		treatment, err := store.load(ctx, treatmentPath, treatmentPopulation, logger)
		if err != nil {
			return err
		}
		control, err := store.load(ctx, controlPath, controlPopulation, logger)
		if err != nil {
			return err
		}

		refs, err := pairRefs(ctx, &store, pairsPath, runID)
		if err != nil {
			return err
		}

		pairs := matching.New(matching.WithWeights(weights), matching.WithLogger(logger)).Rescore(refs, treatment, control)
		if output == "" {
			return matching.WritePairs(cmd.OutOrStdout(), pairs)
		}
		return records.WriteFile(output, func(w io.Writer) error { return matching.WritePairs(w, pairs) })
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a stored matching run: population sizes and its pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run-id")
		output, _ := cmd.Flags().GetString("output")

		ctx, cancel := signalContext()
		defer cancel()
		var store cache
		defer store.Close()
		repo, err := store.repository(ctx)
		if err != nil {
			return err
		}

		for _, population := range []string{db.TreatmentPopulation(runID), db.ControlPopulation(runID)} {
			n, err := repo.CountPopulation(ctx, population)
			if err != nil {
				return fmt.Errorf("count %s: %w", population, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d records\n", population, n)
		}

		pairs, err := repo.LoadPairs(ctx, runID)
		if err != nil {
			return err
		}
		if len(pairs) == 0 {
			return fmt.Errorf("run %q has no stored pairs", runID)
		}
		if output == "" {
			return matching.WritePairs(cmd.OutOrStdout(), pairs)
		}
		return records.WriteFile(output, func(w io.Writer) error { return matching.WritePairs(w, pairs) })
	},
}

// pairRefs reads the pairs to rescore from a CSV file or a stored run.
func pairRefs(ctx context.Context, store *cache, path, runID string) ([]matching.PairRef, error) {
	if runID != "" {
		repo, err := store.repository(ctx)
		if err != nil {
			return nil, err
		}
		pairs, err := repo.LoadPairs(ctx, runID)
		if err != nil {
			return nil, err
		}
		return matching.Refs(pairs), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return matching.ReadPairRefs(f)
}

// manifestFromFlags reads --study, or assembles a manifest from the individual
// path flags.
func manifestFromFlags(cmd *cobra.Command) (study.Manifest, error) {
	if path, _ := cmd.Flags().GetString("study"); path != "" {
		return study.Load(path)
	}
	var m study.Manifest
	m.Treatment, _ = cmd.Flags().GetString("treatment")
	m.Control, _ = cmd.Flags().GetString("control")
	m.TreatmentPopulation, _ = cmd.Flags().GetString("treatment-population")
	m.ControlPopulation, _ = cmd.Flags().GetString("control-population")
	m.Outputs.Pairs, _ = cmd.Flags().GetString("pairs")
	m.Outputs.Controls, _ = cmd.Flags().GetString("controls")
	m.Outputs.Matched, _ = cmd.Flags().GetString("matched")
	m.Outputs.Unmatched, _ = cmd.Flags().GetString("unmatched")
	m.Name, _ = cmd.Flags().GetString("run-id")

	if err := m.Validate(); err != nil {
		return study.Manifest{}, fmt.Errorf("%w (pass --study or the path flags)", err)
	}
	return m, nil
}

// matchWeights prefers the manifest's weights over the configured ones.
func matchWeights(m study.Manifest) (matching.Weights, error) {
	if len(m.Weights) > 0 {
		return m.MatchWeights()
	}
	return matching.ParseWeights(config.MatchWeights())
}

func newLogger() logging.Logger {
	return logging.New(logging.LoggerForLevel(config.LogLevel()))
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; cancel() }()
	return ctx, cancel
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("weights", "", "Six comma separated similarity weights (overrides MATCH_WEIGHTS)")
	config.Init(rootCmd)
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyMatchWeights, rootCmd.PersistentFlags().Lookup("weights"))

	runCmd.Flags().String("study", "", "Study manifest (YAML)")
	runCmd.Flags().String("treatment", "", "Treatment Sources JSON")
	runCmd.Flags().String("control", "", "Control Sources JSON")
	runCmd.Flags().String("treatment-population", "", "Stored population to use as treatment instead of --treatment")
	runCmd.Flags().String("control-population", "", "Stored population to use as control instead of --control")
	runCmd.Flags().String("pairs", "matched_pairs.csv", "Pairs CSV to write")
	runCmd.Flags().String("controls", "sampled_controls.json", "Selected controls Sources JSON to write")
	runCmd.Flags().String("matched", "matched_prs.csv", "Matched treatment URLs CSV to write (empty to skip)")
	runCmd.Flags().String("unmatched", "unmatched_prs.csv", "Unmatched treatment URLs CSV to write (empty to skip)")
	runCmd.Flags().String("run-id", "", "Run name used when storing results")
	runCmd.Flags().Bool("store", false, "Store populations and pairs in Postgres")

	scoreCmd.Flags().String("pairs", "", "Existing pairs CSV")
	scoreCmd.Flags().String("run-id", "", "Stored run whose pairs (and populations, when no files are given) are rescored")
	scoreCmd.Flags().String("treatment", "", "Treatment Sources JSON")
	scoreCmd.Flags().String("control", "", "Control Sources JSON")
	scoreCmd.Flags().String("output", "", "Pairs CSV to write (stdout when empty)")

	showCmd.Flags().String("run-id", "", "Stored run to print")
	showCmd.Flags().String("output", "", "Pairs CSV to write (stdout when empty)")
	_ = showCmd.MarkFlagRequired("run-id")

	rootCmd.AddCommand(runCmd, scoreCmd, showCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("match: %v", err)
	}
}
