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

	"github.com/roivaz/prcohort/internal/classify"
	"github.com/roivaz/prcohort/internal/collect"
	"github.com/roivaz/prcohort/internal/config"
	"github.com/roivaz/prcohort/internal/db"
	"github.com/roivaz/prcohort/internal/logging"
	"github.com/roivaz/prcohort/internal/records"
)

var rootCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect pull request snapshots from GitHub",
}

var prsCmd = &cobra.Command{
	Use:   "prs [url...]",
	Short: "Fetch pull requests by URL into a Sources snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		column, _ := cmd.Flags().GetString("column")
		output, _ := cmd.Flags().GetString("output")
		population, _ := cmd.Flags().GetString("store")

		urls := append([]string(nil), args...)
		if input != "" {
			fromFile, err := records.ReadColumnFile(input, column)
			if err != nil {
				return err
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return errors.New("no pull request URLs given")
		}

		cfg, err := collect.LoadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		fetcher := collect.NewFetcherFromConfig(cfg, logger)

		ctx, cancel := signalContext()
		defer cancel()

		var recs []records.PullRequestRecord
		failed := 0
		for _, u := range urls {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			repo, number, err := collect.ParsePullURL(u)
			if err != nil {
				logger.Error(err, "skipping url")
				failed++
				continue
			}
			rec, err := fetcher.FetchRecord(ctx, repo, number)
			if err != nil {
				logger.Error(err, "skipping pull request", "url", u)
				failed++
				continue
			}
			recs = append(recs, rec)
		}
		logger.Info("collected pull requests", "requested", len(urls), "collected", len(recs), "failed", failed)

		if err := records.Save(output, recs); err != nil {
			return err
		}
		return store(ctx, population, recs)
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List every pull request created in each repository's date window",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")

		targets, err := readFile(input, collect.ReadRepoTargets)
		if err != nil {
			return err
		}

		cfg, err := collect.LoadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		fetcher := collect.NewFetcherFromConfig(cfg, logger)

		ctx, cancel := signalContext()
		defer cancel()

		var rows []collect.PullRow
		for _, t := range targets {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			listed, err := fetcher.ListPulls(ctx, t.Repo, t.Window)
			if err != nil {
				logger.Error(err, "failed to list pull requests", "repo", t.Repo)
				continue
			}
			kv := []any{"repo", t.Repo, "fromGitHub", len(listed)}
			if t.Expected >= 0 {
				kv = append(kv, "inStudy", t.Expected, "difference", len(listed)-t.Expected)
			}
			logger.Info("listed pull requests", kv...)
			rows = append(rows, listed...)
		}
		return records.WriteFile(output, func(w io.Writer) error { return collect.WritePullRows(w, rows) })
	},
}

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw control candidates from repository listings around each study window",
	RunE: func(cmd *cobra.Command, args []string) error {
		rowsPath, _ := cmd.Flags().GetString("rows")
		rangesPath, _ := cmd.Flags().GetString("ranges")
		treatmentPath, _ := cmd.Flags().GetString("treatment")
		ratio, _ := cmd.Flags().GetInt("ratio")
		output, _ := cmd.Flags().GetString("output")
		matchedPath, _ := cmd.Flags().GetString("matched")
		recordsPath, _ := cmd.Flags().GetString("records")
		controlsPath, _ := cmd.Flags().GetString("controls")

		logger := newLogger()
		rows, err := readFile(rowsPath, collect.ReadPullRows)
		if err != nil {
			return err
		}
		targets, err := readFile(rangesPath, collect.ReadRepoTargets)
		if err != nil {
			return err
		}
		treatment, err := records.Load(treatmentPath, logger)
		if err != nil {
			return err
		}

		sample := collect.SampleControls(rows, targets, treatment, ratio)
		for _, s := range sample.Shortfalls {
			logger.Warn("repository lacks pull requests, skipped", "repo", s.Repo, "needed", s.Needed, "available", s.Available)
		}
		logger.Info("sampled control candidates", "controls", len(sample.Controls), "treatment", len(sample.Treatment), "skippedRepos", len(sample.Shortfalls))

		if err := records.WriteFile(output, func(w io.Writer) error { return collect.WritePullRows(w, sample.Controls) }); err != nil {
			return err
		}
		if matchedPath != "" {
			if err := records.WriteFile(matchedPath, func(w io.Writer) error {
				return records.WriteURLList(w, records.MatchedURLsHeader, collect.SampleURLs(sample.Treatment))
			}); err != nil {
				return err
			}
		}
		if recordsPath == "" || controlsPath == "" {
			return nil
		}
		all, err := records.Load(recordsPath, logger)
		if err != nil {
			return err
		}
		selected, missing := records.SelectByURL(all, collect.SampleURLs(sample.Controls))
		for _, u := range missing {
			logger.Warn("sampled pull request has no record", "url", u, "records", recordsPath)
		}
		return records.Save(controlsPath, selected)
	},
}

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Map the shared commits of a snapshot to the pull requests that contain them",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		withPullOnly, _ := cmd.Flags().GetBool("with-pull-only")

		refs, err := readFile(input, collect.ReadCommitRefs)
		if err != nil {
			return err
		}
		cfg, err := collect.LoadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		fetcher := collect.NewFetcherFromConfig(cfg, logger)

		ctx, cancel := signalContext()
		defer cancel()

		pulls, err := fetcher.MapCommits(ctx, refs)
		if writeErr := records.WriteFile(output, func(w io.Writer) error {
			return collect.WriteCommitPulls(w, pulls, withPullOnly)
		}); writeErr != nil {
			return writeErr
		}
		return err
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label each pull request of a snapshot with a change category",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		population, _ := cmd.Flags().GetString("store")
		if output == "" {
			output = input
		}

		logger := newLogger()
		recs, err := records.Load(input, logger)
		if err != nil {
			return err
		}

		cfg, err := classify.LoadConfig()
		if err != nil {
			return err
		}
		llm, err := classify.NewOllama(cfg)
		if err != nil {
			return err
		}
		classifier := classify.New(llm, cfg.MaxTokens, logger)

		ctx, cancel := signalContext()
		defer cancel()

		labelled, _, err := classifier.Label(ctx, recs)
		if saveErr := records.Save(output, labelled); saveErr != nil {
			return saveErr
		}
		if err != nil {
			return err
		}
		return store(ctx, population, labelled)
	},
}

// readFile opens path and parses it with read, naming the file in errors.
func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
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

// store caches recs under population when one is given.
func store(ctx context.Context, population string, recs []records.PullRequestRecord) error {
	if population == "" {
		return nil
	}
	database, err := db.Open(ctx, db.LoadConfig())
	if err != nil {
		return err
	}
	defer database.Close()
	if err := db.NewRepository(database).StoreRecords(ctx, population, recs); err != nil {
		return err
	}
	newLogger().Info("stored records", "population", population, "count", len(recs))
	return nil
}

func main() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("tokens", "", "Comma separated GitHub tokens (overrides GITHUB_TOKENS)")
	rootCmd.PersistentFlags().String("dsn", "", "PostgreSQL DSN (overrides POSTGRES_URL)")
	config.Init(rootCmd)
	_ = viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyGitHubTokens, rootCmd.PersistentFlags().Lookup("tokens"))
	_ = viper.BindPFlag(config.KeyPostgresURL, rootCmd.PersistentFlags().Lookup("dsn"))

	prsCmd.Flags().String("input", "", "CSV file holding pull request URLs")
	prsCmd.Flags().String("column", "URL", "CSV column with the URLs")
	prsCmd.Flags().String("output", "", "Sources JSON file to write")
	prsCmd.Flags().String("store", "", "Also cache the records in Postgres under this population")
	_ = prsCmd.MarkFlagRequired("output")

	reposCmd.Flags().String("input", "", "CSV with Repository, Min Date and Max Date columns")
	reposCmd.Flags().String("output", "repo_all_prs.csv", "CSV file to write")
	_ = reposCmd.MarkFlagRequired("input")

	classifyCmd.Flags().String("input", "", "Sources JSON file to label")
	classifyCmd.Flags().String("output", "", "Sources JSON file to write (defaults to the input)")
	classifyCmd.Flags().String("store", "", "Also cache the records in Postgres under this population")
	_ = classifyCmd.MarkFlagRequired("input")

	sampleCmd.Flags().String("rows", "repo_all_prs.csv", "Repository listing written by the repos command")
	sampleCmd.Flags().String("ranges", "", "CSV with Repository and Max Date columns")
	sampleCmd.Flags().String("treatment", "", "Treatment Sources JSON")
	sampleCmd.Flags().Int("ratio", collect.DefaultControlRatio, "Control candidates per treatment pull request")
	sampleCmd.Flags().String("output", "sampled_controls.csv", "Listing CSV of sampled control candidates")
	sampleCmd.Flags().String("matched", "", "CSV of sampled URLs already in the treatment (empty to skip)")
	sampleCmd.Flags().String("records", "", "Sources JSON holding the listed pull requests")
	sampleCmd.Flags().String("controls", "", "Sources JSON of the sampled controls, selected from --records")
	_ = sampleCmd.MarkFlagRequired("ranges")
	_ = sampleCmd.MarkFlagRequired("treatment")

	commitsCmd.Flags().String("input", "", "Sources JSON holding commit entries")
	commitsCmd.Flags().String("output", "commit_pr.json", "JSON file to write")
	commitsCmd.Flags().Bool("with-pull-only", false, "Drop commits that belong to no pull request")
	_ = commitsCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(prsCmd, reposCmd, sampleCmd, commitsCmd, classifyCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("collect: %v", err)
	}
}
