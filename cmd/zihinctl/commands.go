package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/zihin/internal/advisor"
	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/app"
	"github.com/MikeSquared-Agency/zihin/internal/backfill"
	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/config"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

type rootOptions struct {
	timeout  time.Duration
	logLevel string
	vector   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "zihinctl",
		Short:         "Operate the zihin journaling analysis backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Operation timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.vector, "vector", "", "Override ZIHIN_VECTOR_BACKEND (sqlite, postgres, none)")

	root.AddCommand(
		newSeedCmd(opts),
		newAnalyzeCmd(opts),
		newTechniquesCmd(opts),
		newDistortionsCmd(),
		newPatternsCmd(opts),
		newBackfillCmd(opts),
	)
	return root
}

func (o *rootOptions) config() config.Config {
	cfg := config.Load()
	if o.vector != "" {
		cfg.VectorBackend = strings.ToLower(o.vector)
	}
	return cfg
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(o.logLevel)); err != nil {
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func (o *rootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), o.timeout)
}

// hasGeneration reports whether the selected provider has credentials.
func hasGeneration(cfg config.Config) bool {
	switch cfg.Provider {
	case "openai":
		return cfg.OpenAIAPIKey != ""
	case "anthropic":
		return cfg.AnthropicAPIKey != ""
	case "gemini":
		return cfg.GeminiAPIKey != ""
	}
	return false
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load every catalog technique into the vector index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			a, err := app.BuildRetrieval(ctx, opts.config(), opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Retriever.SeedCatalog(ctx)
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d teknik yüklendi\n", n)

			if !probe {
				return nil
			}
			results, err := a.Retriever.RunProbes(ctx, retrieval.DefaultProbes, 2)
			if err != nil {
				return fmt.Errorf("probe: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Run sample queries after seeding")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		mood   int
		file   string
	)
	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Analyse one diary entry and print the result",
		Long:  "Analyse text given as arguments, read from --file, or from stdin when neither is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			cfg := opts.config()
			if err := cfg.Validate(); err != nil {
				return err
			}
			a, err := app.Build(ctx, cfg, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Pipeline.Analyze(ctx, analysis.Request{Text: text, UserID: userID, MoodScore: mood})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id; analyses with a user are written to history")
	cmd.Flags().IntVar(&mood, "mood", 0, "Mood score 1-10")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the entry from a file")
	return cmd
}

func readText(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read entry: %w", err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
}

func newTechniquesCmd(opts *rootOptions) *cobra.Command {
	var userContext, userID string
	cmd := &cobra.Command{
		Use:   "techniques <distortion-type>",
		Short: "Show technique advice for a distortion type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			cfg := opts.config()
			logger := opts.logger(cmd.ErrOrStderr())
			var (
				a   *app.App
				err error
			)
			if hasGeneration(cfg) {
				a, err = app.Build(ctx, cfg, logger)
			} else {
				logger.Info("no generation credentials, advice will not be personalized")
				a, err = app.BuildRetrieval(ctx, cfg, logger)
			}
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.Advisor.GetTechniques(ctx, advisor.Request{DistortionType: args[0], UserContext: userContext, UserID: userID})
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().StringVar(&userContext, "context", "", "Diary text used to personalize the advice")
	cmd.Flags().StringVar(&userID, "user", "", "User id whose history informs the advice")
	return cmd
}

func newDistortionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "distortions",
		Short: "List known distortion types and their technique counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := catalog.Load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range cat.Entries() {
				fmt.Fprintf(w, "%-20s %-28s %d teknik\n", e.Key, e.Name, len(e.Techniques))
			}
			fmt.Fprintf(w, "toplam: %d teknik\n", cat.TotalTechniques())
			return nil
		},
	}
}

func newPatternsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns <user-id>",
		Short: "Summarise a user's analysed history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context(cmd)
			defer cancel()

			a, err := app.BuildRetrieval(ctx, opts.config(), opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Retriever.UserPatterns(ctx, args[0])
			if err != nil {
				return fmt.Errorf("patterns: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newBackfillCmd(opts *rootOptions) *cobra.Command {
	var (
		cfg          backfill.Config
		since, until string
	)
	cmd := &cobra.Command{
		Use:   "backfill <entries.jsonl>",
		Short: "Analyse archived diary entries and write them into user history",
		Long: `Reads one JSON entry per line ({entry_id, user_id, text, mood_score, created_at}),
analyses each and indexes it into the user's history. Progress is kept in a
state file so an interrupted run resumes where it stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.File = args[0]
			var err error
			if cfg.Since, err = parseDate(since); err != nil {
				return fmt.Errorf("--since: %w", err)
			}
			if cfg.Until, err = parseDate(until); err != nil {
				return fmt.Errorf("--until: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger := opts.logger(cmd.ErrOrStderr())
			if cfg.DryRun {
				sum, err := backfill.NewRunner(cfg, nil, nil, logger).Run(ctx)
				if perr := printJSON(cmd.OutOrStdout(), sum); perr != nil && err == nil {
					err = perr
				}
				return err
			}

			appCfg := opts.config()
			appCfg.NatsURL = ""
			if err := appCfg.Validate(); err != nil {
				return err
			}

			a, err := app.Build(ctx, appCfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			pipeline := analysis.New(a.Generator, logger, analysis.WithRiskScreen(appCfg.RiskKeywordScreen))
			var writer backfill.Writer
			if a.Indexer != nil {
				writer = a.Indexer
			}
			sum, err := backfill.NewRunner(cfg, pipeline, writer, logger).Run(ctx)
			if perr := printJSON(cmd.OutOrStdout(), sum); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cfg.StatePath, "state", backfill.DefaultStatePath, "Resume state file")
	cmd.Flags().StringVar(&cfg.DefaultUser, "user", "", "User id for entries that carry none")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Count pending entries without generation or writes")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", 20, "Entries between state saves")
	cmd.Flags().DurationVar(&cfg.Pause, "pause", 0, "Pause after each batch")
	cmd.Flags().StringVar(&since, "since", "", "Only entries created on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only entries created on or before this date (YYYY-MM-DD)")
	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
