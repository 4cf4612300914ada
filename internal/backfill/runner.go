package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/analysis"
)

// Analyzer runs one entry through the analysis pipeline.
type Analyzer interface {
	Run(ctx context.Context, req analysis.Request) analysis.Outcome
}

// Writer stores an analysed entry in user history.
type Writer interface {
	Index(ctx context.Context, evt analysis.Completed) error
}

// Config holds the backfill run settings.
type Config struct {
	File        string
	StatePath   string
	DefaultUser string
	Since       time.Time
	Until       time.Time // whole day included
	DryRun      bool      // parse and count only
	BatchSize   int           // entries between state saves and pauses
	Pause       time.Duration // wait after each batch, for provider rate limits
}

// Runner orchestrates a backfill.
type Runner struct {
	cfg      Config
	analyzer Analyzer
	writer   Writer
	logger   *slog.Logger
}

// NewRunner creates a runner. analyzer and writer may be nil for dry runs.
func NewRunner(cfg Config, analyzer Analyzer, writer Writer, logger *slog.Logger) *Runner {
	if cfg.StatePath == "" {
		cfg.StatePath = DefaultStatePath
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	return &Runner{cfg: cfg, analyzer: analyzer, writer: writer, logger: logger}
}

// Run analyses every pending entry of the configured file. Entries that only
// reach the minimal fallback are not marked processed so a rerun retries
// them. State is saved after every batch and on interruption.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	sum := Summary{DryRun: r.cfg.DryRun}
	if !r.cfg.DryRun {
		if r.analyzer == nil {
			return sum, fmt.Errorf("backfill needs an analyzer unless it is a dry run")
		}
		if r.writer == nil {
			return sum, fmt.Errorf("backfill needs a vector backend unless it is a dry run")
		}
	}

	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return sum, fmt.Errorf("load state: %w", err)
	}

	entries, err := ParseFile(r.cfg.File, r.cfg.DefaultUser)
	if err != nil {
		return sum, fmt.Errorf("parse %s: %w", r.cfg.File, err)
	}
	sum.Read = len(entries)
	entries, sum.Duplicates = Dedup(entries)

	var pending []Entry
	for _, e := range entries {
		if state.IsProcessed(e.Key()) || !r.inRange(e.CreatedAt) {
			sum.Skipped++
			continue
		}
		pending = append(pending, e)
	}
	state.Remaining = len(pending)
	sum.Pending = len(pending)
	r.logger.Info("backfill starting",
		"file", r.cfg.File,
		"read", sum.Read,
		"pending", len(pending),
		"duplicates", sum.Duplicates,
		"dry_run", r.cfg.DryRun,
	)
	if r.cfg.DryRun {
		return sum, nil
	}

	inBatch := 0
	for _, e := range pending {
		if err := ctx.Err(); err != nil {
			r.logger.Info("backfill interrupted, saving state")
			r.save(state)
			return sum, err
		}

		out := r.analyzer.Run(ctx, analysis.Request{Text: e.Text, UserID: e.UserID, EntryID: e.EntryID, MoodScore: e.MoodScore})
		if out.ResolvedBy == analysis.StateMinimalFallback {
			sum.Fallbacks++
			state.Fallbacks++
			state.AddError(fmt.Sprintf("analyse %s: minimal fallback", e.Key()))
			r.logger.Warn("entry fell back to minimal envelope, will retry on next run", "entry", e.Key())
			continue
		}

		err := r.writer.Index(ctx, analysis.Completed{
			EntryID:    e.EntryID,
			UserID:     e.UserID,
			Text:       e.Text,
			MoodScore:  e.MoodScore,
			Result:     out.Result,
			OccurredAt: e.CreatedAt,
		})
		if err != nil {
			sum.Errors++
			state.AddError(fmt.Sprintf("index %s: %v", e.Key(), err))
			r.logger.Error("indexing failed", "entry", e.Key(), "error", err)
			continue
		}

		sum.Analyzed++
		state.Analyzed++
		state.MarkProcessed(e.Key())
		state.Remaining--
		r.logger.Info("entry processed",
			"entry", e.Key(),
			"resolved_by", out.ResolvedBy.String(),
			"distortions", len(out.Result.Distortions),
			"risk_level", out.Result.RiskLevel,
		)

		inBatch++
		if inBatch >= r.cfg.BatchSize {
			inBatch = 0
			r.save(state)
			if r.cfg.Pause > 0 {
				select {
				case <-ctx.Done():
					return sum, ctx.Err()
				case <-time.After(r.cfg.Pause):
				}
			}
		}
	}

	r.save(state)
	r.logger.Info("backfill complete",
		"analyzed", sum.Analyzed,
		"fallbacks", sum.Fallbacks,
		"errors", sum.Errors,
		"state", state.Path(),
	)
	return sum, nil
}

// Dry runs never write state, so a later real run starts from scratch.
func (r *Runner) save(s *State) {
	if r.cfg.DryRun {
		return
	}
	if err := s.Save(); err != nil {
		r.logger.Warn("failed to save backfill state", "path", s.Path(), "error", err)
	}
}

func (r *Runner) inRange(t time.Time) bool {
	if t.IsZero() {
		return r.cfg.Since.IsZero()
	}
	if !r.cfg.Since.IsZero() && t.Before(r.cfg.Since) {
		return false
	}
	if !r.cfg.Until.IsZero() && !t.Before(dayAfter(r.cfg.Until)) {
		return false
	}
	return true
}

// dayAfter returns midnight of the day following t, in t's location.
func dayAfter(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
