// Package indexer writes analysed entries into the user history
// collections off the request path.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

// DefaultTimeout bounds one entry's history writes.
const DefaultTimeout = 30 * time.Second

// Writer persists history documents.
type Writer interface {
	IndexEntry(ctx context.Context, e retrieval.Entry) error
	IndexAnalysis(ctx context.Context, e retrieval.Entry) error
}

// Indexer implements analysis.Sink. Each event is written by its own
// goroutine under a context detached from the originating request.
type Indexer struct {
	writer  Writer
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func New(w Writer, logger *slog.Logger, timeout time.Duration) *Indexer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Indexer{writer: w, logger: logger, timeout: timeout}
}

// AnalysisCompleted returns immediately. Anonymous analyses have no
// history to join and are not written.
func (ix *Indexer) AnalysisCompleted(evt analysis.Completed) {
	if evt.UserID == "" {
		return
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), ix.timeout)
		defer cancel()
		if err := ix.Index(ctx, evt); err != nil {
			ix.logger.Error("history indexing failed", "entry_id", evt.EntryID, "user_id", evt.UserID, "error", err)
		}
	}()
}

// HandleAnalysisCompleted is the NATS handler for zihin.analysis.completed.
func (ix *Indexer) HandleAnalysisCompleted(subject string, data []byte) {
	var evt analysis.Completed
	if err := json.Unmarshal(data, &evt); err != nil {
		ix.logger.Error("failed to parse analysis event", "subject", subject, "error", err)
		return
	}
	if evt.UserID == "" || evt.EntryID == "" {
		ix.logger.Warn("analysis event without ids, skipping", "subject", subject)
		return
	}
	ix.AnalysisCompleted(evt)
}

// Index writes the entry and its analysis synchronously. Both writes are
// attempted even if the first fails.
func (ix *Indexer) Index(ctx context.Context, evt analysis.Completed) error {
	e := retrieval.Entry{
		EntryID:   evt.EntryID,
		UserID:    evt.UserID,
		Text:      evt.Text,
		MoodScore: evt.MoodScore,
		Result:    evt.Result,
		At:        evt.OccurredAt,
	}
	entryErr := ix.writer.IndexEntry(ctx, e)
	analysisErr := ix.writer.IndexAnalysis(ctx, e)
	if err := errors.Join(entryErr, analysisErr); err != nil {
		return err
	}
	ix.logger.Info("history indexed", "entry_id", evt.EntryID, "user_id", evt.UserID)
	return nil
}

// Wait blocks until in-flight writes finish. Call it during shutdown.
func (ix *Indexer) Wait() {
	ix.wg.Wait()
}
