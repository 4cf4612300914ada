package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

// poster is the part of Poster the alerter needs.
type poster interface {
	Post(ctx context.Context, text string) (string, error)
}

// RiskAlerter wraps a sink and posts a care-team alert for every high-risk
// analysis. Alerts carry ids and counts only, never the entry text.
type RiskAlerter struct {
	next    analysis.Sink
	poster  poster
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// NewRiskAlerter creates the decorator. next may be nil.
func NewRiskAlerter(next analysis.Sink, p poster, logger *slog.Logger) *RiskAlerter {
	return &RiskAlerter{next: next, poster: p, logger: logger, timeout: 10 * time.Second}
}

func (a *RiskAlerter) AnalysisCompleted(evt analysis.Completed) {
	if a.next != nil {
		a.next.AnalysisCompleted(evt)
	}
	if evt.Result.RiskLevel != extractor.RiskHigh {
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		ts, err := a.poster.Post(ctx, FormatRiskAlert(evt))
		if err != nil {
			a.logger.Error("failed to post risk alert", "user_id", evt.UserID, "entry_id", evt.EntryID, "error", err)
			return
		}
		a.logger.Info("risk alert posted", "user_id", evt.UserID, "entry_id", evt.EntryID, "ts", ts)
	}()
}

// Wait blocks until in-flight alerts are sent.
func (a *RiskAlerter) Wait() {
	a.wg.Wait()
}

// FormatRiskAlert renders the alert text.
func FormatRiskAlert(evt analysis.Completed) string {
	var sb strings.Builder
	sb.WriteString(":rotating_light: *Yüksek risk tespit edildi*\n")
	user := evt.UserID
	if user == "" {
		user = "anonim"
	}
	fmt.Fprintf(&sb, "*Kullanıcı:* %s\n", user)
	fmt.Fprintf(&sb, "*Günlük:* %s\n", evt.EntryID)
	if !evt.OccurredAt.IsZero() {
		fmt.Fprintf(&sb, "*Zaman:* %s\n", evt.OccurredAt.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&sb, "*Çarpıtma sayısı:* %d", len(evt.Result.Distortions))
	if types := evt.Result.DistortionTypes(); len(types) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(types, ", "))
	}
	sb.WriteString("\n_Lütfen kullanıcıyla iletişime geçin._")
	return sb.String()
}
