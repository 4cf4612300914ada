package hermes

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type capturePublisher struct {
	subject string
	payload []byte
	err     error
}

func (c *capturePublisher) Publish(subject string, data any) error {
	if c.err != nil {
		return c.err
	}
	c.subject = subject
	b, err := json.Marshal(data)
	c.payload = b
	return err
}

func TestAnalysisSink_PublishesCompletedEvent(t *testing.T) {
	pub := &capturePublisher{}
	sink := NewAnalysisSink(pub, discardLogger())

	sink.AnalysisCompleted(analysis.Completed{
		EntryID:   "e1",
		UserID:    "u1",
		Text:      "Her şey kötü gidiyor.",
		MoodScore: 3,
		Result: extractor.AnalysisResult{
			Distortions: []extractor.DistortionFinding{{Type: "genelleme"}},
			RiskLevel:   extractor.RiskLow,
		},
	})

	if pub.subject != SubjectAnalysisCompleted {
		t.Errorf("expected subject %q, got %q", SubjectAnalysisCompleted, pub.subject)
	}

	var got map[string]any
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	for _, key := range []string{"entry_id", "user_id", "text", "mood_score", "result", "occurred_at"} {
		if _, ok := got[key]; !ok {
			t.Errorf("payload missing %q: %s", key, pub.payload)
		}
	}
	if got["entry_id"] != "e1" || got["user_id"] != "u1" {
		t.Errorf("unexpected ids in payload: %s", pub.payload)
	}
}

func TestAnalysisSink_PublishErrorIsSwallowed(t *testing.T) {
	sink := NewAnalysisSink(&capturePublisher{err: errors.New("nats: connection closed")}, discardLogger())
	sink.AnalysisCompleted(analysis.Completed{EntryID: "e1", UserID: "u1"})
}

func TestNewAgentRegistered(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("TRT", 3*3600))
	evt := NewAgentRegistered("8000", "openai", "sqlite", now)

	if evt.Timestamp != "2026-03-14T06:30:00Z" {
		t.Errorf("expected UTC timestamp, got %q", evt.Timestamp)
	}
	if evt.InstanceID == "" {
		t.Error("expected an instance id")
	}
	if evt.Port != "8000" || evt.Provider != "openai" || evt.VectorMode != "sqlite" {
		t.Errorf("unexpected event %+v", evt)
	}
}
