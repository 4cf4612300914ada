package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer xoxb-test" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["channel"] != "C123" || body["text"] != "merhaba" {
			t.Errorf("unexpected payload %v", body)
		}
		w.Write([]byte(`{"ok":true,"ts":"1234.5678"}`))
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.SetTestTransport(server.URL)

	ts, err := p.Post(context.Background(), "merhaba")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if ts != "1234.5678" {
		t.Errorf("expected ts 1234.5678, got %q", ts)
	}
}

func TestPost_SlackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C404", discardLogger())
	p.SetTestTransport(server.URL)

	if _, err := p.Post(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Errorf("expected slack error, got %v", err)
	}
}

type fakePoster struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakePoster) Post(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return "1.0", nil
}

type countingSink struct{ n int }

func (c *countingSink) AnalysisCompleted(analysis.Completed) { c.n++ }

func TestRiskAlerter(t *testing.T) {
	next := &countingSink{}
	p := &fakePoster{}
	a := NewRiskAlerter(next, p, discardLogger())

	high := analysis.Completed{
		EntryID:    "e1",
		UserID:     "u1",
		Text:       "gizli günlük metni",
		OccurredAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Result: extractor.AnalysisResult{
			RiskLevel:   extractor.RiskHigh,
			Distortions: []extractor.DistortionFinding{{Type: "felaketleştirme"}},
		},
	}
	a.AnalysisCompleted(high)
	a.AnalysisCompleted(analysis.Completed{EntryID: "e2", UserID: "u1", Result: extractor.AnalysisResult{RiskLevel: extractor.RiskLow}})
	a.Wait()

	if next.n != 2 {
		t.Errorf("expected every event forwarded, got %d", next.n)
	}
	if len(p.texts) != 1 {
		t.Fatalf("expected one alert, got %d", len(p.texts))
	}
	msg := p.texts[0]
	for _, want := range []string{"u1", "e1", "2026-03-14T10:00:00Z", "Çarpıtma sayısı:* 1 (felaketleştirme)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "gizli günlük metni") {
		t.Error("alert must not include the entry text")
	}
}

func TestRiskAlerter_NilNext(t *testing.T) {
	p := &fakePoster{}
	a := NewRiskAlerter(nil, p, discardLogger())
	a.AnalysisCompleted(analysis.Completed{UserID: "u1", Result: extractor.AnalysisResult{RiskLevel: extractor.RiskHigh}})
	a.Wait()
	if len(p.texts) != 1 {
		t.Errorf("expected alert without a downstream sink, got %d", len(p.texts))
	}
}

func TestRiskAlerter_AnonymousUser(t *testing.T) {
	p := &fakePoster{}
	a := NewRiskAlerter(nil, p, discardLogger())
	a.AnalysisCompleted(analysis.Completed{EntryID: "e9", Result: extractor.AnalysisResult{RiskLevel: extractor.RiskHigh}})
	a.Wait()
	if len(p.texts) != 1 || !strings.Contains(p.texts[0], "*Kullanıcı:* anonim") {
		t.Errorf("expected an alert for an anonymous analysis, got %q", p.texts)
	}
}

func TestPost_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"ok":false,"error":"ratelimited"}`))
	}))
	defer server.Close()

	p := NewPoster("xoxb-test", "C123", discardLogger())
	p.SetTestTransport(server.URL)

	if _, err := p.Post(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status error, got %v", err)
	}
}
