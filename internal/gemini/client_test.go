package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/zihin/internal/generation"
)

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", "", ""); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestComplete_JSONMode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "application/json") {
			t.Errorf("expected JSON response MIME type in request, got %s", body)
		}
		if !strings.Contains(string(body), "Analiz et") {
			t.Errorf("expected prompt in request, got %s", body)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"role":  "model",
						"parts": []map[string]any{{"text": `{"risk_level":"düşük"}`}},
					},
					"finishReason": "STOP",
				},
			},
		})
	}))
	defer server.Close()

	c, err := NewClient(context.Background(), "test-key", "gemini-test", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text, err := c.Complete(context.Background(), generation.Request{
		System: "BDT uzmanı",
		Prompt: "Analiz et:\nmetin",
		JSON:   true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != `{"risk_level":"düşük"}` {
		t.Errorf("unexpected text %q", text)
	}
}
