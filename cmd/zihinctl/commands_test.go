package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/zihin/internal/advisor"
	"github.com/MikeSquared-Agency/zihin/internal/backfill"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

func offlineEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "NATS_URL", "ZIHIN_PROVIDER", "DATABASE_URL"} {
		t.Setenv(key, "")
	}
	t.Setenv("ZIHIN_EMBEDDING_PROVIDER", "hashing")
	t.Setenv("ZIHIN_EMBEDDING_DIMENSIONS", "64")
	t.Setenv("ZIHIN_VECTOR_BACKEND", "sqlite")
	t.Setenv("ZIHIN_VECTOR_PATH", filepath.Join(t.TempDir(), "zihin.db"))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDistortionsCommand(t *testing.T) {
	out, err := run(t, "distortions")
	if err != nil {
		t.Fatalf("distortions: %v", err)
	}
	if !strings.Contains(out, "genelleme") || !strings.Contains(out, "toplam: 30 teknik") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSeedThenPatterns(t *testing.T) {
	offlineEnv(t)

	out, err := run(t, "seed", "--probe")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.HasPrefix(out, "30 teknik yüklendi\n") {
		t.Errorf("unexpected seed output:\n%s", out)
	}
	var probes []retrieval.ProbeResult
	if err := json.Unmarshal([]byte(strings.TrimPrefix(out, "30 teknik yüklendi\n")), &probes); err != nil {
		t.Fatalf("probe output is not JSON: %v", err)
	}
	if len(probes) != len(retrieval.DefaultProbes) {
		t.Errorf("expected %d probe results, got %d", len(retrieval.DefaultProbes), len(probes))
	}

	out, err = run(t, "patterns", "u1")
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	var summary retrieval.PatternSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("patterns output is not JSON: %v", err)
	}
	if summary.TotalAnalyses != 0 || summary.Message != retrieval.NoHistoryMessage {
		t.Errorf("expected empty history, got %+v", summary)
	}
}

func TestTechniquesWithoutCredentials(t *testing.T) {
	offlineEnv(t)

	out, err := run(t, "techniques", "genelleme", "--context", "Hep başarısız oluyorum.")
	if err != nil {
		t.Fatalf("techniques: %v", err)
	}
	var resp advisor.Response
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if resp.DistortionType != "genelleme" || len(resp.Techniques) != 3 {
		t.Errorf("unexpected envelope %+v", resp)
	}
	if len(resp.NextSteps) != 3 {
		t.Errorf("expected personalization-failed next steps, got %v", resp.NextSteps)
	}
}

func TestAnalyzeRequiresCredentials(t *testing.T) {
	offlineEnv(t)
	if _, err := run(t, "analyze", "metin"); err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestReadText(t *testing.T) {
	got, err := readText(strings.NewReader("stdin metni"), "", nil)
	if err != nil || got != "stdin metni" {
		t.Errorf("stdin: got %q, %v", got, err)
	}
	got, _ = readText(nil, "", []string{"bir", "iki"})
	if got != "bir iki" {
		t.Errorf("args: got %q", got)
	}
	if _, err := readText(nil, filepath.Join(t.TempDir(), "missing.txt"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBackfillThenPatterns(t *testing.T) {
	offlineEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `{"distortions":[{"type":"etiketleme","sentence":"Ben bir aptalım.","severity":"high","confidence":0.9}],"risk_level":"medium","recommendations":["Kendinize nazik olun."]}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	archive := filepath.Join(t.TempDir(), "entries.jsonl")
	lines := `{"entry_id":"1","user_id":"u1","text":"Ben bir aptalım.","mood_score":2,"created_at":"2026-01-05T10:00:00Z"}
{"entry_id":"2","user_id":"u1","text":"Yine bir aptallık yaptım.","created_at":"2026-01-06T10:00:00Z"}
`
	if err := os.WriteFile(archive, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "backfill", archive, "--state", filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	var sum backfill.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, out)
	}
	if sum.Analyzed != 2 || sum.Errors != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}

	out, err = run(t, "patterns", "u1")
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	var summary retrieval.PatternSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("patterns output is not JSON: %v", err)
	}
	if summary.TotalAnalyses != 2 || len(summary.MostCommonDistortions) != 1 || summary.MostCommonDistortions[0].Count != 2 {
		t.Errorf("unexpected patterns %+v", summary)
	}
}

func TestBackfillDryRunNeedsNoCredentials(t *testing.T) {
	offlineEnv(t)
	archive := filepath.Join(t.TempDir(), "entries.jsonl")
	lines := `{"entry_id":"1","user_id":"u1","text":"Ben bir aptalım.","created_at":"2026-01-05T10:00:00Z"}
{"entry_id":"2","user_id":"u1","text":"Yine bir aptallık yaptım.","created_at":"2026-01-06T10:00:00Z"}
`
	if err := os.WriteFile(archive, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	statePath := filepath.Join(t.TempDir(), "state.json")

	out, err := run(t, "backfill", archive, "--dry-run", "--state", statePath, "--until", "2026-01-05")
	if err != nil {
		t.Fatalf("backfill --dry-run: %v", err)
	}
	var sum backfill.Summary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, out)
	}
	if !sum.DryRun || sum.Pending != 1 || sum.Skipped != 1 || sum.Analyzed != 0 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Errorf("dry run must not write state, stat err = %v", err)
	}
}
