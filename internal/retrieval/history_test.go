package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/MikeSquared-Agency/zihin/internal/vector"
)

func TestIndexEntry_Metadata(t *testing.T) {
	ctx := context.Background()
	idx := newIndex(t)
	r := newRetriever(t, idx)

	err := r.IndexEntry(ctx, Entry{
		EntryID: "42",
		UserID:  "u1",
		Text:    "Sınavda başarısız olacağım, her şey bitecek.",
		Result:  analysisWith("medium", "felaketleştirme", "etiketleme"),
	})
	if err != nil {
		t.Fatalf("IndexEntry: %v", err)
	}

	docs, err := idx.List(ctx, vector.CollectionEntries, vector.Filter{"user_id": "u1"})
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected one entry, got %v (err %v)", docs, err)
	}
	d := docs[0]
	if d.ID != "entry_42_u1" {
		t.Errorf("unexpected id %q", d.ID)
	}
	want := map[string]string{
		"user_id":      "u1",
		"entry_id":     "42",
		"mood_score":   "5",
		"overall_mood": "neutral",
		"created_at":   fixedNow.Format(time.RFC3339),
		"distortions":  "felaketleştirme,etiketleme",
		"risk_level":   "medium",
	}
	if diff := cmp.Diff(want, d.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestUserPatterns(t *testing.T) {
	ctx := context.Background()
	r := newRetriever(t, newIndex(t))

	day := func(d int) time.Time { return time.Date(2026, 4, d, 10, 0, 0, 0, time.UTC) }
	entries := []Entry{
		{EntryID: "1", UserID: "u1", Text: "bir", MoodScore: 2, At: day(3), Result: analysisWith("high", "Felaketleştirme", "genelleme")},
		{EntryID: "2", UserID: "u1", Text: "iki", MoodScore: 8, At: day(1), Result: analysisWith("low", "felaketlestirme", "zihin_okuma")},
		{EntryID: "3", UserID: "u1", Text: "üç", At: day(7), Result: analysisWith("low", "genelleme", "etiketleme", "kehanetçilik", "ya hep ya hiç")},
		{EntryID: "4", UserID: "u2", Text: "başka", At: day(2), Result: analysisWith("low", "etiketleme")},
	}
	for _, e := range entries {
		if err := r.IndexAnalysis(ctx, e); err != nil {
			t.Fatalf("IndexAnalysis: %v", err)
		}
	}

	got, err := r.UserPatterns(ctx, "u1")
	if err != nil {
		t.Fatalf("UserPatterns: %v", err)
	}
	want := PatternSummary{
		TotalAnalyses: 3,
		MostCommonDistortions: []DistortionCount{
			{Type: "felaketleştirme", Count: 2},
			{Type: "genelleme", Count: 2},
			{Type: "etiketleme", Count: 1},
			{Type: "kehanetçilik", Count: 1},
			{Type: "ya hep ya hiç", Count: 1},
		},
		MoodDistribution:      map[string]int{"negative": 1, "positive": 1, "neutral": 1},
		RiskLevelDistribution: map[string]int{"high": 1, "low": 2},
		AnalysisPeriod:        &Period{First: day(1).Format(time.RFC3339), Last: day(7).Format(time.RFC3339)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("UserPatterns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"felaketleştirme", "genelleme", "etiketleme"}, got.TopTypes(3)); diff != "" {
		t.Errorf("TopTypes mismatch (-want +got):\n%s", diff)
	}
}

func TestUserPatterns_NoHistory(t *testing.T) {
	got, err := newRetriever(t, newIndex(t)).UserPatterns(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("UserPatterns: %v", err)
	}
	if got.TotalAnalyses != 0 || got.Message != NoHistoryMessage || len(got.MostCommonDistortions) != 0 {
		t.Errorf("expected empty summary, got %+v", got)
	}
}

func TestSimilarEntries_ScopedToUser(t *testing.T) {
	ctx := context.Background()
	r := newRetriever(t, newIndex(t))

	r.IndexEntry(ctx, Entry{EntryID: "1", UserID: "u1", Text: "kimse beni sevmiyor"})
	r.IndexEntry(ctx, Entry{EntryID: "2", UserID: "u1", Text: "bugün parkta yürüdüm"})
	r.IndexEntry(ctx, Entry{EntryID: "3", UserID: "u2", Text: "kimse beni sevmiyor"})

	got, err := r.SimilarEntries(ctx, "u1", "kimse beni sevmiyor", 5)
	if err != nil {
		t.Fatalf("SimilarEntries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected u1's two entries, got %d", len(got))
	}
	if got[0].ID != "entry_1_u1" {
		t.Errorf("expected closest entry first, got %q", got[0].ID)
	}
	if got[0].SimilarityScore < got[1].SimilarityScore {
		t.Errorf("expected descending similarity, got %f then %f", got[0].SimilarityScore, got[1].SimilarityScore)
	}
}

func TestStatsAndClearUser(t *testing.T) {
	ctx := context.Background()
	r := newRetriever(t, newIndex(t))

	r.SeedCatalog(ctx)
	for _, u := range []string{"u1", "u2"} {
		e := Entry{EntryID: "1", UserID: u, Text: "metin", Result: analysisWith("low", "genelleme")}
		r.IndexEntry(ctx, e)
		r.IndexAnalysis(ctx, e)
	}

	stats, err := r.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{Entries: 2, Techniques: r.Catalog().TotalTechniques(), Analyses: 2, Timestamp: fixedNow.Format(time.RFC3339)}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}

	removed, err := r.ClearUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ClearUser: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 documents removed, got %d", removed)
	}
	stats, _ = r.Stats(ctx)
	if stats.Entries != 1 || stats.Analyses != 1 || stats.Techniques != r.Catalog().TotalTechniques() {
		t.Errorf("unexpected stats after clear: %+v", stats)
	}
}
