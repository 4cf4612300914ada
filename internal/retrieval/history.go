package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/extractor"
	"github.com/MikeSquared-Agency/zihin/internal/vector"
)

// DefaultMoodScore is recorded when an entry carries no mood score.
const DefaultMoodScore = 5

// NoHistoryMessage accompanies an empty pattern summary.
const NoHistoryMessage = "Henüz yeterli veri yok"

const topDistortions = 5

// Entry is an analysed diary entry to be written into the user's history.
type Entry struct {
	EntryID   string
	UserID    string
	Text      string
	MoodScore int
	Result    extractor.AnalysisResult
	At        time.Time
}

// EntryDocumentID is the user_entries id for an entry.
func EntryDocumentID(entryID, userID string) string {
	return fmt.Sprintf("entry_%s_%s", entryID, userID)
}

// AnalysisDocumentID is the analysis_results id for an entry.
func AnalysisDocumentID(entryID, userID string) string {
	return fmt.Sprintf("analysis_%s_%s", entryID, userID)
}

// IndexEntry writes the entry text into user_entries.
func (r *Retriever) IndexEntry(ctx context.Context, e Entry) error {
	if r.index == nil {
		return ErrUnavailable
	}
	mood := e.MoodScore
	if mood <= 0 {
		mood = DefaultMoodScore
	}
	types := strings.Join(e.Result.DistortionTypes(), ",")

	text := e.Text
	if types != "" {
		text += "\n\nÇarpıtmalar: " + types
	}

	doc := vector.Document{
		ID:   EntryDocumentID(e.EntryID, e.UserID),
		Text: text,
		Metadata: map[string]string{
			"user_id":      e.UserID,
			"entry_id":     e.EntryID,
			"mood_score":   strconv.Itoa(mood),
			"overall_mood": moodLabel(mood),
			"created_at":   r.stamp(e.At),
			"distortions":  types,
			"risk_level":   riskOrUnknown(e.Result.RiskLevel),
		},
	}
	return r.index.Upsert(ctx, vector.CollectionEntries, doc)
}

// IndexAnalysis writes the analysis summary into analysis_results.
func (r *Retriever) IndexAnalysis(ctx context.Context, e Entry) error {
	if r.index == nil {
		return ErrUnavailable
	}
	mood := e.MoodScore
	if mood <= 0 {
		mood = DefaultMoodScore
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Giriş: %s\n\nTespit Edilen Çarpıtmalar:\n", e.Text)
	for _, d := range e.Result.Distortions {
		fmt.Fprintf(&b, "- %s: %s\n", d.Type, d.Explanation)
	}
	fmt.Fprintf(&b, "\nRisk Seviyesi: %s", riskOrUnknown(e.Result.RiskLevel))

	id := AnalysisDocumentID(e.EntryID, e.UserID)
	doc := vector.Document{
		ID:   id,
		Text: b.String(),
		Metadata: map[string]string{
			"analysis_id":      id,
			"user_id":          e.UserID,
			"distortion_count": strconv.Itoa(len(e.Result.Distortions)),
			"distortion_types": strings.Join(e.Result.DistortionTypes(), ","),
			"overall_mood":     moodLabel(mood),
			"risk_level":       riskOrUnknown(e.Result.RiskLevel),
			"analyzed_at":      r.stamp(e.At),
		},
	}
	return r.index.Upsert(ctx, vector.CollectionAnalyses, doc)
}

// DistortionCount is one row of the most-common ranking.
type DistortionCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type Period struct {
	First string `json:"first_analysis"`
	Last  string `json:"last_analysis"`
}

// PatternSummary aggregates a user's stored analyses.
type PatternSummary struct {
	TotalAnalyses         int               `json:"total_analyses"`
	MostCommonDistortions []DistortionCount `json:"most_common_distortions"`
	MoodDistribution      map[string]int    `json:"mood_distribution"`
	RiskLevelDistribution map[string]int    `json:"risk_level_distribution"`
	AnalysisPeriod        *Period           `json:"analysis_period,omitempty"`
	Message               string            `json:"message,omitempty"`
}

// TopTypes returns up to n of the most common distortion types.
func (p PatternSummary) TopTypes(n int) []string {
	out := make([]string, 0, n)
	for _, d := range p.MostCommonDistortions {
		if len(out) == n {
			break
		}
		out = append(out, d.Type)
	}
	return out
}

// UserPatterns summarises every analysis stored for userID. Distortion
// labels are normalized before counting. The ranking holds at most five
// types, by count and then by name.
func (r *Retriever) UserPatterns(ctx context.Context, userID string) (PatternSummary, error) {
	summary := PatternSummary{
		MostCommonDistortions: []DistortionCount{},
		MoodDistribution:      map[string]int{},
		RiskLevelDistribution: map[string]int{},
	}
	if r.index == nil {
		return summary, ErrUnavailable
	}

	docs, err := r.index.List(ctx, vector.CollectionAnalyses, vector.Filter{"user_id": userID})
	if err != nil {
		return summary, fmt.Errorf("list analyses for %s: %w", userID, err)
	}
	if len(docs) == 0 {
		summary.Message = NoHistoryMessage
		return summary, nil
	}

	counts := map[string]int{}
	var first, last string
	for _, d := range docs {
		m := d.Metadata
		for _, t := range strings.Split(m["distortion_types"], ",") {
			if t = strings.TrimSpace(t); t != "" {
				counts[catalog.Normalize(t)]++
			}
		}
		summary.MoodDistribution[orUnknown(m["overall_mood"])]++
		summary.RiskLevelDistribution[orUnknown(m["risk_level"])]++

		at := m["analyzed_at"]
		if first == "" || at < first {
			first = at
		}
		if at > last {
			last = at
		}
	}

	for t, c := range counts {
		summary.MostCommonDistortions = append(summary.MostCommonDistortions, DistortionCount{Type: t, Count: c})
	}
	slices.SortFunc(summary.MostCommonDistortions, func(a, b DistortionCount) int {
		if a.Count != b.Count {
			return cmp.Compare(b.Count, a.Count)
		}
		return cmp.Compare(a.Type, b.Type)
	})
	if len(summary.MostCommonDistortions) > topDistortions {
		summary.MostCommonDistortions = summary.MostCommonDistortions[:topDistortions]
	}

	summary.TotalAnalyses = len(docs)
	summary.AnalysisPeriod = &Period{First: first, Last: last}
	return summary, nil
}

// SimilarEntry is a past entry close to a query.
type SimilarEntry struct {
	ID              string            `json:"id"`
	Text            string            `json:"text"`
	Metadata        map[string]string `json:"metadata"`
	SimilarityScore float64           `json:"similarity_score"`
}

// SimilarEntries finds up to n of userID's entries nearest to query.
func (r *Retriever) SimilarEntries(ctx context.Context, userID, query string, n int) ([]SimilarEntry, error) {
	if r.index == nil {
		return nil, ErrUnavailable
	}
	if n <= 0 {
		n = 5
	}
	hits, err := r.index.Query(ctx, vector.CollectionEntries, query, vector.Filter{"user_id": userID}, n)
	if err != nil {
		return nil, fmt.Errorf("similar entries for %s: %w", userID, err)
	}
	out := make([]SimilarEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, SimilarEntry{ID: h.ID, Text: h.Text, Metadata: h.Metadata, SimilarityScore: h.Similarity()})
	}
	return out, nil
}

// Stats counts the documents in each collection.
type Stats struct {
	Entries    int    `json:"entries"`
	Techniques int    `json:"techniques"`
	Analyses   int    `json:"analyses"`
	Timestamp  string `json:"timestamp"`
}

func (r *Retriever) Stats(ctx context.Context) (Stats, error) {
	if r.index == nil {
		return Stats{}, ErrUnavailable
	}
	s := Stats{Timestamp: r.timestamp()}
	for _, c := range []struct {
		name string
		dst  *int
	}{
		{vector.CollectionEntries, &s.Entries},
		{vector.CollectionTechniques, &s.Techniques},
		{vector.CollectionAnalyses, &s.Analyses},
	} {
		n, err := r.index.Count(ctx, c.name)
		if err != nil {
			return Stats{}, err
		}
		*c.dst = n
	}
	return s, nil
}

// ClearUser deletes every entry and analysis stored for userID and reports
// how many documents were removed.
func (r *Retriever) ClearUser(ctx context.Context, userID string) (int, error) {
	if r.index == nil {
		return 0, ErrUnavailable
	}
	total := 0
	for _, c := range []string{vector.CollectionEntries, vector.CollectionAnalyses} {
		n, err := r.index.Delete(ctx, c, vector.Filter{"user_id": userID})
		if err != nil {
			return total, fmt.Errorf("clear %s for %s: %w", c, userID, err)
		}
		total += n
	}
	r.logger.Info("cleared user history", "user_id", userID, "documents", total)
	return total, nil
}

// moodLabel buckets a 1-10 mood score.
func moodLabel(score int) string {
	switch {
	case score <= 3:
		return "negative"
	case score <= 6:
		return "neutral"
	default:
		return "positive"
	}
}

func riskOrUnknown(level string) string {
	if level == "" {
		return extractor.RiskUnknown
	}
	return level
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (r *Retriever) stamp(at time.Time) string {
	if at.IsZero() {
		return r.timestamp()
	}
	return at.UTC().Format(time.RFC3339)
}
