package retrieval

import (
	"strings"

	"github.com/MikeSquared-Agency/zihin/internal/catalog"
)

// MaxTechniques caps every merged technique list.
const MaxTechniques = 3

// Technique sources.
const (
	SourceCatalog = "catalog"
	SourceVector  = "vector_search"
)

// Technique is a coping technique as returned to callers, tagged with where
// it came from.
type Technique struct {
	catalog.Technique
	Source         string   `json:"source"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// Combine merges vector hits and static catalog techniques: vector hits
// first, static entries fill the remaining slots, titles are unique
// case-insensitively and at most MaxTechniques are returned.
func Combine(vectorHits, static []Technique) []Technique {
	return combineN(vectorHits, static, MaxTechniques)
}

func combineN(vectorHits, static []Technique, limit int) []Technique {
	if limit <= 0 || limit > MaxTechniques {
		limit = MaxTechniques
	}
	out := make([]Technique, 0, limit)
	seen := make(map[string]bool, limit)

	add := func(list []Technique, source string) {
		for _, t := range list {
			if len(out) == limit {
				return
			}
			key := foldTitle(t.Title)
			if seen[key] {
				continue
			}
			seen[key] = true
			t.Source = source
			out = append(out, t)
		}
	}
	add(vectorHits, SourceVector)
	add(static, SourceCatalog)
	return out
}

func foldTitle(title string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(title), "İ", "i"))
}

func fromCatalog(ts []catalog.Technique) []Technique {
	out := make([]Technique, len(ts))
	for i, t := range ts {
		out[i] = Technique{Technique: t, Source: SourceCatalog}
	}
	return out
}
