package retrieval

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/vector"
)

// SeedCatalog upserts every catalog technique into therapy_techniques with
// id "{type}_{idx}" and returns how many were written.
func (r *Retriever) SeedCatalog(ctx context.Context) (int, error) {
	if r.index == nil {
		return 0, ErrUnavailable
	}
	addedAt := r.timestamp()
	var docs []vector.Document
	for _, e := range r.catalog.Entries() {
		for i, t := range e.Techniques {
			docs = append(docs, techniqueDocument(e.Key, i, t, addedAt, r.embedding))
		}
	}
	if err := r.index.Upsert(ctx, vector.CollectionTechniques, docs...); err != nil {
		return 0, fmt.Errorf("seed techniques: %w", err)
	}
	r.logger.Info("seeded technique catalog", "techniques", len(docs))
	return len(docs), nil
}

// EnsureCatalog seeds the technique collection when it is incomplete or was
// embedded by a different embedder, and reports how many techniques it
// wrote. A current collection is left alone.
func (r *Retriever) EnsureCatalog(ctx context.Context) (int, error) {
	if r.index == nil {
		return 0, ErrUnavailable
	}
	docs, err := r.index.List(ctx, vector.CollectionTechniques, nil)
	if err != nil {
		return 0, fmt.Errorf("list techniques: %w", err)
	}

	var stored string
	stale := false
	for _, d := range docs {
		if d.Metadata["embedding"] != r.embedding {
			stored, stale = d.Metadata["embedding"], true
			break
		}
	}
	if len(docs) >= r.catalog.TotalTechniques() && !stale {
		return 0, nil
	}
	if stale {
		r.logger.Warn("technique vectors came from another embedder, re-seeding",
			"stored", stored,
			"current", r.embedding,
		)
		if n, err := r.index.Count(ctx, vector.CollectionEntries); err == nil && n > 0 {
			r.logger.Warn("history vectors keep their old embedding, similar-entry search may degrade", "entries", n)
		}
	}
	return r.SeedCatalog(ctx)
}

// Probe is a sanity query run after seeding.
type Probe struct {
	Query    string
	Expected []string
}

// DefaultProbes exercise a few everyday complaints against their likely
// distortion types.
var DefaultProbes = []Probe{
	{Query: "üzgün hissediyorum", Expected: []string{"felaketleştirme", "kişiselleştirme"}},
	{Query: "herkes benden nefret ediyor", Expected: []string{"zihin okuma", "genelleme"}},
	{Query: "hiçbir şey yapamıyorum", Expected: []string{"ya hep ya hiç", "etiketleme"}},
}

// ProbeHit is one technique returned for a probe.
type ProbeHit struct {
	Title          string  `json:"title"`
	DistortionType string  `json:"distortion_type"`
	Score          float64 `json:"score"`
}

// ProbeResult lists the hits for one probe query.
type ProbeResult struct {
	Query string     `json:"query"`
	Hits  []ProbeHit `json:"hits"`
}

// RunProbes queries the technique collection once per expected type and
// reports the best n hits of each.
func (r *Retriever) RunProbes(ctx context.Context, probes []Probe, n int) ([]ProbeResult, error) {
	if r.index == nil {
		return nil, ErrUnavailable
	}
	out := make([]ProbeResult, 0, len(probes))
	for _, p := range probes {
		res := ProbeResult{Query: p.Query}
		for _, t := range p.Expected {
			hits, err := r.index.Query(ctx, vector.CollectionTechniques, p.Query, vector.Filter{"distortion_type": catalog.Normalize(t)}, n)
			if err != nil {
				return nil, fmt.Errorf("probe %q: %w", p.Query, err)
			}
			for _, h := range hits {
				res.Hits = append(res.Hits, ProbeHit{
					Title:          h.Metadata["title"],
					DistortionType: h.Metadata["distortion_type"],
					Score:          h.Similarity(),
				})
			}
		}
		out = append(out, res)
	}
	return out, nil
}
