// Package retrieval finds coping techniques and a user's history through the
// vector index, falling back to the static catalog whenever the index is
// missing or failing.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/vector"
)

// ErrUnavailable reports that no vector backend is configured or reachable.
var ErrUnavailable = errors.New("retrieval backend unavailable")

// Index is the part of vector.Index the retriever uses.
type Index interface {
	Query(ctx context.Context, collection, text string, filter vector.Filter, n int) ([]vector.Hit, error)
	Upsert(ctx context.Context, collection string, docs ...vector.Document) error
	List(ctx context.Context, collection string, filter vector.Filter) ([]vector.Document, error)
	Count(ctx context.Context, collection string) (int, error)
	Delete(ctx context.Context, collection string, filter vector.Filter) (int, error)
}

type Retriever struct {
	catalog   *catalog.Catalog
	index     Index
	logger    *slog.Logger
	now       func() time.Time
	embedding string
}

type Option func(*Retriever)

// WithClock overrides the timestamp source for indexed documents.
func WithClock(now func() time.Time) Option { return func(r *Retriever) { r.now = now } }

// WithEmbedding names the embedder behind the index, e.g. "hashing:256".
// Seeded techniques record it so a changed embedder triggers a re-seed.
func WithEmbedding(signature string) Option { return func(r *Retriever) { r.embedding = signature } }

// New creates a Retriever. index may be nil, in which case technique lookups
// are catalog-only and history operations return ErrUnavailable.
func New(cat *catalog.Catalog, index Index, logger *slog.Logger, opts ...Option) *Retriever {
	r := &Retriever{catalog: cat, index: index, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a vector index is configured.
func (r *Retriever) Available() bool { return r.index != nil }

// Catalog returns the static table the retriever falls back to.
func (r *Retriever) Catalog() *catalog.Catalog { return r.catalog }

// FindTechniques returns up to n techniques for distortionType. Vector hits
// come first and the catalog pads the rest. Unknown types yield the single
// generic technique. Backend failures are logged, never returned.
func (r *Retriever) FindTechniques(ctx context.Context, distortionType, query string, n int) []Technique {
	key := catalog.Normalize(distortionType)
	entry, ok := r.catalog.Lookup(key)
	if !ok {
		return []Technique{{Technique: catalog.GenericTechnique, Source: SourceCatalog}}
	}
	if n <= 0 || n > MaxTechniques {
		n = MaxTechniques
	}

	static := fromCatalog(entry.Techniques)
	if r.index == nil {
		return combineN(nil, static, n)
	}

	if strings.TrimSpace(query) == "" {
		query = entry.Name + " " + entry.Description
	}
	hits, err := r.index.Query(ctx, vector.CollectionTechniques, query, vector.Filter{"distortion_type": entry.Key}, n)
	if err != nil {
		r.logger.Warn("technique search failed, using catalog only",
			"distortion_type", entry.Key,
			"error", fmt.Errorf("%w: %w", ErrUnavailable, err),
		)
		return combineN(nil, static, n)
	}

	return combineN(r.fromHits(entry, hits), static, n)
}

// fromHits reads techniques from the metadata sidecar of each hit.
func (r *Retriever) fromHits(entry catalog.Entry, hits []vector.Hit) []Technique {
	out := make([]Technique, 0, len(hits))
	for _, h := range hits {
		m := h.Metadata
		t := catalog.Technique{
			Title:       m["title"],
			Description: m["description"],
			Exercise:    m["exercise"],
			Duration:    m["duration"],
			Difficulty:  m["difficulty"],
		}
		if strings.TrimSpace(t.Description) == "" {
			if known, ok := r.catalog.TechniqueByTitle(entry.Key, t.Title); ok {
				t = known
			} else {
				t = catalog.GenericTechnique
			}
		}
		score := h.Similarity()
		out = append(out, Technique{Technique: t, Source: SourceVector, RelevanceScore: &score})
	}
	return out
}

// techniqueDocument is the indexed form of one catalog technique. The body
// keeps labelled lines for embedding quality. Readers use the metadata.
func techniqueDocument(key string, idx int, t catalog.Technique, addedAt, embedding string) vector.Document {
	body := fmt.Sprintf("Başlık: %s\nAçıklama: %s\nEgzersiz: %s\nÇarpıtma Türü: %s",
		t.Title, t.Description, t.Exercise, key)
	id := fmt.Sprintf("%s_%d", key, idx)
	return vector.Document{
		ID:   id,
		Text: body,
		Metadata: map[string]string{
			"technique_id":    id,
			"distortion_type": key,
			"title":           t.Title,
			"description":     t.Description,
			"exercise":        t.Exercise,
			"duration":        t.Duration,
			"difficulty":      t.Difficulty,
			"added_at":        addedAt,
			"embedding":       embedding,
		},
	}
}

func (r *Retriever) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}
