// Package vector is the similarity index shared by technique retrieval and
// user history. An Index pairs an embedder with a storage Backend.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/MikeSquared-Agency/zihin/internal/embed"
)

// Collection names.
const (
	CollectionTechniques = "therapy_techniques"
	CollectionEntries    = "user_entries"
	CollectionAnalyses   = "analysis_results"
)

// Collections lists every collection the service writes to.
var Collections = []string{CollectionEntries, CollectionTechniques, CollectionAnalyses}

// ErrEmptyDocument is returned for documents without id or text.
var ErrEmptyDocument = errors.New("document needs an id and text")

// Document is one indexed item. Metadata values are flat strings so every
// backend can filter on them by equality.
type Document struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Hit is a search result. Distance is cosine distance, 0 for identical
// direction and up to 2 for opposite.
type Hit struct {
	Document
	Distance float64 `json:"distance"`
}

// Similarity converts the distance into 1 - distance.
func (h Hit) Similarity() float64 { return 1 - h.Distance }

// Record is a document together with its embedding, as handed to a Backend.
type Record struct {
	Document
	Embedding []float32
}

// Filter matches documents whose metadata has every key with exactly the
// given value. A nil filter matches everything.
type Filter map[string]string

// Matches reports whether metadata satisfies f.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// Backend stores records and answers nearest-neighbour queries.
type Backend interface {
	Upsert(ctx context.Context, collection string, records []Record) error
	Search(ctx context.Context, collection string, query []float32, filter Filter, n int) ([]Hit, error)
	Scan(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Count(ctx context.Context, collection string) (int, error)
	Delete(ctx context.Context, collection string, filter Filter) (int, error)
	Ping(ctx context.Context) error
}

type Index struct {
	embedder embed.Embedder
	backend  Backend
	logger   *slog.Logger
}

func NewIndex(embedder embed.Embedder, backend Backend, logger *slog.Logger) *Index {
	return &Index{embedder: embedder, backend: backend, logger: logger}
}

// Upsert embeds and stores docs, replacing any with the same id.
func (ix *Index) Upsert(ctx context.Context, collection string, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		if d.ID == "" || strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("%w: %q", ErrEmptyDocument, d.ID)
		}
		texts[i] = d.Text
	}

	vecs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %d documents: %w", len(docs), err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vecs), len(docs))
	}

	records := make([]Record, len(docs))
	for i, d := range docs {
		records[i] = Record{Document: d, Embedding: vecs[i]}
	}
	if err := ix.backend.Upsert(ctx, collection, records); err != nil {
		return fmt.Errorf("upsert into %s: %w", collection, err)
	}
	ix.logger.Debug("indexed documents", "collection", collection, "count", len(docs))
	return nil
}

// Query returns up to n documents nearest to text, closest first.
func (ix *Index) Query(ctx context.Context, collection, text string, filter Filter, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.backend.Search(ctx, collection, vec, filter, n)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return hits, nil
}

// List returns every document in collection that matches filter.
func (ix *Index) List(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	docs, err := ix.backend.Scan(ctx, collection, filter)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return docs, nil
}

func (ix *Index) Count(ctx context.Context, collection string) (int, error) {
	n, err := ix.backend.Count(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Delete removes matching documents and reports how many went. An empty
// filter is refused so a collection is never wiped by accident.
func (ix *Index) Delete(ctx context.Context, collection string, filter Filter) (int, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("delete from %s: filter is required", collection)
	}
	n, err := ix.backend.Delete(ctx, collection, filter)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", collection, err)
	}
	return n, nil
}

// Ping checks the backend.
func (ix *Index) Ping(ctx context.Context) error {
	return ix.backend.Ping(ctx)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CosineDistance is 1 - CosineSimilarity.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}

// FormatPgVector renders v as a pgvector literal such as "[0.1,0.2]".
func FormatPgVector(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParsePgVector parses a pgvector text literal.
func ParsePgVector(s string) ([]float32, error) {
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("invalid vector format")
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
