// Package store is the Postgres vector backend, using pgvector for cosine
// distance and jsonb containment for metadata filters.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/zihin/internal/vector"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate creates the pgvector extension and the documents table.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS vector_documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			document   TEXT NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			embedding  vector NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS vector_documents_metadata_idx ON vector_documents USING gin (metadata)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, records []vector.Record) error {
	batch := &pgx.Batch{}
	for _, r := range records {
		meta, err := metadataJSON(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		batch.Queue(`
			INSERT INTO vector_documents (collection, id, document, metadata, embedding)
			VALUES ($1, $2, $3, $4::jsonb, $5::vector)
			ON CONFLICT (collection, id) DO UPDATE SET
				document = EXCLUDED.document,
				metadata = EXCLUDED.metadata,
				embedding = EXCLUDED.embedding,
				updated_at = now()`,
			collection, r.ID, r.Text, meta, vector.FormatPgVector(r.Embedding),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, r := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, query []float32, filter vector.Filter, n int) ([]vector.Hit, error) {
	meta, err := metadataJSON(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, document, metadata, embedding <=> $3::vector AS distance
		FROM vector_documents
		WHERE collection = $1 AND metadata @> $2::jsonb
		ORDER BY distance
		LIMIT $4`,
		collection, meta, vector.FormatPgVector(query), n,
	)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var (
			h   vector.Hit
			raw []byte
		)
		if err := rows.Scan(&h.ID, &h.Text, &raw, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		if err := json.Unmarshal(raw, &h.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", h.ID, err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Store) Scan(ctx context.Context, collection string, filter vector.Filter) ([]vector.Document, error) {
	meta, err := metadataJSON(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, document, metadata
		FROM vector_documents
		WHERE collection = $1 AND metadata @> $2::jsonb
		ORDER BY id`,
		collection, meta,
	)
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()

	var docs []vector.Document
	for rows.Next() {
		var (
			d   vector.Document
			raw []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if err := json.Unmarshal(raw, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vector_documents WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, collection string, filter vector.Filter) (int, error) {
	meta, err := metadataJSON(filter)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM vector_documents WHERE collection = $1 AND metadata @> $2::jsonb`, collection, meta)
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func metadataJSON(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(b), nil
}
