// Package postgres is the server-grade storage backend on pgx. It mirrors the
// sqlite schema with jsonb blobs for the typed preference structs and float8
// arrays for embeddings; the same uniqueness constraints carry the ledger and
// ingestion invariants.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tdalverme/umbral/internal/storage"
)

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL, verifies connectivity and applies the schema.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS listings (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  external_id TEXT NOT NULL,
  url TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  content_hash TEXT NOT NULL,
  operation_type TEXT NOT NULL,
  price_original DOUBLE PRECISION NOT NULL,
  currency TEXT NOT NULL,
  price_usd DOUBLE PRECISION NOT NULL,
  price_per_m2_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
  region TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  neighborhood TEXT NOT NULL,
  rooms INTEGER NOT NULL,
  bathrooms INTEGER NOT NULL DEFAULT 0,
  size_total_m2 DOUBLE PRECISION NOT NULL DEFAULT 0,
  size_covered_m2 DOUBLE PRECISION NOT NULL DEFAULT 0,
  age_years INTEGER NOT NULL DEFAULT 0,
  orientation TEXT NOT NULL DEFAULT '',
  parking_spaces INTEGER NOT NULL DEFAULT 0,
  features JSONB NOT NULL DEFAULT '{}',
  scores JSONB,
  style_tags JSONB NOT NULL DEFAULT '[]',
  summary TEXT NOT NULL DEFAULT '',
  full_embedding DOUBLE PRECISION[],
  vibe_embedding DOUBLE PRECISION[],
  ingested_at TIMESTAMPTZ NOT NULL,
  enriched_at TIMESTAMPTZ,
  UNIQUE (source, external_id),
  UNIQUE (content_hash)
);

CREATE INDEX IF NOT EXISTS idx_listings_neighborhood ON listings(neighborhood);
CREATE INDEX IF NOT EXISTS idx_listings_price_usd ON listings(price_usd);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  chat_id BIGINT NOT NULL UNIQUE,
  username TEXT NOT NULL DEFAULT '',
  hard_filters JSONB NOT NULL DEFAULT '{}',
  soft_preferences JSONB NOT NULL DEFAULT '{}',
  preference_vector DOUBLE PRECISION[],
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  onboarding_completed BOOLEAN NOT NULL DEFAULT FALSE,
  onboarding_step INTEGER NOT NULL DEFAULT 0,
  total_likes INTEGER NOT NULL DEFAULT 0,
  total_dislikes INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  reaction TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS notifications (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  score DOUBLE PRECISION NOT NULL,
  sent_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (user_id, listing_id)
);
`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
