// Package sqlite is the embedded storage backend: a single-file database
// carrying the catalog, the user directory and both ledgers. Uniqueness
// constraints on (source, external_id), content_hash and the (user, listing)
// ledger pairs carry the system's idempotency invariants.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tdalverme/umbral/internal/storage"
)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", storage.ErrUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

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
  price_original REAL NOT NULL,
  currency TEXT NOT NULL,
  price_usd REAL NOT NULL,
  price_per_m2_usd REAL NOT NULL DEFAULT 0,
  region TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  neighborhood TEXT NOT NULL,
  rooms INTEGER NOT NULL,
  bathrooms INTEGER NOT NULL DEFAULT 0,
  size_total_m2 REAL NOT NULL DEFAULT 0,
  size_covered_m2 REAL NOT NULL DEFAULT 0,
  age_years INTEGER NOT NULL DEFAULT 0,
  orientation TEXT NOT NULL DEFAULT '',
  parking_spaces INTEGER NOT NULL DEFAULT 0,
  features_json TEXT NOT NULL DEFAULT '{}',
  scores_json TEXT,
  style_tags_json TEXT NOT NULL DEFAULT '[]',
  summary TEXT NOT NULL DEFAULT '',
  full_embedding TEXT,
  vibe_embedding TEXT,
  ingested_at TIMESTAMP NOT NULL,
  enriched_at TIMESTAMP,
  UNIQUE (source, external_id),
  UNIQUE (content_hash)
);

CREATE INDEX IF NOT EXISTS idx_listings_neighborhood ON listings(neighborhood);
CREATE INDEX IF NOT EXISTS idx_listings_price_usd ON listings(price_usd);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  chat_id INTEGER NOT NULL UNIQUE,
  username TEXT NOT NULL DEFAULT '',
  hard_filters_json TEXT NOT NULL DEFAULT '{}',
  soft_preferences_json TEXT NOT NULL DEFAULT '{}',
  preference_vector TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  onboarding_completed INTEGER NOT NULL DEFAULT 0,
  onboarding_step INTEGER NOT NULL DEFAULT 0,
  total_likes INTEGER NOT NULL DEFAULT 0,
  total_dislikes INTEGER NOT NULL DEFAULT 0,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  reaction TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  PRIMARY KEY (user_id, listing_id)
);

CREATE TABLE IF NOT EXISTS notifications (
  user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
  score REAL NOT NULL,
  sent_at TIMESTAMP NOT NULL,
  PRIMARY KEY (user_id, listing_id)
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
