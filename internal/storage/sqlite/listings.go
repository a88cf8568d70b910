package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
)

const listingColumns = `id, source, external_id, url, title, description, content_hash,
	operation_type, price_original, currency, price_usd, price_per_m2_usd,
	region, city, neighborhood, rooms, bathrooms, size_total_m2, size_covered_m2,
	age_years, orientation, parking_spaces, features_json, scores_json,
	style_tags_json, summary, full_embedding, vibe_embedding, ingested_at, enriched_at`

func (s *Store) Upsert(ctx context.Context, l *listing.Listing) (storage.UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.UpsertSkipped, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var existingHash string
	err = tx.QueryRowContext(ctx,
		`SELECT content_hash FROM listings WHERE source = ? AND external_id = ?`,
		l.Source, l.ExternalID,
	).Scan(&existingHash)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := insertListing(ctx, tx, l); err != nil {
			return storage.UpsertSkipped, err
		}
		if err := tx.Commit(); err != nil {
			return storage.UpsertSkipped, fmt.Errorf("commit upsert: %w", err)
		}
		return storage.UpsertCreated, nil

	case err != nil:
		return storage.UpsertSkipped, fmt.Errorf("lookup listing %s:%s: %w", l.Source, l.ExternalID, err)

	case existingHash == l.ContentHash:
		return storage.UpsertSkipped, nil
	}

	// Content changed: replace structural fields and drop stale embeddings so
	// the enrichment step recomputes them.
	if err := updateListing(ctx, tx, l); err != nil {
		return storage.UpsertSkipped, err
	}
	if err := tx.Commit(); err != nil {
		return storage.UpsertSkipped, fmt.Errorf("commit upsert: %w", err)
	}
	return storage.UpsertUpdated, nil
}

func insertListing(ctx context.Context, tx *sql.Tx, l *listing.Listing) error {
	features, scores, tags, err := marshalListingJSON(l)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Source, l.ExternalID, l.URL, l.Title, l.Description, l.ContentHash,
		l.OperationType, l.PriceOriginal, l.Currency, l.PriceUSD, l.PricePerM2USD,
		l.Region, l.City, l.Neighborhood, l.Rooms, l.Bathrooms, l.SizeTotalM2, l.SizeCoveredM2,
		l.AgeYears, l.Orientation, l.ParkingSpaces, features, scores, tags, l.Summary,
		marshalEmbedding(l.FullEmbedding), marshalEmbedding(l.VibeEmbedding),
		l.IngestedAt, nullTime(l.EnrichedAt),
	)
	if err != nil {
		return fmt.Errorf("insert listing %s: %w", l.ID, err)
	}
	return nil
}

func updateListing(ctx context.Context, tx *sql.Tx, l *listing.Listing) error {
	features, scores, tags, err := marshalListingJSON(l)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listings SET
			url = ?, title = ?, description = ?, content_hash = ?, operation_type = ?,
			price_original = ?, currency = ?, price_usd = ?, price_per_m2_usd = ?,
			region = ?, city = ?, neighborhood = ?, rooms = ?, bathrooms = ?,
			size_total_m2 = ?, size_covered_m2 = ?, age_years = ?, orientation = ?,
			parking_spaces = ?, features_json = ?, scores_json = ?, style_tags_json = ?,
			summary = ?, full_embedding = NULL, vibe_embedding = NULL,
			ingested_at = ?, enriched_at = NULL
		WHERE source = ? AND external_id = ?`,
		l.URL, l.Title, l.Description, l.ContentHash, l.OperationType,
		l.PriceOriginal, l.Currency, l.PriceUSD, l.PricePerM2USD,
		l.Region, l.City, l.Neighborhood, l.Rooms, l.Bathrooms,
		l.SizeTotalM2, l.SizeCoveredM2, l.AgeYears, l.Orientation,
		l.ParkingSpaces, features, scores, tags, l.Summary,
		l.IngestedAt, l.Source, l.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("update listing %s: %w", l.ID, err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*listing.Listing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return l, err
}

func (s *Store) All(ctx context.Context) ([]*listing.Listing, error) {
	return s.queryListings(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY ingested_at DESC`)
}

func (s *Store) Unenriched(ctx context.Context, limit int) ([]*listing.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryListings(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE full_embedding IS NULL
		ORDER BY ingested_at ASC LIMIT ?`, limit)
}

func (s *Store) AttachEmbeddings(ctx context.Context, id string, full, vibe listing.Embedding) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings SET full_embedding = ?, vibe_embedding = ?, enriched_at = ?
		WHERE id = ?`,
		marshalEmbedding(full), marshalEmbedding(vibe), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("attach embeddings to %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) SearchSimilar(ctx context.Context, query listing.Embedding, kind similarity.Kind, threshold float64, limit int) ([]storage.SimilarListing, error) {
	items, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return storage.ScanSimilar(items, query, kind, threshold, limit)
}

func (s *Store) queryListings(ctx context.Context, query string, args ...any) ([]*listing.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []*listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*listing.Listing, error) {
	var (
		l          listing.Listing
		features   string
		scores     sql.NullString
		tags       string
		full, vibe sql.NullString
		enrichedAt sql.NullTime
	)

	err := row.Scan(
		&l.ID, &l.Source, &l.ExternalID, &l.URL, &l.Title, &l.Description, &l.ContentHash,
		&l.OperationType, &l.PriceOriginal, &l.Currency, &l.PriceUSD, &l.PricePerM2USD,
		&l.Region, &l.City, &l.Neighborhood, &l.Rooms, &l.Bathrooms, &l.SizeTotalM2, &l.SizeCoveredM2,
		&l.AgeYears, &l.Orientation, &l.ParkingSpaces, &features, &scores,
		&tags, &l.Summary, &full, &vibe, &l.IngestedAt, &enrichedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(features), &l.Features); err != nil {
		return nil, fmt.Errorf("decode features of %s: %w", l.ID, err)
	}
	if scores.Valid && scores.String != "" {
		l.Scores = &listing.Scores{}
		if err := json.Unmarshal([]byte(scores.String), l.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of %s: %w", l.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(tags), &l.StyleTags); err != nil {
		return nil, fmt.Errorf("decode style tags of %s: %w", l.ID, err)
	}
	if l.FullEmbedding, err = unmarshalEmbedding(full); err != nil {
		return nil, fmt.Errorf("decode full embedding of %s: %w", l.ID, err)
	}
	if l.VibeEmbedding, err = unmarshalEmbedding(vibe); err != nil {
		return nil, fmt.Errorf("decode vibe embedding of %s: %w", l.ID, err)
	}
	if enrichedAt.Valid {
		l.EnrichedAt = enrichedAt.Time
	}
	return &l, nil
}

func marshalListingJSON(l *listing.Listing) (features string, scores any, tags string, err error) {
	f, err := json.Marshal(l.Features)
	if err != nil {
		return "", nil, "", fmt.Errorf("encode features of %s: %w", l.ID, err)
	}

	var scoresVal any
	if l.Scores != nil {
		b, err := json.Marshal(l.Scores)
		if err != nil {
			return "", nil, "", fmt.Errorf("encode scores of %s: %w", l.ID, err)
		}
		scoresVal = string(b)
	}

	styleTags := l.StyleTags
	if styleTags == nil {
		styleTags = []string{}
	}
	t, err := json.Marshal(styleTags)
	if err != nil {
		return "", nil, "", fmt.Errorf("encode style tags of %s: %w", l.ID, err)
	}

	return string(f), scoresVal, string(t), nil
}

func marshalEmbedding(e listing.Embedding) any {
	if len(e) == 0 {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	return string(b)
}

func unmarshalEmbedding(raw sql.NullString) (listing.Embedding, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var e listing.Embedding
	if err := json.Unmarshal([]byte(raw.String), &e); err != nil {
		return nil, err
	}
	return e, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
