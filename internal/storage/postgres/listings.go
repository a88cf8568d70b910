package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
)

const listingColumns = `id, source, external_id, url, title, description, content_hash,
	operation_type, price_original, currency, price_usd, price_per_m2_usd,
	region, city, neighborhood, rooms, bathrooms, size_total_m2, size_covered_m2,
	age_years, orientation, parking_spaces, features, scores,
	style_tags, summary, full_embedding, vibe_embedding, ingested_at, enriched_at`

func (s *Store) Upsert(ctx context.Context, l *listing.Listing) (storage.UpsertResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storage.UpsertSkipped, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	var existingHash string
	err = tx.QueryRow(ctx,
		`SELECT content_hash FROM listings WHERE source = $1 AND external_id = $2 FOR UPDATE`,
		l.Source, l.ExternalID,
	).Scan(&existingHash)

	result := storage.UpsertSkipped
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		features, scores, tags, err := marshalListingJSON(l)
		if err != nil {
			return storage.UpsertSkipped, err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO listings (`+listingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30)`,
			l.ID, l.Source, l.ExternalID, l.URL, l.Title, l.Description, l.ContentHash,
			l.OperationType, l.PriceOriginal, l.Currency, l.PriceUSD, l.PricePerM2USD,
			l.Region, l.City, l.Neighborhood, l.Rooms, l.Bathrooms, l.SizeTotalM2, l.SizeCoveredM2,
			l.AgeYears, l.Orientation, l.ParkingSpaces, features, scores, tags, l.Summary,
			embeddingParam(l.FullEmbedding), embeddingParam(l.VibeEmbedding),
			l.IngestedAt, timeParam(l.EnrichedAt),
		)
		if err != nil {
			return storage.UpsertSkipped, fmt.Errorf("insert listing %s: %w", l.ID, err)
		}
		result = storage.UpsertCreated

	case err != nil:
		return storage.UpsertSkipped, fmt.Errorf("lookup listing %s:%s: %w", l.Source, l.ExternalID, err)

	case existingHash == l.ContentHash:
		return storage.UpsertSkipped, nil

	default:
		features, scores, tags, err := marshalListingJSON(l)
		if err != nil {
			return storage.UpsertSkipped, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE listings SET
				url = $1, title = $2, description = $3, content_hash = $4, operation_type = $5,
				price_original = $6, currency = $7, price_usd = $8, price_per_m2_usd = $9,
				region = $10, city = $11, neighborhood = $12, rooms = $13, bathrooms = $14,
				size_total_m2 = $15, size_covered_m2 = $16, age_years = $17, orientation = $18,
				parking_spaces = $19, features = $20, scores = $21, style_tags = $22,
				summary = $23, full_embedding = NULL, vibe_embedding = NULL,
				ingested_at = $24, enriched_at = NULL
			WHERE source = $25 AND external_id = $26`,
			l.URL, l.Title, l.Description, l.ContentHash, l.OperationType,
			l.PriceOriginal, l.Currency, l.PriceUSD, l.PricePerM2USD,
			l.Region, l.City, l.Neighborhood, l.Rooms, l.Bathrooms,
			l.SizeTotalM2, l.SizeCoveredM2, l.AgeYears, l.Orientation,
			l.ParkingSpaces, features, scores, tags, l.Summary,
			l.IngestedAt, l.Source, l.ExternalID,
		)
		if err != nil {
			return storage.UpsertSkipped, fmt.Errorf("update listing %s: %w", l.ID, err)
		}
		result = storage.UpsertUpdated
	}

	if err := tx.Commit(ctx); err != nil {
		return storage.UpsertSkipped, fmt.Errorf("commit upsert: %w", err)
	}
	return result, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*listing.Listing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
		ORDER BY ingested_at ASC LIMIT $1`, limit)
}

func (s *Store) AttachEmbeddings(ctx context.Context, id string, full, vibe listing.Embedding) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE listings SET full_embedding = $1, vibe_embedding = $2, enriched_at = $3
		WHERE id = $4`,
		embeddingParam(full), embeddingParam(vibe), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("attach embeddings to %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
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
	rows, err := s.pool.Query(ctx, query, args...)
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

func scanListing(row pgx.Row) (*listing.Listing, error) {
	var (
		l          listing.Listing
		features   []byte
		scores     []byte
		tags       []byte
		full, vibe []float64
		enrichedAt *time.Time
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

	if err := json.Unmarshal(features, &l.Features); err != nil {
		return nil, fmt.Errorf("decode features of %s: %w", l.ID, err)
	}
	if len(scores) > 0 {
		l.Scores = &listing.Scores{}
		if err := json.Unmarshal(scores, l.Scores); err != nil {
			return nil, fmt.Errorf("decode scores of %s: %w", l.ID, err)
		}
	}
	if err := json.Unmarshal(tags, &l.StyleTags); err != nil {
		return nil, fmt.Errorf("decode style tags of %s: %w", l.ID, err)
	}
	l.FullEmbedding = listing.Embedding(full)
	l.VibeEmbedding = listing.Embedding(vibe)
	if enrichedAt != nil {
		l.EnrichedAt = *enrichedAt
	}
	return &l, nil
}

func marshalListingJSON(l *listing.Listing) (features, scores, tags []byte, err error) {
	if features, err = json.Marshal(l.Features); err != nil {
		return nil, nil, nil, fmt.Errorf("encode features of %s: %w", l.ID, err)
	}
	if l.Scores != nil {
		if scores, err = json.Marshal(l.Scores); err != nil {
			return nil, nil, nil, fmt.Errorf("encode scores of %s: %w", l.ID, err)
		}
	}
	styleTags := l.StyleTags
	if styleTags == nil {
		styleTags = []string{}
	}
	if tags, err = json.Marshal(styleTags); err != nil {
		return nil, nil, nil, fmt.Errorf("encode style tags of %s: %w", l.ID, err)
	}
	return features, scores, tags, nil
}

func embeddingParam(e listing.Embedding) any {
	if len(e) == 0 {
		return nil
	}
	return []float64(e)
}

func timeParam(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
