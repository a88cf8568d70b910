package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

// AlreadyNotified reports whether a notification record exists for the pair.
func (s *Store) AlreadyNotified(ctx context.Context, userID, listingID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications WHERE user_id = $1 AND listing_id = $2)`,
		userID, listingID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification %s/%s: %w", userID, listingID, err)
	}
	return exists, nil
}

// Record writes the pair once; ON CONFLICT DO NOTHING makes concurrent
// attempts collapse into a single row and losers get ErrAlreadyRecorded.
func (s *Store) Record(ctx context.Context, userID, listingID string, score float64) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (user_id, listing_id, score, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID, score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record notification %s/%s: %w", userID, listingID, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrAlreadyRecorded
	}
	return nil
}

// RecordReaction stores the reaction, replacing any earlier one for the pair,
// and refreshes the user's like/dislike totals in the same transaction.
func (s *Store) RecordReaction(ctx context.Context, fb user.Feedback) error {
	if !fb.Reaction.Valid() {
		return fmt.Errorf("unknown reaction %q", fb.Reaction)
	}

	createdAt := fb.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin feedback write: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO feedback (user_id, listing_id, reaction, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, listing_id) DO UPDATE SET
			reaction = EXCLUDED.reaction,
			created_at = EXCLUDED.created_at`,
		fb.UserID, fb.ListingID, string(fb.Reaction), createdAt,
	)
	if err != nil {
		return fmt.Errorf("record feedback %s/%s: %w", fb.UserID, fb.ListingID, err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			total_likes = (SELECT COUNT(*) FROM feedback WHERE user_id = $1 AND reaction = $2),
			total_dislikes = (SELECT COUNT(*) FROM feedback WHERE user_id = $1 AND reaction = $3)
		WHERE id = $1`,
		fb.UserID, string(user.ReactionLike), string(user.ReactionDislike),
	)
	if err != nil {
		return fmt.Errorf("refresh feedback totals of %s: %w", fb.UserID, err)
	}

	return tx.Commit(ctx)
}

// ReactionsFor returns the user's reactions, newest first.
func (s *Store) ReactionsFor(ctx context.Context, userID string) ([]user.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, listing_id, reaction, created_at FROM feedback
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query feedback of %s: %w", userID, err)
	}
	defer rows.Close()

	var reactions []user.Feedback
	for rows.Next() {
		var fb user.Feedback
		var reaction string
		if err := rows.Scan(&fb.UserID, &fb.ListingID, &reaction, &fb.CreatedAt); err != nil {
			return nil, err
		}
		fb.Reaction = user.Reaction(reaction)
		reactions = append(reactions, fb)
	}
	return reactions, rows.Err()
}
