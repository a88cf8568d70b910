package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

// AlreadyNotified reports whether a notification record exists for the pair.
func (s *Store) AlreadyNotified(ctx context.Context, userID, listingID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM notifications WHERE user_id = ? AND listing_id = ? LIMIT 1`,
		userID, listingID,
	).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("check notification %s/%s: %w", userID, listingID, err)
	}
}

// Record writes the pair once. The primary key makes concurrent attempts
// collapse into a single row; losers get ErrAlreadyRecorded.
func (s *Store) Record(ctx context.Context, userID, listingID string, score float64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (user_id, listing_id, score, sent_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, listing_id) DO NOTHING`,
		userID, listingID, score, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record notification %s/%s: %w", userID, listingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin feedback write: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedback (user_id, listing_id, reaction, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, listing_id) DO UPDATE SET
			reaction = excluded.reaction,
			created_at = excluded.created_at`,
		fb.UserID, fb.ListingID, string(fb.Reaction), createdAt,
	)
	if err != nil {
		return fmt.Errorf("record feedback %s/%s: %w", fb.UserID, fb.ListingID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			total_likes = (SELECT COUNT(*) FROM feedback WHERE user_id = ? AND reaction = ?),
			total_dislikes = (SELECT COUNT(*) FROM feedback WHERE user_id = ? AND reaction = ?)
		WHERE id = ?`,
		fb.UserID, string(user.ReactionLike), fb.UserID, string(user.ReactionDislike), fb.UserID,
	)
	if err != nil {
		return fmt.Errorf("refresh feedback totals of %s: %w", fb.UserID, err)
	}

	return tx.Commit()
}

// ReactionsFor returns the user's reactions, newest first.
func (s *Store) ReactionsFor(ctx context.Context, userID string) ([]user.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, listing_id, reaction, created_at FROM feedback
		WHERE user_id = ? ORDER BY created_at DESC`, userID)
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
