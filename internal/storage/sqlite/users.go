package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

const userColumns = `id, chat_id, username, hard_filters_json, soft_preferences_json,
	preference_vector, is_active, onboarding_completed, onboarding_step,
	total_likes, total_dislikes, created_at, updated_at`

func (s *Store) Save(ctx context.Context, u *user.User) error {
	if err := u.HardFilters.Validate(); err != nil {
		return err
	}

	filters, err := json.Marshal(u.HardFilters)
	if err != nil {
		return fmt.Errorf("encode hard filters of %s: %w", u.ID, err)
	}
	prefs, err := json.Marshal(u.SoftPreferences)
	if err != nil {
		return fmt.Errorf("encode soft preferences of %s: %w", u.ID, err)
	}

	now := time.Now().UTC()
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = excluded.username,
			hard_filters_json = excluded.hard_filters_json,
			soft_preferences_json = excluded.soft_preferences_json,
			preference_vector = excluded.preference_vector,
			is_active = excluded.is_active,
			onboarding_completed = excluded.onboarding_completed,
			onboarding_step = excluded.onboarding_step,
			updated_at = excluded.updated_at`,
		u.ID, u.ChatID, u.Username, string(filters), string(prefs),
		marshalEmbedding(u.PreferenceVector), u.Active, u.OnboardingCompleted, u.OnboardingStep,
		u.TotalLikes, u.TotalDislikes, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetByChatID(ctx context.Context, chatID int64) (*user.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = ?`, chatID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user with chat id %d: %w", chatID, storage.ErrNotFound)
	}
	return u, err
}

func (s *Store) Matchable(ctx context.Context) ([]*user.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active = 1 AND onboarding_completed = 1
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query matchable users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SetPreferenceVector(ctx context.Context, id string, vector listing.Embedding) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET preference_vector = ?, updated_at = ? WHERE id = ?`,
		marshalEmbedding(vector), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set preference vector of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanUser(row rowScanner) (*user.User, error) {
	var (
		u       user.User
		filters string
		prefs   string
		vector  sql.NullString
	)

	err := row.Scan(
		&u.ID, &u.ChatID, &u.Username, &filters, &prefs,
		&vector, &u.Active, &u.OnboardingCompleted, &u.OnboardingStep,
		&u.TotalLikes, &u.TotalDislikes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(filters), &u.HardFilters); err != nil {
		return nil, fmt.Errorf("decode hard filters of %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(prefs), &u.SoftPreferences); err != nil {
		return nil, fmt.Errorf("decode soft preferences of %s: %w", u.ID, err)
	}
	if u.PreferenceVector, err = unmarshalEmbedding(vector); err != nil {
		return nil, fmt.Errorf("decode preference vector of %s: %w", u.ID, err)
	}
	return &u, nil
}
