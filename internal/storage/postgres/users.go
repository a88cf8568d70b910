package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

const userColumns = `id, chat_id, username, hard_filters, soft_preferences,
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

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (chat_id) DO UPDATE SET
			username = EXCLUDED.username,
			hard_filters = EXCLUDED.hard_filters,
			soft_preferences = EXCLUDED.soft_preferences,
			preference_vector = EXCLUDED.preference_vector,
			is_active = EXCLUDED.is_active,
			onboarding_completed = EXCLUDED.onboarding_completed,
			onboarding_step = EXCLUDED.onboarding_step,
			updated_at = EXCLUDED.updated_at`,
		u.ID, u.ChatID, u.Username, filters, prefs,
		embeddingParam(u.PreferenceVector), u.Active, u.OnboardingCompleted, u.OnboardingStep,
		u.TotalLikes, u.TotalDislikes, createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("save user %s: %w", u.ID, err)
	}
	return nil
}

func (s *Store) GetByChatID(ctx context.Context, chatID int64) (*user.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE chat_id = $1`, chatID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user with chat id %d: %w", chatID, storage.ErrNotFound)
	}
	return u, err
}

func (s *Store) Matchable(ctx context.Context) ([]*user.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND onboarding_completed
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
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET preference_vector = $1, updated_at = $2 WHERE id = $3`,
		embeddingParam(vector), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set preference vector of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u       user.User
		filters []byte
		prefs   []byte
		vector  []float64
	)

	err := row.Scan(
		&u.ID, &u.ChatID, &u.Username, &filters, &prefs,
		&vector, &u.Active, &u.OnboardingCompleted, &u.OnboardingStep,
		&u.TotalLikes, &u.TotalDislikes, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(filters, &u.HardFilters); err != nil {
		return nil, fmt.Errorf("decode hard filters of %s: %w", u.ID, err)
	}
	if err := json.Unmarshal(prefs, &u.SoftPreferences); err != nil {
		return nil, fmt.Errorf("decode soft preferences of %s: %w", u.ID, err)
	}
	u.PreferenceVector = listing.Embedding(vector)
	return &u, nil
}
