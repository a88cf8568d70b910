// Package storage defines the persistence contracts of the matching system.
// Listing and user stores are written by the ingestion and onboarding
// collaborators; the matching engine reads them and owns writes to the
// notification ledger only.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyRecorded signals that a (user, listing) notification record
	// already exists. It is the expected outcome of a lost race or a
	// re-run, not a failure.
	ErrAlreadyRecorded = errors.New("notification already recorded")
	// ErrUnavailable wraps backend connectivity failures. A pass aborted by
	// it is safely re-runnable from scratch.
	ErrUnavailable = errors.New("store unavailable")
)

// UpsertResult says what an idempotent listing upsert did.
type UpsertResult int

const (
	// UpsertSkipped means the content hash was unchanged and nothing was written.
	UpsertSkipped UpsertResult = iota
	// UpsertCreated means a new listing record was inserted.
	UpsertCreated
	// UpsertUpdated means an existing (source, external id) record changed content.
	UpsertUpdated
)

// SimilarListing is one nearest-neighbor query hit.
type SimilarListing struct {
	Listing *listing.Listing
	Score   float64
}

// ListingStore is the canonical catalog of properties.
type ListingStore interface {
	// Upsert writes a listing keyed by (source, external id). A record whose
	// content hash is unchanged is left untouched, embeddings included.
	Upsert(ctx context.Context, l *listing.Listing) (UpsertResult, error)
	GetByID(ctx context.Context, id string) (*listing.Listing, error)
	// All returns every listing in the catalog, newest first.
	All(ctx context.Context) ([]*listing.Listing, error)
	// Unenriched returns listings still waiting for embeddings, oldest first.
	Unenriched(ctx context.Context, limit int) ([]*listing.Listing, error)
	// AttachEmbeddings completes enrichment for a listing. Scores, summary
	// and tags from the analysis collaborator may be attached in the same write.
	AttachEmbeddings(ctx context.Context, id string, full, vibe listing.Embedding) error
	// Delete removes a listing and cascades its feedback and notifications.
	Delete(ctx context.Context, id string) error
	// SearchSimilar is the nearest-neighbor query primitive over one of the
	// embedding columns. It is a debugging surface, never authoritative for
	// notification dedup.
	SearchSimilar(ctx context.Context, query listing.Embedding, kind similarity.Kind, threshold float64, limit int) ([]SimilarListing, error)
}

// UserStore is the directory of matching participants.
type UserStore interface {
	// Save validates the user's hard filters and creates or replaces the record.
	Save(ctx context.Context, u *user.User) error
	GetByChatID(ctx context.Context, chatID int64) (*user.User, error)
	// Matchable returns the users eligible for matching passes: active and
	// onboarded.
	Matchable(ctx context.Context) ([]*user.User, error)
	// SetPreferenceVector replaces the user's preference embedding after the
	// onboarding collaborator recomputes it.
	SetPreferenceVector(ctx context.Context, id string, vector listing.Embedding) error
}

// Notification is one write-once ledger record.
type Notification struct {
	UserID    string
	ListingID string
	Score     float64
	SentAt    time.Time
}

// NotificationLedger enforces at-most-once delivery per (user, listing) pair.
type NotificationLedger interface {
	AlreadyNotified(ctx context.Context, userID, listingID string) (bool, error)
	// Record writes the pair atomically. A concurrent or repeated attempt
	// gets ErrAlreadyRecorded; exactly one record ever exists per pair.
	Record(ctx context.Context, userID, listingID string, score float64) error
}

// FeedbackLedger keeps one reaction per (user, listing) pair, last write wins.
type FeedbackLedger interface {
	RecordReaction(ctx context.Context, fb user.Feedback) error
	ReactionsFor(ctx context.Context, userID string) ([]user.Feedback, error)
}
