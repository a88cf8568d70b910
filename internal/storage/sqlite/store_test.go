package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testListing(externalID, hash string) *listing.Listing {
	return &listing.Listing{
		ID:            listing.NewID("zonaprop", externalID),
		Source:        "zonaprop",
		ExternalID:    externalID,
		Title:         "Depto " + externalID,
		ContentHash:   hash,
		OperationType: listing.OperationRental,
		PriceOriginal: 1200,
		Currency:      "USD",
		PriceUSD:      1200,
		Neighborhood:  "Palermo",
		Rooms:         3,
		IngestedAt:    time.Now().UTC(),
	}
}

func testUser(chatID int64) *user.User {
	return &user.User{
		ID:                  user.NewID(chatID),
		ChatID:              chatID,
		Username:            "tester",
		Active:              true,
		OnboardingCompleted: true,
	}
}

func TestUpsertLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	l := testListing("1", "hash-a")
	result, err := s.Upsert(ctx, l)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if result != storage.UpsertCreated {
		t.Fatalf("expected created, got %v", result)
	}

	// Same content hash: nothing to do.
	result, err = s.Upsert(ctx, testListing("1", "hash-a"))
	if err != nil {
		t.Fatalf("repeat upsert: %v", err)
	}
	if result != storage.UpsertSkipped {
		t.Fatalf("expected skipped, got %v", result)
	}

	// Attach embeddings, then change the content: they must be dropped.
	if err := s.AttachEmbeddings(ctx, l.ID, listing.Embedding{1, 0}, listing.Embedding{0, 1}); err != nil {
		t.Fatalf("attach embeddings: %v", err)
	}

	changed := testListing("1", "hash-b")
	changed.PriceUSD = 1400
	result, err = s.Upsert(ctx, changed)
	if err != nil {
		t.Fatalf("update upsert: %v", err)
	}
	if result != storage.UpsertUpdated {
		t.Fatalf("expected updated, got %v", result)
	}

	got, err := s.GetByID(ctx, l.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.PriceUSD != 1400 {
		t.Fatalf("expected updated price, got %v", got.PriceUSD)
	}
	if got.Enriched() {
		t.Fatalf("content change must drop stale embeddings")
	}
	if !got.EnrichedAt.IsZero() {
		t.Fatalf("content change must clear enriched_at")
	}
}

func TestAttachEmbeddingsAndUnenriched(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := testListing("1", "hash-1")
	older.IngestedAt = time.Now().UTC().Add(-time.Hour)
	newer := testListing("2", "hash-2")

	for _, l := range []*listing.Listing{older, newer} {
		if _, err := s.Upsert(ctx, l); err != nil {
			t.Fatalf("upsert %s: %v", l.ID, err)
		}
	}

	pending, err := s.Unenriched(ctx, 10)
	if err != nil {
		t.Fatalf("unenriched: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != older.ID {
		t.Fatalf("expected oldest first, got %v", pending)
	}

	if err := s.AttachEmbeddings(ctx, older.ID, listing.Embedding{0.1, 0.2}, listing.Embedding{0.3, 0.4}); err != nil {
		t.Fatalf("attach embeddings: %v", err)
	}

	pending, err = s.Unenriched(ctx, 10)
	if err != nil {
		t.Fatalf("unenriched after attach: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != newer.ID {
		t.Fatalf("enriched listing must leave the backlog, got %v", pending)
	}

	got, err := s.GetByID(ctx, older.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if len(got.FullEmbedding) != 2 || got.FullEmbedding[0] != 0.1 {
		t.Fatalf("embeddings must round-trip, got %v", got.FullEmbedding)
	}
	if got.EnrichedAt.IsZero() {
		t.Fatalf("enriched_at must be set")
	}

	// A full embedding alone completes enrichment; the vibe slot is optional.
	if err := s.AttachEmbeddings(ctx, newer.ID, listing.Embedding{0.5, 0.5}, nil); err != nil {
		t.Fatalf("attach full-only embeddings: %v", err)
	}
	pending, err = s.Unenriched(ctx, 10)
	if err != nil {
		t.Fatalf("unenriched after full-only attach: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("full-only listing must leave the backlog, got %v", pending)
	}

	if err := s.AttachEmbeddings(ctx, "zonaprop:missing", listing.Embedding{1}, listing.Embedding{1}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserSaveAndMatchable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}

	paused := testUser(200)
	paused.Active = false
	if err := s.Save(ctx, paused); err != nil {
		t.Fatalf("save paused: %v", err)
	}

	onboarding := testUser(300)
	onboarding.OnboardingCompleted = false
	if err := s.Save(ctx, onboarding); err != nil {
		t.Fatalf("save onboarding: %v", err)
	}

	matchable, err := s.Matchable(ctx)
	if err != nil {
		t.Fatalf("matchable: %v", err)
	}
	if len(matchable) != 1 || matchable[0].ChatID != 100 {
		t.Fatalf("expected only the active onboarded user, got %v", matchable)
	}

	got, err := s.GetByChatID(ctx, 100)
	if err != nil {
		t.Fatalf("get by chat id: %v", err)
	}
	if got.ID != u.ID || got.Username != "tester" {
		t.Fatalf("unexpected user: %+v", got)
	}

	if _, err := s.GetByChatID(ctx, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsMalformedFilters(t *testing.T) {
	s := openTestStore(t)

	u := testUser(100)
	minPrice, maxPrice := 2000.0, 1000.0
	u.HardFilters = user.HardFilters{MinPriceUSD: &minPrice, MaxPriceUSD: &maxPrice}

	if err := s.Save(context.Background(), u); !errors.Is(err, user.ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestSetPreferenceVector(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := s.SetPreferenceVector(ctx, u.ID, listing.Embedding{0.5, -0.5}); err != nil {
		t.Fatalf("set preference vector: %v", err)
	}

	got, err := s.GetByChatID(ctx, 100)
	if err != nil {
		t.Fatalf("get by chat id: %v", err)
	}
	if !got.HasPreferenceVector() || got.PreferenceVector[1] != -0.5 {
		t.Fatalf("vector must round-trip, got %v", got.PreferenceVector)
	}
}

func TestNotificationLedgerWritesOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	l := testListing("1", "hash-1")
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if _, err := s.Upsert(ctx, l); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}

	notified, err := s.AlreadyNotified(ctx, u.ID, l.ID)
	if err != nil {
		t.Fatalf("already notified: %v", err)
	}
	if notified {
		t.Fatalf("fresh pair must not be notified")
	}

	if err := s.Record(ctx, u.ID, l.ID, 0.92); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Record(ctx, u.ID, l.ID, 0.95); !errors.Is(err, storage.ErrAlreadyRecorded) {
		t.Fatalf("expected ErrAlreadyRecorded, got %v", err)
	}

	notified, err = s.AlreadyNotified(ctx, u.ID, l.ID)
	if err != nil {
		t.Fatalf("already notified after record: %v", err)
	}
	if !notified {
		t.Fatalf("recorded pair must read back as notified")
	}
}

func TestFeedbackLastWriteWinsAndTotals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	l := testListing("1", "hash-1")
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if _, err := s.Upsert(ctx, l); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}

	if err := s.RecordReaction(ctx, user.Feedback{UserID: u.ID, ListingID: l.ID, Reaction: user.ReactionLike}); err != nil {
		t.Fatalf("record like: %v", err)
	}
	if err := s.RecordReaction(ctx, user.Feedback{UserID: u.ID, ListingID: l.ID, Reaction: user.ReactionDislike}); err != nil {
		t.Fatalf("record dislike: %v", err)
	}

	reactions, err := s.ReactionsFor(ctx, u.ID)
	if err != nil {
		t.Fatalf("reactions for: %v", err)
	}
	if len(reactions) != 1 || reactions[0].Reaction != user.ReactionDislike {
		t.Fatalf("last write must win, got %v", reactions)
	}

	got, err := s.GetByChatID(ctx, 100)
	if err != nil {
		t.Fatalf("get by chat id: %v", err)
	}
	if got.TotalLikes != 0 || got.TotalDislikes != 1 {
		t.Fatalf("totals must track the surviving reaction, got %d/%d", got.TotalLikes, got.TotalDislikes)
	}

	if err := s.RecordReaction(ctx, user.Feedback{UserID: u.ID, ListingID: l.ID, Reaction: "meh"}); err == nil {
		t.Fatalf("unknown reaction must be rejected")
	}
}

func TestDeleteCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	u := testUser(100)
	l := testListing("1", "hash-1")
	if err := s.Save(ctx, u); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if _, err := s.Upsert(ctx, l); err != nil {
		t.Fatalf("upsert listing: %v", err)
	}
	if err := s.Record(ctx, u.ID, l.ID, 0.9); err != nil {
		t.Fatalf("record notification: %v", err)
	}
	if err := s.RecordReaction(ctx, user.Feedback{UserID: u.ID, ListingID: l.ID, Reaction: user.ReactionLike}); err != nil {
		t.Fatalf("record reaction: %v", err)
	}

	if err := s.Delete(ctx, l.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.GetByID(ctx, l.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	notified, err := s.AlreadyNotified(ctx, u.ID, l.ID)
	if err != nil {
		t.Fatalf("already notified: %v", err)
	}
	if notified {
		t.Fatalf("notification records must cascade with the listing")
	}

	reactions, err := s.ReactionsFor(ctx, u.ID)
	if err != nil {
		t.Fatalf("reactions for: %v", err)
	}
	if len(reactions) != 0 {
		t.Fatalf("feedback must cascade with the listing, got %v", reactions)
	}

	if err := s.Delete(ctx, l.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeat delete, got %v", err)
	}
}

func TestSearchSimilar(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	near := testListing("1", "hash-1")
	far := testListing("2", "hash-2")
	for _, l := range []*listing.Listing{near, far} {
		if _, err := s.Upsert(ctx, l); err != nil {
			t.Fatalf("upsert %s: %v", l.ID, err)
		}
	}
	if err := s.AttachEmbeddings(ctx, near.ID, listing.Embedding{1, 0}, nil); err != nil {
		t.Fatalf("attach near: %v", err)
	}
	if err := s.AttachEmbeddings(ctx, far.ID, listing.Embedding{0, 1}, nil); err != nil {
		t.Fatalf("attach far: %v", err)
	}

	hits, err := s.SearchSimilar(ctx, listing.Embedding{1, 0}, similarity.KindFull, 0.7, 10)
	if err != nil {
		t.Fatalf("search similar: %v", err)
	}
	if len(hits) != 1 || hits[0].Listing.ID != near.ID {
		t.Fatalf("expected only the aligned listing, got %v", hits)
	}
}
