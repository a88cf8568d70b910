package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/similarity"
	"github.com/tdalverme/umbral/internal/storage"
	"github.com/tdalverme/umbral/internal/user"
)

type fakeListings struct {
	items []*listing.Listing
}

func (f *fakeListings) Upsert(context.Context, *listing.Listing) (storage.UpsertResult, error) {
	return storage.UpsertSkipped, errors.New("not implemented")
}

func (f *fakeListings) GetByID(_ context.Context, id string) (*listing.Listing, error) {
	for _, l := range f.items {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeListings) All(context.Context) ([]*listing.Listing, error) { return f.items, nil }

func (f *fakeListings) Unenriched(context.Context, int) ([]*listing.Listing, error) {
	return nil, nil
}

func (f *fakeListings) AttachEmbeddings(context.Context, string, listing.Embedding, listing.Embedding) error {
	return errors.New("not implemented")
}

func (f *fakeListings) Delete(context.Context, string) error { return errors.New("not implemented") }

func (f *fakeListings) SearchSimilar(_ context.Context, query listing.Embedding, kind similarity.Kind, threshold float64, limit int) ([]storage.SimilarListing, error) {
	return storage.ScanSimilar(f.items, query, kind, threshold, limit)
}

type fakeUsers struct {
	users []*user.User
}

func (f *fakeUsers) Save(context.Context, *user.User) error { return errors.New("not implemented") }

func (f *fakeUsers) GetByChatID(_ context.Context, chatID int64) (*user.User, error) {
	for _, u := range f.users {
		if u.ChatID == chatID {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeUsers) Matchable(context.Context) ([]*user.User, error) { return f.users, nil }

func (f *fakeUsers) SetPreferenceVector(context.Context, string, listing.Embedding) error {
	return errors.New("not implemented")
}

type fakeFeedback struct {
	reactions map[string]user.Feedback
}

func (f *fakeFeedback) RecordReaction(_ context.Context, fb user.Feedback) error {
	if f.reactions == nil {
		f.reactions = make(map[string]user.Feedback)
	}
	f.reactions[fb.UserID+"/"+fb.ListingID] = fb
	return nil
}

func (f *fakeFeedback) ReactionsFor(_ context.Context, userID string) ([]user.Feedback, error) {
	var out []user.Feedback
	for _, fb := range f.reactions {
		if fb.UserID == userID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func apiListing(id, neighborhood string, priceUSD float64, vibe listing.Embedding) *listing.Listing {
	return &listing.Listing{
		ID:            id,
		OperationType: listing.OperationRental,
		PriceUSD:      priceUSD,
		Neighborhood:  neighborhood,
		Rooms:         3,
		VibeEmbedding: vibe,
		IngestedAt:    time.Now().UTC(),
	}
}

func newTestServer(t *testing.T, listings *fakeListings, users *fakeUsers, feedback *fakeFeedback) *Server {
	t.Helper()
	s, err := NewServer(Config{
		Listings: listings,
		Users:    users,
		Feedback: feedback,
	})
	if err != nil {
		t.Fatalf("building server: %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeListings{}, &fakeUsers{}, nil)
	w := doRequest(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListListingsAppliesFilters(t *testing.T) {
	s := newTestServer(t, &fakeListings{items: []*listing.Listing{
		apiListing("zonaprop:1", "Palermo", 1200, nil),
		apiListing("zonaprop:2", "Palermo", 3000, nil),
		apiListing("zonaprop:3", "Caballito", 1100, nil),
	}}, &fakeUsers{}, nil)

	w := doRequest(t, s, http.MethodGet, "/api/listings?neighborhood=Palermo&max_price_usd=1500", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count    int                `json:"count"`
		Listings []*listing.Listing `json:"listings"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 || resp.Listings[0].ID != "zonaprop:1" {
		t.Fatalf("unexpected browse result: %+v", resp)
	}
}

func TestGetListing(t *testing.T) {
	s := newTestServer(t, &fakeListings{items: []*listing.Listing{
		apiListing("zonaprop:1", "Palermo", 1200, nil),
	}}, &fakeUsers{}, nil)

	if w := doRequest(t, s, http.MethodGet, "/api/listings/zonaprop:1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, "/api/listings/zonaprop:404", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSearchByVector(t *testing.T) {
	s := newTestServer(t, &fakeListings{items: []*listing.Listing{
		apiListing("zonaprop:near", "Palermo", 1200, listing.Embedding{1, 0}),
		apiListing("zonaprop:far", "Palermo", 1200, listing.Embedding{0, 1}),
	}}, &fakeUsers{}, nil)

	w := doRequest(t, s, http.MethodPost, "/api/search",
		`{"vector": [1, 0], "kind": "vibe", "threshold": 0.7}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 hit, got %d", resp.Count)
	}
}

func TestSearchValidation(t *testing.T) {
	s := newTestServer(t, &fakeListings{}, &fakeUsers{}, nil)

	if w := doRequest(t, s, http.MethodPost, "/api/search", `{"kind": "weird", "vector": [1]}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown kind must be rejected, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodPost, "/api/search", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing text and vector must be rejected, got %d", w.Code)
	}
	// Text search without an embedder is a capability gap, not a bad request.
	if w := doRequest(t, s, http.MethodPost, "/api/search", `{"text": "quiet flat"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without embedder, got %d", w.Code)
	}
}

func TestPreviewMatches(t *testing.T) {
	maxPrice := 1500.0
	u := &user.User{
		ID:                  "7",
		ChatID:              7,
		Active:              true,
		OnboardingCompleted: true,
		HardFilters:         user.HardFilters{MaxPriceUSD: &maxPrice},
		PreferenceVector:    listing.Embedding{1, 0},
	}

	s := newTestServer(t, &fakeListings{items: []*listing.Listing{
		apiListing("zonaprop:match", "Palermo", 1200, listing.Embedding{1, 0}),
		apiListing("zonaprop:pricey", "Palermo", 3000, listing.Embedding{1, 0}),
		apiListing("zonaprop:offvibe", "Palermo", 1100, listing.Embedding{0, 1}),
	}}, &fakeUsers{users: []*user.User{u}}, nil)

	w := doRequest(t, s, http.MethodGet, "/api/users/7/matches", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Matches []struct {
			Listing *listing.Listing `json:"listing"`
			Score   float64          `json:"score"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Matches) != 1 || resp.Matches[0].Listing.ID != "zonaprop:match" {
		t.Fatalf("unexpected preview: %+v", resp.Matches)
	}

	if w := doRequest(t, s, http.MethodGet, "/api/users/99/matches", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user must 404, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodGet, "/api/users/abc/matches", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric chat id must 400, got %d", w.Code)
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	u := &user.User{ID: "7", ChatID: 7, Active: true, OnboardingCompleted: true}
	feedback := &fakeFeedback{}

	s := newTestServer(t, &fakeListings{items: []*listing.Listing{
		apiListing("zonaprop:1", "Palermo", 1200, nil),
	}}, &fakeUsers{users: []*user.User{u}}, feedback)

	w := doRequest(t, s, http.MethodPost, "/api/users/7/feedback",
		`{"listing_id": "zonaprop:1", "reaction": "like"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(t, s, http.MethodGet, "/api/users/7/feedback", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Count != 1 {
		t.Fatalf("expected 1 reaction, got %d", resp.Count)
	}

	// Unknown listing and invalid reaction are both rejected.
	if w := doRequest(t, s, http.MethodPost, "/api/users/7/feedback",
		`{"listing_id": "zonaprop:404", "reaction": "like"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown listing must 404, got %d", w.Code)
	}
	if w := doRequest(t, s, http.MethodPost, "/api/users/7/feedback",
		`{"listing_id": "zonaprop:1", "reaction": "meh"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid reaction must 400, got %d", w.Code)
	}
}
