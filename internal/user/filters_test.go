package user

import (
	"errors"
	"testing"
)

func float64Ptr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

func TestHardFiltersValidate(t *testing.T) {
	tests := []struct {
		name    string
		filters *HardFilters
		wantErr bool
	}{
		{name: "nil is unconstrained", filters: nil},
		{name: "empty is unconstrained", filters: &HardFilters{}},
		{
			name: "consistent bounds",
			filters: &HardFilters{
				MinPriceUSD: float64Ptr(500),
				MaxPriceUSD: float64Ptr(1500),
				MinRooms:    intPtr(2),
				MaxRooms:    intPtr(4),
				MinSizeM2:   float64Ptr(40),
			},
		},
		{
			name:    "negative min price",
			filters: &HardFilters{MinPriceUSD: float64Ptr(-1)},
			wantErr: true,
		},
		{
			name:    "inverted price bounds",
			filters: &HardFilters{MinPriceUSD: float64Ptr(2000), MaxPriceUSD: float64Ptr(1000)},
			wantErr: true,
		},
		{
			name:    "min rooms below one",
			filters: &HardFilters{MinRooms: intPtr(0)},
			wantErr: true,
		},
		{
			name:    "inverted room bounds",
			filters: &HardFilters{MinRooms: intPtr(4), MaxRooms: intPtr(2)},
			wantErr: true,
		},
		{
			name:    "negative min size",
			filters: &HardFilters{MinSizeM2: float64Ptr(-10)},
			wantErr: true,
		},
		{
			name:    "unknown operation type",
			filters: &HardFilters{OperationType: "lease"},
			wantErr: true,
		},
		{
			name:    "rental operation",
			filters: &HardFilters{OperationType: "rental"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filters.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFilter) {
					t.Fatalf("expected ErrInvalidFilter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAcceptsNeighborhood(t *testing.T) {
	f := &HardFilters{Neighborhoods: []string{"Palermo", "Villa  Crespo"}}

	if !f.AcceptsNeighborhood("palermo") {
		t.Fatalf("comparison must ignore case")
	}
	if !f.AcceptsNeighborhood("  villa crespo ") {
		t.Fatalf("comparison must ignore spacing")
	}
	if f.AcceptsNeighborhood("Caballito") {
		t.Fatalf("neighborhood outside the set must be rejected")
	}

	open := &HardFilters{}
	if !open.AcceptsNeighborhood("anywhere") {
		t.Fatalf("empty set must accept everything")
	}
}

func TestUserMatchable(t *testing.T) {
	u := &User{Active: true, OnboardingCompleted: true}
	if !u.Matchable() {
		t.Fatalf("active onboarded user must be matchable")
	}

	u.Active = false
	if u.Matchable() {
		t.Fatalf("paused user must not be matchable")
	}

	u = &User{Active: true}
	if u.Matchable() {
		t.Fatalf("user mid-onboarding must not be matchable")
	}
}

func TestReactionValid(t *testing.T) {
	if !ReactionLike.Valid() || !ReactionDislike.Valid() {
		t.Fatalf("like and dislike must be valid")
	}
	if Reaction("meh").Valid() {
		t.Fatalf("unknown reaction must be invalid")
	}
}
