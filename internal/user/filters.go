package user

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tdalverme/umbral/internal/listing"
)

// ErrInvalidFilter marks a malformed hard-filter set. Filter sets are rejected
// at the store boundary so a typo never silently disables a constraint.
var ErrInvalidFilter = errors.New("invalid hard filter")

// HardFilters are the non-negotiable gates a listing must pass to be shown to
// the user. Absent bounds (nil pointers, empty sets) mean unconstrained.
type HardFilters struct {
	MinPriceUSD *float64 `json:"min_price_usd,omitempty"`
	MaxPriceUSD *float64 `json:"max_price_usd,omitempty"`

	Neighborhoods []string `json:"neighborhoods,omitempty"`

	MinRooms  *int     `json:"min_rooms,omitempty"`
	MaxRooms  *int     `json:"max_rooms,omitempty"`
	MinSizeM2 *float64 `json:"min_size_m2,omitempty"`

	// OperationType restricts to rental or sale. Empty means unconstrained.
	OperationType string `json:"operation_type,omitempty"`

	RequiresBalcony   bool `json:"requires_balcony,omitempty"`
	RequiresParking   bool `json:"requires_parking,omitempty"`
	RequiresPets      bool `json:"requires_pets_allowed,omitempty"`
	RequiresFurnished bool `json:"requires_furnished,omitempty"`
}

// Validate checks internal consistency of the filter set. Every violation is
// wrapped in ErrInvalidFilter.
func (f *HardFilters) Validate() error {
	if f == nil {
		return nil
	}

	if f.MinPriceUSD != nil && *f.MinPriceUSD < 0 {
		return fmt.Errorf("%w: min_price_usd must not be negative", ErrInvalidFilter)
	}
	if f.MaxPriceUSD != nil && *f.MaxPriceUSD < 0 {
		return fmt.Errorf("%w: max_price_usd must not be negative", ErrInvalidFilter)
	}
	if f.MinPriceUSD != nil && f.MaxPriceUSD != nil && *f.MinPriceUSD > *f.MaxPriceUSD {
		return fmt.Errorf("%w: min_price_usd exceeds max_price_usd", ErrInvalidFilter)
	}

	if f.MinRooms != nil && *f.MinRooms < 1 {
		return fmt.Errorf("%w: min_rooms must be at least 1", ErrInvalidFilter)
	}
	if f.MaxRooms != nil && *f.MaxRooms < 1 {
		return fmt.Errorf("%w: max_rooms must be at least 1", ErrInvalidFilter)
	}
	if f.MinRooms != nil && f.MaxRooms != nil && *f.MinRooms > *f.MaxRooms {
		return fmt.Errorf("%w: min_rooms exceeds max_rooms", ErrInvalidFilter)
	}

	if f.MinSizeM2 != nil && *f.MinSizeM2 < 0 {
		return fmt.Errorf("%w: min_size_m2 must not be negative", ErrInvalidFilter)
	}

	if op := strings.TrimSpace(f.OperationType); op != "" &&
		op != listing.OperationRental && op != listing.OperationSale {
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidFilter, f.OperationType)
	}

	return nil
}

// AcceptsNeighborhood reports whether the neighborhood passes the accepted
// set. An empty set accepts everything. Comparison ignores case and spacing.
func (f *HardFilters) AcceptsNeighborhood(neighborhood string) bool {
	if len(f.Neighborhoods) == 0 {
		return true
	}
	want := normalizeNeighborhood(neighborhood)
	for _, n := range f.Neighborhoods {
		if normalizeNeighborhood(n) == want {
			return true
		}
	}
	return false
}

func normalizeNeighborhood(n string) string {
	return strings.ToLower(strings.Join(strings.Fields(n), " "))
}
