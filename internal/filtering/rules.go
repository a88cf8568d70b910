package filtering

import (
	"strings"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/user"
)

type priceRule struct{}

func (priceRule) Name() string { return "price" }

func (priceRule) Pass(l *listing.Listing, f *user.HardFilters) bool {
	if f.MinPriceUSD != nil && l.PriceUSD < *f.MinPriceUSD {
		return false
	}
	if f.MaxPriceUSD != nil && l.PriceUSD > *f.MaxPriceUSD {
		return false
	}
	return true
}

type neighborhoodRule struct{}

func (neighborhoodRule) Name() string { return "neighborhood" }

func (neighborhoodRule) Pass(l *listing.Listing, f *user.HardFilters) bool {
	return f.AcceptsNeighborhood(l.Neighborhood)
}

type roomsRule struct{}

func (roomsRule) Name() string { return "rooms" }

func (roomsRule) Pass(l *listing.Listing, f *user.HardFilters) bool {
	if f.MinRooms != nil && l.Rooms < *f.MinRooms {
		return false
	}
	if f.MaxRooms != nil && l.Rooms > *f.MaxRooms {
		return false
	}
	return true
}

type sizeRule struct{}

func (sizeRule) Name() string { return "size" }

func (sizeRule) Pass(l *listing.Listing, f *user.HardFilters) bool {
	if f.MinSizeM2 == nil {
		return true
	}
	size := l.SizeTotalM2
	if size <= 0 {
		size = l.SizeCoveredM2
	}
	// Unknown size does not meet a minimum-size requirement.
	return size >= *f.MinSizeM2
}

type operationRule struct{}

func (operationRule) Name() string { return "operation_type" }

func (operationRule) Pass(l *listing.Listing, f *user.HardFilters) bool {
	want := strings.TrimSpace(f.OperationType)
	if want == "" {
		return true
	}
	return l.OperationType == want
}

type requirementsRule struct{}

func (requirementsRule) Name() string { return "requirements" }

// Pass enforces every requires_X flag. A listing missing the amenity data is
// treated as not having the amenity.
func (requirementsRule) Pass(l *listing.Listing, f *user.HardFilters) bool {
	if f.RequiresBalcony && !l.Features.Balcony {
		return false
	}
	if f.RequiresParking && l.ParkingSpaces <= 0 {
		return false
	}
	if f.RequiresPets && !l.Features.PetFriendly {
		return false
	}
	if f.RequiresFurnished && !l.Features.Furnished {
		return false
	}
	return true
}
