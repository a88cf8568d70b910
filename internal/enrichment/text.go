package enrichment

import (
	"fmt"
	"strings"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/user"
)

// ListingText assembles the factual embedding input: everything known about
// the listing, in a stable order.
func ListingText(l *listing.Listing) string {
	var b strings.Builder

	write := func(label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	write("Title", l.Title)
	write("Operation", l.OperationType)
	write("Neighborhood", l.Neighborhood)
	write("City", l.City)
	if l.PriceUSD > 0 {
		write("Price", fmt.Sprintf("%.0f USD", l.PriceUSD))
	}
	if l.Rooms > 0 {
		write("Rooms", fmt.Sprintf("%d", l.Rooms))
	}
	if l.SizeTotalM2 > 0 {
		write("Size", fmt.Sprintf("%.0f m2", l.SizeTotalM2))
	}
	write("Description", l.Description)
	write("Summary", l.Summary)
	if len(l.StyleTags) > 0 {
		write("Style", strings.Join(l.StyleTags, ", "))
	}

	return strings.TrimSpace(b.String())
}

// VibeText assembles the subjective embedding input from the analysis
// collaborator's output only. Empty when the listing was never analyzed.
func VibeText(l *listing.Listing) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(l.Summary); s != "" {
		parts = append(parts, s)
	}
	if len(l.StyleTags) > 0 {
		parts = append(parts, strings.Join(l.StyleTags, ", "))
	}
	return strings.Join(parts, "\n")
}

// PreferenceText is the embedding input for a user's ideal property
// description.
func PreferenceText(u *user.User) string {
	return strings.TrimSpace(u.SoftPreferences.IdealDescription)
}
