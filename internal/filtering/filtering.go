// Package filtering implements the hard-filter gate: pure, side-effect-free
// rules that decide whether a listing may be shown to a user at all. A single
// failed rule excludes the listing entirely; rules never contribute to the
// match score.
package filtering

import (
	"go.uber.org/zap"

	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/user"
)

// Rule is a single hard constraint evaluated against one listing. Rules are
// total: every field combination yields a deterministic verdict, and an
// absent bound always passes.
type Rule interface {
	Name() string
	Pass(l *listing.Listing, f *user.HardFilters) bool
}

// Step describes the result of applying one rule to a collection.
type Step struct {
	Name    string
	Initial int
	Dropped int
	Left    int
}

// Rules returns the full gate in evaluation order.
func Rules() []Rule {
	return []Rule{
		priceRule{},
		neighborhoodRule{},
		roomsRule{},
		sizeRule{},
		operationRule{},
		requirementsRule{},
	}
}

// Eligible reports whether the listing passes every present constraint.
func Eligible(l *listing.Listing, f *user.HardFilters) bool {
	if f == nil {
		return true
	}
	for _, rule := range Rules() {
		if !rule.Pass(l, f) {
			return false
		}
	}
	return true
}

// Apply runs every rule over the collection, logging per-rule drop counts,
// and returns the survivors together with the step breakdown.
func Apply(items *listing.Collection, f *user.HardFilters, logger *zap.Logger) (*listing.Collection, []Step) {
	steps := make([]Step, 0, 6)
	for _, rule := range Rules() {
		initial := items.Len()
		kept := make([]*listing.Listing, 0, initial)
		for _, l := range items.Items {
			if f == nil || rule.Pass(l, f) {
				kept = append(kept, l)
			}
		}
		items = listing.NewCollection(kept)

		step := Step{
			Name:    rule.Name(),
			Initial: initial,
			Dropped: initial - items.Len(),
			Left:    items.Len(),
		}
		steps = append(steps, step)

		if logger != nil && step.Dropped > 0 {
			logger.Debug("hard filter step",
				zap.String("name", step.Name),
				zap.Int("initial", step.Initial),
				zap.Int("dropped", step.Dropped),
				zap.Int("left", step.Left),
			)
		}
	}

	return items, steps
}
