package matching

import (
	"github.com/tdalverme/umbral/internal/listing"
	"github.com/tdalverme/umbral/internal/user"
)

// The personalization layer composes the pure similarity score with the
// user's explicit per-axis weights. It runs after the geometric ranker and
// never influences candidate eligibility.

const (
	similarityShare = 0.6
	weightedShare   = 0.4

	// neutralScore stands in when a listing has no qualitative scores or the
	// user weights nothing: neither a boost nor a penalty.
	neutralScore = 0.5
)

// WeightedScore averages the listing's qualitative axes under the user's
// weights. Axes the user does not care about contribute nothing.
func WeightedScore(s *listing.Scores, p user.SoftPreferences) float64 {
	if s == nil {
		return neutralScore
	}

	axes := []struct {
		value  float64
		weight float64
	}{
		{s.Quietness, p.WeightQuietness},
		{s.Luminosity, p.WeightLuminosity},
		{s.Connectivity, p.WeightConnectivity},
		{s.WFHSuitability, p.WeightWFHSuitability},
		{s.Modernity, p.WeightModernity},
		{s.GreenSpaces, p.WeightGreenSpaces},
	}

	var sum, totalWeight float64
	for _, axis := range axes {
		if axis.weight <= 0 {
			continue
		}
		sum += axis.value * axis.weight
		totalWeight += axis.weight
	}

	if totalWeight == 0 {
		return neutralScore
	}
	return sum / totalWeight
}

// FinalScore combines similarity with the weighted qualitative score.
func FinalScore(similarityScore, weightedScore float64) float64 {
	return similarityScore*similarityShare + weightedScore*weightedShare
}
