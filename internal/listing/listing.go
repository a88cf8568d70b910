package listing

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// OperationRental marks listings offered for rent.
	OperationRental = "rental"
	// OperationSale marks listings offered for sale.
	OperationSale = "sale"
)

// Embedding is a fixed-dimension semantic vector compared via cosine similarity.
type Embedding []float64

// Features holds the boolean amenity attributes extracted from a listing.
type Features struct {
	Furnished       bool `json:"furnished,omitempty"`
	PetFriendly     bool `json:"pet_friendly,omitempty"`
	Security        bool `json:"security,omitempty"`
	Elevator        bool `json:"elevator,omitempty"`
	Gas             bool `json:"gas,omitempty"`
	AirConditioning bool `json:"air_conditioning,omitempty"`
	Heating         bool `json:"heating,omitempty"`
	Laundry         bool `json:"laundry,omitempty"`
	BBQ             bool `json:"bbq,omitempty"`
	Pool            bool `json:"pool,omitempty"`
	Gym             bool `json:"gym,omitempty"`
	Balcony         bool `json:"balcony,omitempty"`
	Terrace         bool `json:"terrace,omitempty"`
	Garden          bool `json:"garden,omitempty"`
	Patio           bool `json:"patio,omitempty"`
}

// Scores holds the qualitative axes inferred by the external analysis
// collaborator, each in [0,1].
type Scores struct {
	Quietness      float64 `json:"quietness"`
	Luminosity     float64 `json:"luminosity"`
	Connectivity   float64 `json:"connectivity"`
	WFHSuitability float64 `json:"wfh_suitability"`
	Modernity      float64 `json:"modernity"`
	GreenSpaces    float64 `json:"green_spaces"`
}

// Listing is the canonical record of one property. Structural fields are owned
// by ingestion; scores, summary, tags and embeddings are attached later by the
// enrichment step and are immutable until the content hash changes.
type Listing struct {
	ID          string `json:"id,omitempty"`
	Source      string `json:"source"`
	ExternalID  string `json:"external_id"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`

	OperationType string  `json:"operation_type"`
	PriceOriginal float64 `json:"price"`
	Currency      string  `json:"currency"`
	PriceUSD      float64 `json:"price_usd"`
	PricePerM2USD float64 `json:"price_per_m2_usd,omitempty"`

	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood"`

	Rooms         int     `json:"rooms"`
	Bathrooms     int     `json:"bathrooms,omitempty"`
	SizeTotalM2   float64 `json:"size_total_m2,omitempty"`
	SizeCoveredM2 float64 `json:"size_covered_m2,omitempty"`
	AgeYears      int     `json:"age_years,omitempty"`
	Orientation   string  `json:"orientation,omitempty"`
	ParkingSpaces int     `json:"parking_spaces,omitempty"`

	Features Features `json:"features"`

	Scores    *Scores  `json:"scores,omitempty"`
	StyleTags []string `json:"style_tags,omitempty"`
	Summary   string   `json:"summary,omitempty"`

	FullEmbedding Embedding `json:"full_embedding,omitempty"`
	VibeEmbedding Embedding `json:"vibe_embedding,omitempty"`

	IngestedAt time.Time `json:"ingested_at,omitempty"`
	EnrichedAt time.Time `json:"enriched_at,omitempty"`
}

// Enriched reports whether the enrichment step has attached the full
// embedding. The vibe embedding is optional; listings the analysis
// collaborator never described carry none.
func (l *Listing) Enriched() bool {
	return len(l.FullEmbedding) > 0
}

// NewID derives the stable listing identity from its portal coordinates.
// (source, external id) is unique by invariant, so the derived id is too.
func NewID(source, externalID string) string {
	return strings.TrimSpace(source) + ":" + strings.TrimSpace(externalID)
}

const hashedDescriptionLimit = 500

// ContentHash fingerprints the listing content so re-scrapes of an unchanged
// listing can be dropped before they reach the store. The raw price string is
// hashed as published by the portal, before any normalization.
func ContentHash(title, rawPrice, description string) string {
	desc := description
	if runes := []rune(desc); len(runes) > hashedDescriptionLimit {
		desc = string(runes[:hashedDescriptionLimit])
	}
	sum := sha256.Sum256([]byte(title + "|" + rawPrice + "|" + desc))
	return fmt.Sprintf("%x", sum)[:16]
}

// NormalizePriceUSD converts a price to the base currency using the configured
// rate. USD prices pass through untouched.
func NormalizePriceUSD(price float64, currency string, arsPerUSD float64) float64 {
	if strings.EqualFold(strings.TrimSpace(currency), "USD") {
		return price
	}
	if arsPerUSD <= 0 {
		return 0
	}
	return round2(price / arsPerUSD)
}

// PricePerM2 returns the USD price per square meter, or 0 when the size is unknown.
func PricePerM2(priceUSD, sizeM2 float64) float64 {
	if sizeM2 <= 0 {
		return 0
	}
	return round2(priceUSD / sizeM2)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
