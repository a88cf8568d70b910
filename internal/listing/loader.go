package listing

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ScrapedListing mirrors one record of the scraper collaborator output.
// Numeric fields are kept as the raw portal strings; normalization happens
// when the record is turned into a Listing.
type ScrapedListing struct {
	Source      string `json:"source"`
	ExternalID  string `json:"external_id"`
	URL         string `json:"url,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	Price         string `json:"price"`
	Currency      string `json:"currency"`
	OperationType string `json:"operation_type,omitempty"`

	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	Neighborhood string `json:"neighborhood"`

	Rooms         string `json:"rooms"`
	Bathrooms     string `json:"bathrooms,omitempty"`
	SizeTotal     string `json:"size_total,omitempty"`
	SizeCovered   string `json:"size_covered,omitempty"`
	Age           string `json:"age,omitempty"`
	Orientation   string `json:"orientation,omitempty"`
	ParkingSpaces int    `json:"parking_spaces,omitempty"`

	Features Features `json:"features"`

	// Optional output of the external analysis collaborator.
	Scores    *Scores  `json:"scores,omitempty"`
	StyleTags []string `json:"style_tags,omitempty"`
	Summary   string   `json:"summary,omitempty"`

	ScrapedAt time.Time `json:"scraped_at,omitempty"`
}

// LoadFile reads a scraper output file and normalizes every record.
func LoadFile(path string, arsPerUSD float64) ([]*Listing, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scraped listings file: %w", err)
	}

	var scraped []*ScrapedListing
	if err := json.Unmarshal(b, &scraped); err != nil {
		return nil, fmt.Errorf("unmarshal scraped listings: %w", err)
	}

	listings := make([]*Listing, 0, len(scraped))
	for i, s := range scraped {
		l, err := s.ToListing(arsPerUSD)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// ToListing normalizes a scraped record into a canonical Listing.
func (s *ScrapedListing) ToListing(arsPerUSD float64) (*Listing, error) {
	source := strings.TrimSpace(s.Source)
	externalID := strings.TrimSpace(s.ExternalID)
	if source == "" || externalID == "" {
		return nil, fmt.Errorf("source and external_id are required")
	}

	price := parseAmount(s.Price)
	if price <= 0 {
		return nil, fmt.Errorf("listing %s:%s has no parseable price %q", source, externalID, s.Price)
	}

	operation := strings.ToLower(strings.TrimSpace(s.OperationType))
	if operation == "" {
		operation = OperationRental
	}
	if operation != OperationRental && operation != OperationSale {
		return nil, fmt.Errorf("listing %s:%s has unknown operation type %q", source, externalID, s.OperationType)
	}

	ingestedAt := s.ScrapedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	priceUSD := NormalizePriceUSD(price, s.Currency, arsPerUSD)
	sizeTotal := parseAmount(s.SizeTotal)

	return &Listing{
		ID:            NewID(source, externalID),
		Source:        source,
		ExternalID:    externalID,
		URL:           s.URL,
		Title:         s.Title,
		Description:   s.Description,
		ContentHash:   ContentHash(s.Title, s.Price, s.Description),
		OperationType: operation,
		PriceOriginal: price,
		Currency:      strings.ToUpper(strings.TrimSpace(s.Currency)),
		PriceUSD:      priceUSD,
		PricePerM2USD: PricePerM2(priceUSD, sizeTotal),
		Region:        s.Region,
		City:          s.City,
		Neighborhood:  strings.TrimSpace(s.Neighborhood),
		Rooms:         int(parseAmount(s.Rooms)),
		Bathrooms:     int(parseAmount(s.Bathrooms)),
		SizeTotalM2:   sizeTotal,
		SizeCoveredM2: parseAmount(s.SizeCovered),
		AgeYears:      int(parseAmount(s.Age)),
		Orientation:   strings.TrimSpace(s.Orientation),
		ParkingSpaces: s.ParkingSpaces,
		Features:      s.Features,
		Scores:        s.Scores,
		StyleTags:     s.StyleTags,
		Summary:       s.Summary,
		IngestedAt:    ingestedAt,
	}, nil
}

// parseAmount extracts a number from a raw portal string such as "U$S 1.200",
// "45 m²" or "3". Thousand separators in portal output use dots, so a dot is
// only kept as a decimal point when followed by at most two digits.
func parseAmount(raw string) float64 {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}

	cleaned := strings.ReplaceAll(b.String(), ",", ".")
	parts := strings.Split(cleaned, ".")
	if len(parts) > 1 {
		last := parts[len(parts)-1]
		if len(last) <= 2 && len(parts[0]) > 0 {
			cleaned = strings.Join(parts[:len(parts)-1], "") + "." + last
		} else {
			cleaned = strings.Join(parts, "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
