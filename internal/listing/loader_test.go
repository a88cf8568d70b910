package listing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestToListingNormalizesPortalStrings(t *testing.T) {
	scraped := &ScrapedListing{
		Source:       "zonaprop",
		ExternalID:   "54321",
		Title:        "Depto 3 amb con balcón",
		Price:        "U$S 145.000",
		Currency:     "usd",
		Neighborhood: " Palermo ",
		Rooms:        "3",
		SizeTotal:    "72 m²",
	}

	l, err := scraped.ToListing(1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if l.ID != "zonaprop:54321" {
		t.Fatalf("unexpected id: %q", l.ID)
	}
	if l.PriceOriginal != 145000 {
		t.Fatalf("expected price 145000, got %v", l.PriceOriginal)
	}
	if l.Currency != "USD" {
		t.Fatalf("expected currency USD, got %q", l.Currency)
	}
	if l.PriceUSD != 145000 {
		t.Fatalf("expected price usd 145000, got %v", l.PriceUSD)
	}
	if l.Neighborhood != "Palermo" {
		t.Fatalf("expected trimmed neighborhood, got %q", l.Neighborhood)
	}
	if l.Rooms != 3 || l.SizeTotalM2 != 72 {
		t.Fatalf("unexpected rooms/size: %d / %v", l.Rooms, l.SizeTotalM2)
	}
	if l.OperationType != OperationRental {
		t.Fatalf("missing operation must default to rental, got %q", l.OperationType)
	}
	if l.ContentHash == "" {
		t.Fatalf("content hash must be computed")
	}
	if l.IngestedAt.IsZero() {
		t.Fatalf("ingested_at must be set")
	}
}

func TestToListingConvertsARS(t *testing.T) {
	scraped := &ScrapedListing{
		Source:     "argenprop",
		ExternalID: "9",
		Price:      "$ 950.000,50",
		Currency:   "ARS",
	}

	l, err := scraped.ToListing(1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.PriceOriginal != 950000.50 {
		t.Fatalf("expected 950000.50, got %v", l.PriceOriginal)
	}
	if l.PriceUSD != 950 {
		t.Fatalf("expected 950 usd, got %v", l.PriceUSD)
	}
}

func TestToListingRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name    string
		scraped *ScrapedListing
	}{
		{
			name:    "missing identity",
			scraped: &ScrapedListing{Price: "100", Currency: "USD"},
		},
		{
			name:    "unparseable price",
			scraped: &ScrapedListing{Source: "s", ExternalID: "1", Price: "consultar"},
		},
		{
			name:    "unknown operation",
			scraped: &ScrapedListing{Source: "s", ExternalID: "1", Price: "100", OperationType: "lease"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.scraped.ToListing(1000); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw    string
		expect float64
	}{
		{raw: "U$S 1.200", expect: 1200},
		{raw: "$ 950.000", expect: 950000},
		{raw: "45 m²", expect: 45},
		{raw: "72,5", expect: 72.5},
		{raw: "1.234.567", expect: 1234567},
		{raw: "3", expect: 3},
		{raw: "", expect: 0},
		{raw: "a consultar", expect: 0},
	}

	for _, tt := range tests {
		if got := parseAmount(tt.raw); got != tt.expect {
			t.Fatalf("parseAmount(%q): expected %v, got %v", tt.raw, tt.expect, got)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped.json")
	payload := `[
		{"source": "zonaprop", "external_id": "1", "title": "Depto", "price": "USD 100.000", "currency": "USD", "neighborhood": "Palermo", "rooms": "2"},
		{"source": "zonaprop", "external_id": "2", "title": "PH", "price": "$ 500.000", "currency": "ARS", "neighborhood": "Caballito", "rooms": "3"}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	listings, err := LoadFile(path, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[1].PriceUSD != 500 {
		t.Fatalf("expected converted price 500, got %v", listings[1].PriceUSD)
	}
}

func TestLoadFileRejectsBadRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped.json")
	payload := `[{"source": "zonaprop", "external_id": "1", "price": "consultar"}]`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if _, err := LoadFile(path, 1000); err == nil {
		t.Fatalf("expected an error for unparseable price")
	}
}
