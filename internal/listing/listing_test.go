package listing

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	if got := NewID(" zonaprop ", " 54321 "); got != "zonaprop:54321" {
		t.Fatalf("unexpected id: %q", got)
	}
}

func TestContentHashStable(t *testing.T) {
	a := ContentHash("Depto 3 amb", "USD 145.000", "Luminoso, balcón al frente")
	b := ContentHash("Depto 3 amb", "USD 145.000", "Luminoso, balcón al frente")

	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %d", len(a))
	}
}

func TestContentHashSensitivity(t *testing.T) {
	base := ContentHash("Depto 3 amb", "USD 145.000", "desc")

	if ContentHash("Depto 3 amb", "USD 150.000", "desc") == base {
		t.Fatalf("price change must change the hash")
	}
	if ContentHash("Depto 2 amb", "USD 145.000", "desc") == base {
		t.Fatalf("title change must change the hash")
	}
}

func TestContentHashTruncatesDescription(t *testing.T) {
	head := strings.Repeat("á", 500)
	a := ContentHash("t", "p", head+"tail one")
	b := ContentHash("t", "p", head+"tail two")

	if a != b {
		t.Fatalf("description beyond 500 runes must not affect the hash")
	}
	if ContentHash("t", "p", head[:499]+"X") == a {
		t.Fatalf("description within 500 runes must affect the hash")
	}
}

func TestNormalizePriceUSD(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		currency  string
		arsPerUSD float64
		expect    float64
	}{
		{name: "usd passes through", price: 145000, currency: "USD", arsPerUSD: 1000, expect: 145000},
		{name: "usd case insensitive", price: 900, currency: "usd", arsPerUSD: 1000, expect: 900},
		{name: "ars converted", price: 950000, currency: "ARS", arsPerUSD: 1000, expect: 950},
		{name: "ars rounded to cents", price: 999999, currency: "ARS", arsPerUSD: 1000, expect: 1000},
		{name: "missing rate yields zero", price: 950000, currency: "ARS", arsPerUSD: 0, expect: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePriceUSD(tt.price, tt.currency, tt.arsPerUSD); got != tt.expect {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
		})
	}
}

func TestPricePerM2(t *testing.T) {
	if got := PricePerM2(145000, 72); got != 2013.89 {
		t.Fatalf("expected 2013.89, got %v", got)
	}
	if got := PricePerM2(145000, 0); got != 0 {
		t.Fatalf("unknown size must yield 0, got %v", got)
	}
}

func TestEnriched(t *testing.T) {
	l := &Listing{}
	if l.Enriched() {
		t.Fatalf("listing without embeddings must not be enriched")
	}

	l.VibeEmbedding = Embedding{0.3, 0.4}
	if l.Enriched() {
		t.Fatalf("a vibe embedding alone must not count as enriched")
	}

	l.FullEmbedding = Embedding{0.1, 0.2}
	if !l.Enriched() {
		t.Fatalf("listing with a full embedding must be enriched")
	}
}
