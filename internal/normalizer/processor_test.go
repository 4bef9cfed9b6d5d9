package normalizer

import (
	"errors"
	"testing"
)

func TestProcess_ValidListing(t *testing.T) {
	p := NewProcessor()

	listing := validListing()
	amount := 90000.0
	area := 45.0
	listing.Price.Amount = &amount
	listing.Features.TotalArea = &area

	processed, err := p.Process(listing)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if processed.Price.PricePerSqm == nil || *processed.Price.PricePerSqm != 2000 {
		t.Errorf("pricePerSqm = %v, want 2000", processed.Price.PricePerSqm)
	}

	// Input stays untouched.
	if listing.Price.PricePerSqm != nil {
		t.Error("Process must not mutate its input")
	}
}

func TestProcess_InvalidListing(t *testing.T) {
	p := NewProcessor()

	listing := validListing()
	listing.Title = ""

	_, err := p.Process(listing)
	if !errors.Is(err, ErrMissingTitle) {
		t.Errorf("Process() error = %v, want %v", err, ErrMissingTitle)
	}
}
