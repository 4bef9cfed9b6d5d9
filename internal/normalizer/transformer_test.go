package normalizer

import (
	"strings"
	"testing"

	"propcrawl/internal/models"
)

func TestTransform_DerivesPricePerSqm(t *testing.T) {
	tr := NewTransformer()

	listing := validListing()
	amount := 150000.0
	area := 75.0
	listing.Price.Amount = &amount
	listing.Features.TotalArea = &area

	tr.Transform(&listing)

	if listing.Price.PricePerSqm == nil {
		t.Fatal("Expected pricePerSqm to be derived")
	}

	if *listing.Price.PricePerSqm != 2000 {
		t.Errorf("pricePerSqm = %f, want 2000", *listing.Price.PricePerSqm)
	}
}

func TestTransform_NoPricePerSqmWithoutInputs(t *testing.T) {
	tr := NewTransformer()

	tests := []struct {
		name   string
		mutate func(*models.Listing)
	}{
		{"no amount", func(l *models.Listing) {
			area := 75.0
			l.Features.TotalArea = &area
		}},
		{"no area", func(l *models.Listing) {
			amount := 150000.0
			l.Price.Amount = &amount
		}},
		{"zero area", func(l *models.Listing) {
			amount := 150000.0
			area := 0.0
			l.Price.Amount = &amount
			l.Features.TotalArea = &area
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := validListing()
			tt.mutate(&listing)

			tr.Transform(&listing)

			if listing.Price.PricePerSqm != nil {
				t.Errorf("pricePerSqm should stay nil, got %f", *listing.Price.PricePerSqm)
			}
		})
	}
}

func TestTransform_CleansText(t *testing.T) {
	tr := NewTransformer()

	listing := validListing()
	listing.Title = "  Departamento   2  ambientes \n"
	desc := " Muy  luminoso.\n\nCocina integrada. "
	listing.Description = &desc

	tr.Transform(&listing)

	if listing.Title != "Departamento 2 ambientes" {
		t.Errorf("title = %q", listing.Title)
	}

	if *listing.Description != "Muy luminoso. Cocina integrada." {
		t.Errorf("description = %q", *listing.Description)
	}
}

func TestTransform_TruncatesLongDescription(t *testing.T) {
	tr := NewTransformer()

	listing := validListing()
	desc := strings.Repeat("a", maxDescriptionLen+100)
	listing.Description = &desc

	tr.Transform(&listing)

	// Truncate appends an ellipsis marker after cutting at the limit.
	if got := len(*listing.Description); got > maxDescriptionLen+3 {
		t.Errorf("description length = %d, want <= %d", got, maxDescriptionLen+3)
	}
}

func TestTransform_BlankDescriptionDropped(t *testing.T) {
	tr := NewTransformer()

	listing := validListing()
	desc := "   \n\t "
	listing.Description = &desc

	tr.Transform(&listing)

	if listing.Description != nil {
		t.Errorf("blank description should become nil, got %q", *listing.Description)
	}
}

func TestTransform_DedupesAmenities(t *testing.T) {
	tr := NewTransformer()

	listing := validListing()
	listing.Features.Amenities = []string{"Pileta", "pileta", "  Parrilla ", "Parrilla", "Gimnasio"}

	tr.Transform(&listing)

	want := []string{"Pileta", "Parrilla", "Gimnasio"}

	if len(listing.Features.Amenities) != len(want) {
		t.Fatalf("amenities = %v, want %v", listing.Features.Amenities, want)
	}

	for i, a := range want {
		if listing.Features.Amenities[i] != a {
			t.Errorf("amenities[%d] = %q, want %q", i, listing.Features.Amenities[i], a)
		}
	}
}
