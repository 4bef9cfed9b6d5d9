package normalizer

import (
	"math"
	"strings"

	"propcrawl/internal/models"
	"propcrawl/pkg/textutil"
)

// maxDescriptionLen caps stored descriptions; portals occasionally dump
// multi-kilobyte SEO text into the description block.
const maxDescriptionLen = 5000

// Transformer finalizes an extracted listing into its storable shape.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform cleans text fields, deduplicates amenities, and derives the
// price-per-square-meter figure when both inputs are known.
func (t *Transformer) Transform(listing *models.Listing) {
	listing.Title = textutil.CleanText(listing.Title)

	if listing.Description != nil {
		desc := textutil.Truncate(textutil.CleanText(*listing.Description), maxDescriptionLen)
		if desc == "" {
			listing.Description = nil
		} else {
			listing.Description = &desc
		}
	}

	listing.Features.Amenities = dedupeAmenities(listing.Features.Amenities)

	if listing.Price.Amount != nil && listing.Features.TotalArea != nil && *listing.Features.TotalArea > 0 {
		perSqm := math.Round(*listing.Price.Amount / *listing.Features.TotalArea)
		listing.Price.PricePerSqm = &perSqm
	}
}

// dedupeAmenities removes duplicate amenity labels, case-insensitively,
// preserving first-seen order.
func dedupeAmenities(amenities []string) []string {
	if len(amenities) == 0 {
		return amenities
	}

	seen := make(map[string]bool, len(amenities))
	out := make([]string, 0, len(amenities))

	for _, a := range amenities {
		key := strings.ToLower(textutil.CleanText(a))
		if key == "" || seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, textutil.CleanText(a))
	}

	return out
}
