package normalizer

import (
	"errors"
	"testing"

	"propcrawl/internal/models"
)

func validListing() models.Listing {
	listing := models.NewListing("https://www.zonaprop.com.ar/depto-123.html", "zonaprop.com.ar")
	listing.Title = "Departamento 2 ambientes"

	return listing
}

func TestValidate_Valid(t *testing.T) {
	v := NewValidator()

	listing := validListing()
	if err := v.Validate(&listing); err != nil {
		t.Errorf("Valid listing rejected: %v", err)
	}
}

// The constructor's defaults must satisfy the validator on their own, so
// an adapter that fills in nothing beyond the title still yields a
// storable listing.
func TestValidate_ConstructorDefaults(t *testing.T) {
	v := NewValidator()

	listing := models.NewListing("https://www.argenprop.com/depto-9.html", "argenprop.com")
	listing.Title = "Monoambiente en Belgrano"

	if err := v.Validate(&listing); err != nil {
		t.Errorf("Constructor defaults rejected: %v", err)
	}

	if listing.PropertyType != models.PropertyApartment || listing.OperationType != models.OperationSale {
		t.Errorf("defaults = %s/%s, want apartment/sale", listing.PropertyType, listing.OperationType)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.Listing)
		wantErr error
	}{
		{
			name:    "no source URL",
			mutate:  func(l *models.Listing) { l.SourceURL = "" },
			wantErr: ErrMissingSourceURL,
		},
		{
			name:    "no source name",
			mutate:  func(l *models.Listing) { l.SourceName = "" },
			wantErr: ErrMissingSourceName,
		},
		{
			name:    "no title",
			mutate:  func(l *models.Listing) { l.Title = "" },
			wantErr: ErrMissingTitle,
		},
		{
			name:    "unknown property type",
			mutate:  func(l *models.Listing) { l.PropertyType = "castle" },
			wantErr: ErrInvalidPropertyType,
		},
		{
			name:    "unknown operation",
			mutate:  func(l *models.Listing) { l.OperationType = "barter" },
			wantErr: ErrInvalidOperation,
		},
		{
			name:    "unknown currency",
			mutate:  func(l *models.Listing) { l.Price.Currency = "EUR" },
			wantErr: ErrInvalidCurrency,
		},
		{
			name: "negative price",
			mutate: func(l *models.Listing) {
				amount := -1.0
				l.Price.Amount = &amount
			},
			wantErr: ErrNegativePrice,
		},
		{
			name: "negative area",
			mutate: func(l *models.Listing) {
				area := -10.0
				l.Features.TotalArea = &area
			},
			wantErr: ErrNegativeArea,
		},
	}

	v := NewValidator()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := validListing()
			tt.mutate(&listing)

			err := v.Validate(&listing)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NilOptionalsAccepted(t *testing.T) {
	v := NewValidator()

	listing := validListing()
	listing.Price.Amount = nil
	listing.Features.TotalArea = nil
	listing.Description = nil

	if err := v.Validate(&listing); err != nil {
		t.Errorf("Listing with absent optionals rejected: %v", err)
	}
}
