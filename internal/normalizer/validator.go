package normalizer

import (
	"errors"
	"fmt"

	"propcrawl/internal/models"
)

// Validation errors.
var (
	ErrMissingSourceURL    = errors.New("listing has no source URL")
	ErrMissingSourceName   = errors.New("listing has no source name")
	ErrMissingTitle        = errors.New("listing has no title")
	ErrInvalidPropertyType = errors.New("unknown property type")
	ErrInvalidOperation    = errors.New("unknown operation type")
	ErrInvalidCurrency     = errors.New("unknown currency")
	ErrNegativePrice       = errors.New("price amount is negative")
	ErrNegativeArea        = errors.New("area is negative")
)

var validPropertyTypes = map[models.PropertyType]bool{
	models.PropertyApartment: true,
	models.PropertyHouse:     true,
	models.PropertyLand:      true,
	models.PropertyCommerce:  true,
	models.PropertyOffice:    true,
	models.PropertyWarehouse: true,
}

var validOperations = map[models.OperationType]bool{
	models.OperationSale:          true,
	models.OperationRent:          true,
	models.OperationTemporaryRent: true,
}

var validCurrencies = map[models.Currency]bool{
	models.CurrencyARS: true,
	models.CurrencyUSD: true,
}

// Validator checks that an extracted listing is complete enough to store.
type Validator struct{}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks if a listing meets the minimum storage requirements.
func (v *Validator) Validate(listing *models.Listing) error {
	if listing.SourceURL == "" {
		return ErrMissingSourceURL
	}

	if listing.SourceName == "" {
		return ErrMissingSourceName
	}

	if listing.Title == "" {
		return ErrMissingTitle
	}

	if !validPropertyTypes[listing.PropertyType] {
		return fmt.Errorf("%w: %q", ErrInvalidPropertyType, listing.PropertyType)
	}

	if !validOperations[listing.OperationType] {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, listing.OperationType)
	}

	if !validCurrencies[listing.Price.Currency] {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, listing.Price.Currency)
	}

	if listing.Price.Amount != nil && *listing.Price.Amount < 0 {
		return fmt.Errorf("%w: %f", ErrNegativePrice, *listing.Price.Amount)
	}

	if listing.Features.TotalArea != nil && *listing.Features.TotalArea < 0 {
		return fmt.Errorf("%w: total %f", ErrNegativeArea, *listing.Features.TotalArea)
	}

	if listing.Features.CoveredArea != nil && *listing.Features.CoveredArea < 0 {
		return fmt.Errorf("%w: covered %f", ErrNegativeArea, *listing.Features.CoveredArea)
	}

	return nil
}
