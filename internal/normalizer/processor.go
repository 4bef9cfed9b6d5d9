// Package normalizer validates and finalizes extracted listings before
// they reach the reconciler.
package normalizer

import (
	"fmt"

	"propcrawl/internal/models"
)

// Processor runs the validation and finalization pass over one listing.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a new processor instance.
func NewProcessor() *Processor {
	return &Processor{
		validator:   NewValidator(),
		transformer: NewTransformer(),
	}
}

// Process validates a listing and returns its finalized form. The input is
// not mutated.
func (p *Processor) Process(listing models.Listing) (models.Listing, error) {
	if err := p.validator.Validate(&listing); err != nil {
		return models.Listing{}, fmt.Errorf("validation failed: %w", err)
	}

	p.transformer.Transform(&listing)

	return listing, nil
}
