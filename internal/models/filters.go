package models

// SearchFilters is the plain struct of optional search bounds passed from
// the API boundary into each adapter's URL builder. Absent fields are
// omitted from built URLs, never encoded as sentinel values.
type SearchFilters struct {
	PropertyType  *PropertyType  `json:"propertyType,omitempty"`
	OperationType *OperationType `json:"operationType,omitempty"`
	MinPrice      *float64       `json:"minPrice,omitempty"`
	MaxPrice      *float64       `json:"maxPrice,omitempty"`
	Currency      *Currency      `json:"currency,omitempty"`
	MinBedrooms   *int           `json:"minBedrooms,omitempty"`
	MaxBedrooms   *int           `json:"maxBedrooms,omitempty"`
	MinBathrooms  *int           `json:"minBathrooms,omitempty"`
	MaxBathrooms  *int           `json:"maxBathrooms,omitempty"`
	MinArea       *float64       `json:"minArea,omitempty"`
	MaxArea       *float64       `json:"maxArea,omitempty"`
	Province      *string        `json:"province,omitempty"`
	City          *string        `json:"city,omitempty"`
	Neighborhood  *string        `json:"neighborhood,omitempty"`
}
