// Package models defines the data structures shared by the crawler,
// reconciler, and storage layers.
package models

import "time"

// PropertyType classifies the kind of real-estate unit.
type PropertyType string

// Property types recognized across all sources.
const (
	PropertyApartment PropertyType = "apartment"
	PropertyHouse     PropertyType = "house"
	PropertyCommerce  PropertyType = "commercial"
	PropertyLand      PropertyType = "land"
	PropertyOffice    PropertyType = "office"
	PropertyWarehouse PropertyType = "warehouse"
)

// OperationType is the transaction a listing offers.
type OperationType string

// Operation types.
const (
	OperationSale          OperationType = "sale"
	OperationRent          OperationType = "rent"
	OperationTemporaryRent OperationType = "temporary_rent"
)

// Currency is an ISO 4217 code accepted by the pipeline.
type Currency string

// Supported currencies.
const (
	CurrencyARS Currency = "ARS"
	CurrencyUSD Currency = "USD"
)

// PropertyStatus is the lifecycle state of a listing.
type PropertyStatus string

// Listing statuses.
const (
	StatusActive   PropertyStatus = "active"
	StatusInactive PropertyStatus = "inactive"
	StatusSold     PropertyStatus = "sold"
	StatusRented   PropertyStatus = "rented"
)

// Location holds the geographic fields of a listing. Country is the only
// required field and defaults to Argentina.
type Location struct {
	Country      string   `json:"country"`
	Province     *string  `json:"province,omitempty"`
	City         *string  `json:"city,omitempty"`
	Neighborhood *string  `json:"neighborhood,omitempty"`
	Address      *string  `json:"address,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	PostalCode   *string  `json:"postalCode,omitempty"`
}

// Features holds the physical characteristics of a listing. All fields are
// optional; an unknown count stays nil rather than zero so that absence is
// never mistaken for an extracted value.
type Features struct {
	Bedrooms      *int     `json:"bedrooms,omitempty"`
	Bathrooms     *int     `json:"bathrooms,omitempty"`
	ParkingSpaces *int     `json:"parkingSpaces,omitempty"`
	TotalArea     *float64 `json:"totalArea,omitempty"`
	CoveredArea   *float64 `json:"coveredArea,omitempty"`
	Floor         *int     `json:"floor,omitempty"`
	TotalFloors   *int     `json:"totalFloors,omitempty"`
	AgeYears      *int     `json:"ageYears,omitempty"`
	Amenities     []string `json:"amenities,omitempty"`
	Condition     *string  `json:"condition,omitempty"`
}

// Price holds the pricing fields of a listing.
type Price struct {
	Amount           *float64 `json:"amount,omitempty"`
	Currency         Currency `json:"currency"`
	PricePerSqm      *float64 `json:"pricePerSqm,omitempty"`
	Expenses         *float64 `json:"expenses,omitempty"`
	ExpensesCurrency Currency `json:"expensesCurrency"`
}

// Contact holds the seller contact fields of a listing.
type Contact struct {
	AgentName  *string `json:"agentName,omitempty"`
	AgencyName *string `json:"agencyName,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	Website    *string `json:"website,omitempty"`
}

// Media holds the image and tour URLs of a listing.
type Media struct {
	MainImage   *string  `json:"mainImage,omitempty"`
	Gallery     []string `json:"gallery,omitempty"`
	FloorPlan   *string  `json:"floorPlan,omitempty"`
	VirtualTour *string  `json:"virtualTour,omitempty"`
}

// Listing is the canonical, source-agnostic record every adapter produces.
// SourceURL is the natural key; ExternalID plus SourceName form an additional
// lookup key when the source assigns its own identifiers.
type Listing struct {
	ExternalID    *string        `json:"externalId,omitempty"`
	SourceURL     string         `json:"sourceUrl"`
	SourceName    string         `json:"sourceName"`
	Title         string         `json:"title"`
	Description   *string        `json:"description,omitempty"`
	PropertyType  PropertyType   `json:"propertyType"`
	OperationType OperationType  `json:"operationType"`
	Status        PropertyStatus `json:"status"`
	Location      Location       `json:"location"`
	Features      Features       `json:"features"`
	Price         Price          `json:"price"`
	Contact       Contact        `json:"contact"`
	Media         Media          `json:"media"`

	// RawData carries adapter-specific provenance for audit. The reconciler
	// stores it verbatim and never interprets it.
	RawData map[string]any `json:"rawData,omitempty"`
}

// NewListing returns a listing with the domain defaults applied. The
// defaults form a storable listing on their own; adapters override the
// type, operation and currency with whatever the page states.
func NewListing(sourceURL, sourceName string) Listing {
	return Listing{
		SourceURL:     sourceURL,
		SourceName:    sourceName,
		PropertyType:  PropertyApartment,
		OperationType: OperationSale,
		Status:        StatusActive,
		Location:      Location{Country: "Argentina"},
		Price:         Price{Currency: CurrencyARS, ExpensesCurrency: CurrencyARS},
		RawData:       map[string]any{},
	}
}

// StoredProperty is the persisted superset of Listing. FirstSeen is set once
// at insert; LastUpdated moves on every accepted change; LastChecked moves on
// every revisit. IsFeatured and IsVerified are owned by downstream curation
// and never written by the crawler.
type StoredProperty struct {
	ID          int64     `json:"id"`
	Listing     Listing   `json:"listing"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastUpdated time.Time `json:"lastUpdated"`
	LastChecked time.Time `json:"lastChecked"`
	IsFeatured  bool      `json:"isFeatured"`
	IsVerified  bool      `json:"isVerified"`
}

// ChangeEntry records one field-level change detected on an update.
// Entries are append-only.
type ChangeEntry struct {
	PropertyID int64     `json:"propertyId"`
	FieldName  string    `json:"fieldName"`
	OldValue   *string   `json:"oldValue,omitempty"`
	NewValue   *string   `json:"newValue,omitempty"`
	ChangedAt  time.Time `json:"changedAt"`
}

// Stub is the minimal record extracted from a results page before the
// detail page is fetched.
type Stub struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	PriceText    string `json:"priceText"`
	LocationText string `json:"locationText"`
}
