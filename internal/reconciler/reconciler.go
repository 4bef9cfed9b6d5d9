// Package reconciler decides, for each crawled listing, whether stored
// state needs an insert, an update with field-level history, or just a
// revisit stamp.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"propcrawl/internal/models"
	"propcrawl/internal/storage"
)

// Action is the write decision for one listing.
type Action string

// Reconciliation actions.
const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionNoop   Action = "noop"
)

// ErrKeyConflict is returned when a listing's (externalId, sourceName) key
// and its sourceUrl key resolve to two different stored records. The
// conflict is surfaced to the caller instead of silently picking one row.
var ErrKeyConflict = errors.New("listing keys resolve to different stored records")

// ReconciliationError wraps a storage failure during reconciliation.
type ReconciliationError struct {
	SourceURL string
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconcile %s: %v", e.SourceURL, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

// Outcome reports what one reconciliation did.
type Outcome struct {
	Action   Action
	Property *models.StoredProperty
	Changes  []models.ChangeEntry
}

// Reconciler compares crawled listings against stored state. Safe for
// concurrent use; reconciliations of the same source URL are serialized.
type Reconciler struct {
	store storage.Store
	locks *keyedLocks
	now   func() time.Time
}

// New creates a reconciler over the given store.
func New(store storage.Store) *Reconciler {
	return &Reconciler{
		store: store,
		locks: newKeyedLocks(),
		now:   time.Now,
	}
}

// Reconcile looks the listing up, decides the action, and persists it.
// A revisit always stamps lastChecked, even when nothing else changed.
func (r *Reconciler) Reconcile(ctx context.Context, listing models.Listing) (Outcome, error) {
	// Two adapters can race on one URL when sources share aggregator
	// listings, so same-URL reconciliations run one at a time.
	unlock := r.locks.lock(listing.SourceURL)
	defer unlock()

	stored, err := r.lookup(ctx, listing)
	if err != nil {
		if errors.Is(err, ErrKeyConflict) {
			return Outcome{}, err
		}

		return Outcome{}, &ReconciliationError{SourceURL: listing.SourceURL, Err: err}
	}

	now := r.now()

	if stored == nil {
		inserted, err := r.store.Insert(ctx, listing, now)
		if err != nil {
			return Outcome{}, &ReconciliationError{SourceURL: listing.SourceURL, Err: err}
		}

		return Outcome{Action: ActionInsert, Property: inserted}, nil
	}

	changes := fieldChanges(stored, listing, now)

	if len(changes) == 0 {
		if err := r.store.TouchLastChecked(ctx, stored.ID, now); err != nil {
			return Outcome{}, &ReconciliationError{SourceURL: listing.SourceURL, Err: err}
		}

		stored.LastChecked = now

		return Outcome{Action: ActionNoop, Property: stored}, nil
	}

	merged := mergeListing(stored.Listing, listing)

	if err := r.store.ApplyChanges(ctx, stored.ID, merged, changes, now); err != nil {
		return Outcome{}, &ReconciliationError{SourceURL: listing.SourceURL, Err: err}
	}

	stored.Listing = merged
	stored.LastUpdated = now
	stored.LastChecked = now

	return Outcome{Action: ActionUpdate, Property: stored, Changes: changes}, nil
}

// lookup resolves the stored record for a listing. The external key takes
// precedence; when both keys hit different rows the conflict is surfaced.
func (r *Reconciler) lookup(ctx context.Context, listing models.Listing) (*models.StoredProperty, error) {
	var byKey *models.StoredProperty

	if listing.ExternalID != nil {
		found, err := r.store.FindByExternalID(ctx, *listing.ExternalID, listing.SourceName)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}

		byKey = found
	}

	byURL, err := r.store.FindByURL(ctx, listing.SourceURL)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if byKey != nil && byURL != nil && byKey.ID != byURL.ID {
		return nil, fmt.Errorf("%w: external key row %d, url row %d", ErrKeyConflict, byKey.ID, byURL.ID)
	}

	if byKey != nil {
		return byKey, nil
	}

	return byURL, nil
}

// fieldChanges compares the fixed field set: price amount, price currency,
// expenses, status, description. A field changes only when the new value is
// present and differs; an absent value never erases a stored one.
func fieldChanges(stored *models.StoredProperty, listing models.Listing, now time.Time) []models.ChangeEntry {
	var changes []models.ChangeEntry

	entry := func(field string, oldVal, newVal *string) {
		changes = append(changes, models.ChangeEntry{
			PropertyID: stored.ID,
			FieldName:  field,
			OldValue:   oldVal,
			NewValue:   newVal,
			ChangedAt:  now,
		})
	}

	old := stored.Listing

	if listing.Price.Amount != nil && !floatEqual(old.Price.Amount, listing.Price.Amount) {
		entry("price_amount", formatFloat(old.Price.Amount), formatFloat(listing.Price.Amount))
	}

	if listing.Price.Currency != "" && listing.Price.Currency != old.Price.Currency {
		entry("price_currency", strPtr(string(old.Price.Currency)), strPtr(string(listing.Price.Currency)))
	}

	if listing.Price.Expenses != nil && !floatEqual(old.Price.Expenses, listing.Price.Expenses) {
		entry("expenses", formatFloat(old.Price.Expenses), formatFloat(listing.Price.Expenses))
	}

	if listing.Status != "" && listing.Status != old.Status {
		entry("status", strPtr(string(old.Status)), strPtr(string(listing.Status)))
	}

	if listing.Description != nil && (old.Description == nil || *old.Description != *listing.Description) {
		entry("description", old.Description, listing.Description)
	}

	return changes
}

// mergeListing overlays the incoming listing onto the stored one. Present
// values win; absent values keep what is already known.
func mergeListing(stored, incoming models.Listing) models.Listing {
	merged := incoming

	if merged.ExternalID == nil {
		merged.ExternalID = stored.ExternalID
	}

	if merged.Title == "" {
		merged.Title = stored.Title
	}

	if merged.Description == nil {
		merged.Description = stored.Description
	}

	if merged.Price.Amount == nil {
		merged.Price.Amount = stored.Price.Amount
	}

	if merged.Price.PricePerSqm == nil {
		merged.Price.PricePerSqm = stored.Price.PricePerSqm
	}

	if merged.Price.Expenses == nil {
		merged.Price.Expenses = stored.Price.Expenses
	}

	mergeLocation(&merged.Location, stored.Location)
	mergeFeatures(&merged.Features, stored.Features)
	mergeContact(&merged.Contact, stored.Contact)
	mergeMedia(&merged.Media, stored.Media)

	if len(merged.RawData) == 0 {
		merged.RawData = stored.RawData
	}

	return merged
}

func mergeLocation(dst *models.Location, prev models.Location) {
	if dst.Province == nil {
		dst.Province = prev.Province
	}

	if dst.City == nil {
		dst.City = prev.City
	}

	if dst.Neighborhood == nil {
		dst.Neighborhood = prev.Neighborhood
	}

	if dst.Address == nil {
		dst.Address = prev.Address
	}

	if dst.Latitude == nil {
		dst.Latitude = prev.Latitude
	}

	if dst.Longitude == nil {
		dst.Longitude = prev.Longitude
	}

	if dst.PostalCode == nil {
		dst.PostalCode = prev.PostalCode
	}
}

func mergeFeatures(dst *models.Features, prev models.Features) {
	if dst.Bedrooms == nil {
		dst.Bedrooms = prev.Bedrooms
	}

	if dst.Bathrooms == nil {
		dst.Bathrooms = prev.Bathrooms
	}

	if dst.ParkingSpaces == nil {
		dst.ParkingSpaces = prev.ParkingSpaces
	}

	if dst.TotalArea == nil {
		dst.TotalArea = prev.TotalArea
	}

	if dst.CoveredArea == nil {
		dst.CoveredArea = prev.CoveredArea
	}

	if dst.AgeYears == nil {
		dst.AgeYears = prev.AgeYears
	}

	if dst.Floor == nil {
		dst.Floor = prev.Floor
	}

	if dst.TotalFloors == nil {
		dst.TotalFloors = prev.TotalFloors
	}

	if dst.Condition == nil {
		dst.Condition = prev.Condition
	}

	if len(dst.Amenities) == 0 {
		dst.Amenities = prev.Amenities
	}
}

func mergeContact(dst *models.Contact, prev models.Contact) {
	if dst.AgencyName == nil {
		dst.AgencyName = prev.AgencyName
	}

	if dst.AgentName == nil {
		dst.AgentName = prev.AgentName
	}

	if dst.Phone == nil {
		dst.Phone = prev.Phone
	}

	if dst.Email == nil {
		dst.Email = prev.Email
	}

	if dst.Website == nil {
		dst.Website = prev.Website
	}
}

func mergeMedia(dst *models.Media, prev models.Media) {
	if dst.MainImage == nil {
		dst.MainImage = prev.MainImage
	}

	if len(dst.Gallery) == 0 {
		dst.Gallery = prev.Gallery
	}

	if dst.FloorPlan == nil {
		dst.FloorPlan = prev.FloorPlan
	}

	if dst.VirtualTour == nil {
		dst.VirtualTour = prev.VirtualTour
	}
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

func formatFloat(v *float64) *string {
	if v == nil {
		return nil
	}

	s := strconv.FormatFloat(*v, 'f', -1, 64)

	return &s
}

func strPtr(s string) *string { return &s }
