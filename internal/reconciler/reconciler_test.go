package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"propcrawl/internal/models"
	"propcrawl/internal/storage"
)

func testListing(sourceURL string) models.Listing {
	listing := models.NewListing(sourceURL, "zonaprop.com.ar")
	listing.Title = "Departamento en Palermo"

	return listing
}

func withPrice(listing models.Listing, amount float64, currency models.Currency) models.Listing {
	listing.Price.Amount = &amount
	listing.Price.Currency = currency

	return listing
}

// fixedClock steps the reconciler clock forward on demand.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestReconciler() (*Reconciler, *storage.MemoryStore, *fixedClock) {
	store := storage.NewMemoryStore()
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	r := New(store)
	r.now = clock.Now

	return r, store, clock
}

func TestReconcile_Insert(t *testing.T) {
	r, _, clock := newTestReconciler()
	ctx := context.Background()

	listing := withPrice(testListing("https://x/1"), 100000, models.CurrencyUSD)

	outcome, err := r.Reconcile(ctx, listing)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if outcome.Action != ActionInsert {
		t.Errorf("action = %s, want insert", outcome.Action)
	}

	if outcome.Property == nil || outcome.Property.ID == 0 {
		t.Fatal("Insert must return the stored property")
	}

	now := clock.Now()
	p := outcome.Property

	if !p.FirstSeen.Equal(now) || !p.LastUpdated.Equal(now) || !p.LastChecked.Equal(now) {
		t.Error("firstSeen, lastUpdated, and lastChecked must all be set to now")
	}
}

func TestReconcile_Idempotence(t *testing.T) {
	r, _, clock := newTestReconciler()
	ctx := context.Background()

	listing := withPrice(testListing("https://x/1"), 100000, models.CurrencyUSD)

	first, err := r.Reconcile(ctx, listing)
	if err != nil {
		t.Fatalf("First reconcile failed: %v", err)
	}

	firstUpdated := first.Property.LastUpdated

	clock.Advance(time.Hour)

	second, err := r.Reconcile(ctx, listing)
	if err != nil {
		t.Fatalf("Second reconcile failed: %v", err)
	}

	if second.Action != ActionNoop {
		t.Errorf("action = %s, want noop", second.Action)
	}

	if second.Property.ID != first.Property.ID {
		t.Error("Re-reconciling must not create a duplicate")
	}

	if !second.Property.LastChecked.Equal(clock.Now()) {
		t.Error("lastChecked must advance on a noop revisit")
	}

	if !second.Property.LastUpdated.Equal(firstUpdated) {
		t.Error("lastUpdated must not move on a noop revisit")
	}

	clock.Advance(time.Hour)

	third, _ := r.Reconcile(ctx, listing)
	if third.Action != ActionNoop {
		t.Errorf("Third reconcile action = %s, want noop", third.Action)
	}
}

func TestReconcile_PriceChangeProducesUpdate(t *testing.T) {
	r, store, clock := newTestReconciler()
	ctx := context.Background()

	if _, err := r.Reconcile(ctx, withPrice(testListing("https://x/1"), 100000, models.CurrencyUSD)); err != nil {
		t.Fatalf("Insert reconcile failed: %v", err)
	}

	clock.Advance(time.Hour)

	outcome, err := r.Reconcile(ctx, withPrice(testListing("https://x/1"), 110000, models.CurrencyUSD))
	if err != nil {
		t.Fatalf("Update reconcile failed: %v", err)
	}

	if outcome.Action != ActionUpdate {
		t.Fatalf("action = %s, want update", outcome.Action)
	}

	if len(outcome.Changes) != 1 {
		t.Fatalf("changes = %+v, want exactly one", outcome.Changes)
	}

	change := outcome.Changes[0]
	if change.FieldName != "price_amount" {
		t.Errorf("field = %s", change.FieldName)
	}

	if change.OldValue == nil || *change.OldValue != "100000" {
		t.Errorf("oldValue = %v", change.OldValue)
	}

	if change.NewValue == nil || *change.NewValue != "110000" {
		t.Errorf("newValue = %v", change.NewValue)
	}

	if !outcome.Property.LastUpdated.Equal(clock.Now()) {
		t.Error("lastUpdated must move on update")
	}

	history, _ := store.History(ctx, outcome.Property.ID)
	if len(history) != 1 {
		t.Errorf("history rows = %d, want 1", len(history))
	}
}

func TestReconcile_HistoryIsAdditive(t *testing.T) {
	r, store, clock := newTestReconciler()
	ctx := context.Background()

	first, _ := r.Reconcile(ctx, withPrice(testListing("https://x/1"), 100000, models.CurrencyUSD))

	clock.Advance(time.Hour)
	r.Reconcile(ctx, withPrice(testListing("https://x/1"), 110000, models.CurrencyUSD))

	clock.Advance(time.Hour)
	r.Reconcile(ctx, withPrice(testListing("https://x/1"), 120000, models.CurrencyUSD))

	history, _ := store.History(ctx, first.Property.ID)
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}

	if *history[0].NewValue != "110000" || *history[1].NewValue != "120000" {
		t.Errorf("history = %+v", history)
	}
}

func TestReconcile_AbsentFieldNeverRegresses(t *testing.T) {
	r, _, clock := newTestReconciler()
	ctx := context.Background()

	full := withPrice(testListing("https://x/1"), 100000, models.CurrencyUSD)
	bedrooms := 3
	full.Features.Bedrooms = &bedrooms
	desc := "Muy luminoso"
	full.Description = &desc

	r.Reconcile(ctx, full)

	clock.Advance(time.Hour)

	// Re-scrape lost bedrooms and description but found a new price.
	partial := withPrice(testListing("https://x/1"), 110000, models.CurrencyUSD)

	outcome, err := r.Reconcile(ctx, partial)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if outcome.Action != ActionUpdate {
		t.Fatalf("action = %s, want update", outcome.Action)
	}

	got := outcome.Property.Listing

	if got.Features.Bedrooms == nil || *got.Features.Bedrooms != 3 {
		t.Error("absent bedrooms must not erase the stored value")
	}

	if got.Description == nil || *got.Description != "Muy luminoso" {
		t.Error("absent description must not erase the stored value")
	}

	for _, change := range outcome.Changes {
		if change.FieldName == "description" {
			t.Error("absent description must not emit a change entry")
		}
	}
}

func TestReconcile_StatusAndCurrencyChanges(t *testing.T) {
	r, _, clock := newTestReconciler()
	ctx := context.Background()

	r.Reconcile(ctx, withPrice(testListing("https://x/1"), 100000, models.CurrencyUSD))

	clock.Advance(time.Hour)

	next := withPrice(testListing("https://x/1"), 100000, models.CurrencyARS)
	next.Status = models.StatusSold

	outcome, err := r.Reconcile(ctx, next)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if outcome.Action != ActionUpdate {
		t.Fatalf("action = %s, want update", outcome.Action)
	}

	fields := map[string]bool{}
	for _, change := range outcome.Changes {
		fields[change.FieldName] = true
	}

	if !fields["price_currency"] || !fields["status"] {
		t.Errorf("changed fields = %v, want price_currency and status", fields)
	}
}

func TestReconcile_LookupByExternalID(t *testing.T) {
	r, _, clock := newTestReconciler()
	ctx := context.Background()

	listing := withPrice(testListing("https://x/old-url"), 100000, models.CurrencyUSD)
	externalID := "51234567"
	listing.ExternalID = &externalID

	first, _ := r.Reconcile(ctx, listing)

	clock.Advance(time.Hour)

	// Same external key under a new URL: still the same property.
	moved := withPrice(testListing("https://x/new-url"), 100000, models.CurrencyUSD)
	moved.ExternalID = &externalID

	outcome, err := r.Reconcile(ctx, moved)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if outcome.Action == ActionInsert {
		t.Error("external key match must not insert a duplicate")
	}

	if outcome.Property.ID != first.Property.ID {
		t.Errorf("resolved ID %d, want %d", outcome.Property.ID, first.Property.ID)
	}
}

func TestReconcile_KeyConflict(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()

	// Row 1 owns the external key, row 2 owns the URL.
	keyed := testListing("https://x/1")
	externalID := "777"
	keyed.ExternalID = &externalID
	store.Insert(ctx, keyed, time.Now())

	store.Insert(ctx, testListing("https://x/2"), time.Now())

	conflicting := testListing("https://x/2")
	conflicting.ExternalID = &externalID

	_, err := r.Reconcile(ctx, conflicting)
	if !errors.Is(err, ErrKeyConflict) {
		t.Errorf("Expected ErrKeyConflict, got %v", err)
	}
}

func TestReconcile_ConcurrentSameURL(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()

	const workers = 8

	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			listing := withPrice(testListing("https://x/shared"), 100000, models.CurrencyUSD)
			if _, err := r.Reconcile(ctx, listing); err != nil {
				t.Errorf("Reconcile failed: %v", err)
			}
		}()
	}

	wg.Wait()

	// Exactly one row despite the race.
	if _, err := store.FindByURL(ctx, "https://x/shared"); err != nil {
		t.Fatalf("FindByURL failed: %v", err)
	}

	recent, _ := store.GetRecentProperties(ctx, 10)
	if len(recent) != 1 {
		t.Errorf("stored rows = %d, want 1", len(recent))
	}
}
