package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"propcrawl/internal/models"
)

// MemoryStore is an in-memory Store used by tests and local dry runs.
type MemoryStore struct {
	mu sync.RWMutex

	properties map[int64]*models.StoredProperty
	history    map[int64][]models.ChangeEntry
	sessions   map[int64]*models.CrawlSession

	nextPropertyID int64
	nextSessionID  int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		properties:     make(map[int64]*models.StoredProperty),
		history:        make(map[int64][]models.ChangeEntry),
		sessions:       make(map[int64]*models.CrawlSession),
		nextPropertyID: 1,
		nextSessionID:  1,
	}
}

// FindByExternalID looks a property up by the source-assigned key.
func (m *MemoryStore) FindByExternalID(_ context.Context, externalID, sourceName string) (*models.StoredProperty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.properties {
		if p.Listing.ExternalID != nil && *p.Listing.ExternalID == externalID && p.Listing.SourceName == sourceName {
			cp := *p
			return &cp, nil
		}
	}

	return nil, ErrNotFound
}

// FindByURL looks a property up by its source URL.
func (m *MemoryStore) FindByURL(_ context.Context, sourceURL string) (*models.StoredProperty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.properties {
		if p.Listing.SourceURL == sourceURL {
			cp := *p
			return &cp, nil
		}
	}

	return nil, ErrNotFound
}

// Insert stores a new property. The source URL is unique across the store,
// matching the database schema.
func (m *MemoryStore) Insert(_ context.Context, listing models.Listing, now time.Time) (*models.StoredProperty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.properties {
		if p.Listing.SourceURL == listing.SourceURL {
			return nil, ErrDuplicateURL
		}
	}

	stored := &models.StoredProperty{
		ID:          m.nextPropertyID,
		Listing:     listing,
		FirstSeen:   now,
		LastUpdated: now,
		LastChecked: now,
	}

	m.properties[stored.ID] = stored
	m.nextPropertyID++

	cp := *stored

	return &cp, nil
}

// ApplyChanges replaces the listing payload and appends history entries.
func (m *MemoryStore) ApplyChanges(_ context.Context, id int64, listing models.Listing, changes []models.ChangeEntry, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.properties[id]
	if !ok {
		return ErrNotFound
	}

	stored.Listing = listing
	stored.LastUpdated = now
	stored.LastChecked = now

	m.history[id] = append(m.history[id], changes...)

	return nil
}

// TouchLastChecked stamps a revisit without changes.
func (m *MemoryStore) TouchLastChecked(_ context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.properties[id]
	if !ok {
		return ErrNotFound
	}

	stored.LastChecked = now

	return nil
}

// History returns a property's change entries, oldest first.
func (m *MemoryStore) History(_ context.Context, propertyID int64) ([]models.ChangeEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.history[propertyID]
	out := make([]models.ChangeEntry, len(entries))
	copy(out, entries)

	return out, nil
}

// SearchProperties returns matching properties, most recently updated first.
func (m *MemoryStore) SearchProperties(_ context.Context, filters models.SearchFilters, limit int) ([]models.StoredProperty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.StoredProperty

	for _, p := range m.properties {
		if matchesFilters(p, filters) {
			out = append(out, *p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// GetRecentProperties returns the most recently first-seen properties.
func (m *MemoryStore) GetRecentProperties(_ context.Context, limit int) ([]models.StoredProperty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.StoredProperty, 0, len(m.properties))
	for _, p := range m.properties {
		out = append(out, *p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].FirstSeen.After(out[j].FirstSeen)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// GetUpdatedProperties returns properties updated at or after since, most
// recently updated first.
func (m *MemoryStore) GetUpdatedProperties(_ context.Context, since time.Time, limit int) ([]models.StoredProperty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.StoredProperty

	for _, p := range m.properties {
		if !p.LastUpdated.Before(since) {
			out = append(out, *p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// GetStatistics aggregates the inventory and session counters.
func (m *MemoryStore) GetStatistics(_ context.Context, now time.Time) (*models.Statistics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	last24h := now.Add(-24 * time.Hour)

	props := models.PropertyStatistics{
		ByType:      make(map[models.PropertyType]int),
		ByOperation: make(map[models.OperationType]int),
		BySource:    make(map[string]int),
	}

	for _, p := range m.properties {
		props.TotalProperties++
		props.ByType[p.Listing.PropertyType]++
		props.ByOperation[p.Listing.OperationType]++
		props.BySource[p.Listing.SourceName]++

		if !p.FirstSeen.Before(last24h) {
			props.NewLast24h++
		}

		if !p.LastUpdated.Before(last24h) {
			props.UpdatedLast24h++
		}
	}

	crawls := models.CrawlStatistics{BySource: make(map[string]int)}

	for _, s := range m.sessions {
		crawls.TotalSessions++
		crawls.BySource[s.SourceName]++

		switch s.Status {
		case models.SessionCompleted:
			crawls.CompletedSessions++
		case models.SessionFailed:
			crawls.FailedSessions++
		case models.SessionRunning:
			crawls.RunningSessions++
		}

		if !s.StartedAt.Before(last24h) {
			crawls.SessionsLast24h++
		}
	}

	return &models.Statistics{Properties: props, Sessions: crawls, GeneratedAt: now}, nil
}

// CreateSession stores a new session and assigns its ID.
func (m *MemoryStore) CreateSession(_ context.Context, session *models.CrawlSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session.ID = m.nextSessionID
	m.nextSessionID++

	cp := *session
	m.sessions[session.ID] = &cp

	return nil
}

// UpdateSession applies the non-nil fields of a partial update.
func (m *MemoryStore) UpdateSession(_ context.Context, id int64, update models.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	applyProgress(session, update)

	return nil
}

// FinishSession closes a session with its final status.
func (m *MemoryStore) FinishSession(_ context.Context, id int64, status models.SessionStatus, errorLog *string, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}

	session.Status = status
	session.FinishedAt = &finishedAt
	session.ErrorLog = errorLog

	return nil
}

// GetSession returns one session by ID.
func (m *MemoryStore) GetSession(_ context.Context, id int64) (*models.CrawlSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	cp := *session

	return &cp, nil
}

// GetSessions returns sessions newest first, optionally by source.
func (m *MemoryStore) GetSessions(_ context.Context, sourceName *string, limit int) ([]models.CrawlSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CrawlSession

	for _, s := range m.sessions {
		if sourceName != nil && s.SourceName != *sourceName {
			continue
		}

		out = append(out, *s)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }

// applyProgress merges the non-nil fields of a partial update.
func applyProgress(session *models.CrawlSession, update models.ProgressUpdate) {
	if update.TotalPages != nil {
		session.TotalPages = update.TotalPages
	}

	if update.ProcessedPages != nil {
		session.ProcessedPages = *update.ProcessedPages
	}

	if update.TotalListings != nil {
		session.TotalListings = *update.TotalListings
	}

	if update.NewCount != nil {
		session.NewCount = *update.NewCount
	}

	if update.UpdatedCount != nil {
		session.UpdatedCount = *update.UpdatedCount
	}

	if update.ErrorCount != nil {
		session.ErrorCount = *update.ErrorCount
	}
}

// matchesFilters checks a stored property against the optional search bounds.
func matchesFilters(p *models.StoredProperty, f models.SearchFilters) bool {
	l := p.Listing

	if f.PropertyType != nil && l.PropertyType != *f.PropertyType {
		return false
	}

	if f.OperationType != nil && l.OperationType != *f.OperationType {
		return false
	}

	if f.Currency != nil && l.Price.Currency != *f.Currency {
		return false
	}

	if f.MinPrice != nil && (l.Price.Amount == nil || *l.Price.Amount < *f.MinPrice) {
		return false
	}

	if f.MaxPrice != nil && (l.Price.Amount == nil || *l.Price.Amount > *f.MaxPrice) {
		return false
	}

	if f.MinBedrooms != nil && (l.Features.Bedrooms == nil || *l.Features.Bedrooms < *f.MinBedrooms) {
		return false
	}

	if f.MaxBedrooms != nil && (l.Features.Bedrooms == nil || *l.Features.Bedrooms > *f.MaxBedrooms) {
		return false
	}

	if f.MinBathrooms != nil && (l.Features.Bathrooms == nil || *l.Features.Bathrooms < *f.MinBathrooms) {
		return false
	}

	if f.MaxBathrooms != nil && (l.Features.Bathrooms == nil || *l.Features.Bathrooms > *f.MaxBathrooms) {
		return false
	}

	if f.MinArea != nil && (l.Features.TotalArea == nil || *l.Features.TotalArea < *f.MinArea) {
		return false
	}

	if f.MaxArea != nil && (l.Features.TotalArea == nil || *l.Features.TotalArea > *f.MaxArea) {
		return false
	}

	if f.Province != nil && !containsFoldPtr(l.Location.Province, *f.Province) {
		return false
	}

	if f.City != nil && !containsFoldPtr(l.Location.City, *f.City) {
		return false
	}

	if f.Neighborhood != nil && !containsFoldPtr(l.Location.Neighborhood, *f.Neighborhood) {
		return false
	}

	return true
}

// containsFoldPtr is the case-insensitive substring match location filters
// use, mirroring the ILIKE pattern on the postgres side.
func containsFoldPtr(s *string, want string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), strings.ToLower(want))
}
