// Package storage persists properties, their change history, and crawl
// sessions. The reconciler and session tracker are its only writers.
package storage

import (
	"context"
	"errors"
	"time"

	"propcrawl/internal/models"
)

// Lookup errors.
var (
	ErrNotFound        = errors.New("property not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrDuplicateURL    = errors.New("source url already stored")
)

// Store is the persistence surface shared by the reconciler, the session
// tracker, and the read-side API.
type Store interface {
	// FindByExternalID looks a property up by the source-assigned key.
	FindByExternalID(ctx context.Context, externalID, sourceName string) (*models.StoredProperty, error)

	// FindByURL looks a property up by its natural key, the source URL.
	FindByURL(ctx context.Context, sourceURL string) (*models.StoredProperty, error)

	// Insert stores a new property with firstSeen, lastUpdated, and
	// lastChecked all set to now.
	Insert(ctx context.Context, listing models.Listing, now time.Time) (*models.StoredProperty, error)

	// ApplyChanges replaces the stored listing payload and appends the
	// change entries in one transaction. lastUpdated and lastChecked both
	// move to now.
	ApplyChanges(ctx context.Context, id int64, listing models.Listing, changes []models.ChangeEntry, now time.Time) error

	// TouchLastChecked stamps a revisit that produced no change.
	TouchLastChecked(ctx context.Context, id int64, now time.Time) error

	// History returns a property's change entries, oldest first.
	History(ctx context.Context, propertyID int64) ([]models.ChangeEntry, error)

	// SearchProperties returns stored properties matching the filters,
	// most recently updated first.
	SearchProperties(ctx context.Context, filters models.SearchFilters, limit int) ([]models.StoredProperty, error)

	// GetRecentProperties returns the most recently first-seen properties.
	GetRecentProperties(ctx context.Context, limit int) ([]models.StoredProperty, error)

	// GetUpdatedProperties returns properties whose lastUpdated is at or
	// after since, most recently updated first.
	GetUpdatedProperties(ctx context.Context, since time.Time, limit int) ([]models.StoredProperty, error)

	// GetStatistics aggregates the inventory and session counters. The
	// 24-hour activity windows are measured from now.
	GetStatistics(ctx context.Context, now time.Time) (*models.Statistics, error)

	// CreateSession stores a new session and assigns its ID.
	CreateSession(ctx context.Context, session *models.CrawlSession) error

	// UpdateSession applies the non-nil fields of a partial update.
	UpdateSession(ctx context.Context, id int64, update models.ProgressUpdate) error

	// FinishSession closes a session with its final status.
	FinishSession(ctx context.Context, id int64, status models.SessionStatus, errorLog *string, finishedAt time.Time) error

	// GetSession returns one session by ID.
	GetSession(ctx context.Context, id int64) (*models.CrawlSession, error)

	// GetSessions returns sessions newest first, optionally filtered by
	// source name.
	GetSessions(ctx context.Context, sourceName *string, limit int) ([]models.CrawlSession, error)

	Close() error
}
