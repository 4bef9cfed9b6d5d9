// Package session tracks the lifecycle of crawl runs: start, periodic
// progress flushes, and the final status.
package session

import (
	"context"
	"fmt"
	"time"

	"propcrawl/internal/logger"
	"propcrawl/internal/models"
	"propcrawl/internal/storage"
)

// Tracker records crawl sessions. Counters only grow within a run; Finish
// is called exactly once per session by its owner.
type Tracker struct {
	store storage.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewTracker creates a tracker over the given store.
func NewTracker(store storage.Store, log *logger.Logger) *Tracker {
	return &Tracker{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// Start opens a running session for one source and filter snapshot.
func (t *Tracker) Start(ctx context.Context, sourceName string, filters models.SearchFilters) (*models.CrawlSession, error) {
	session := &models.CrawlSession{
		SourceName:     sourceName,
		StartedAt:      t.now(),
		Status:         models.SessionRunning,
		FilterSnapshot: filters,
	}

	if err := t.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("start session for %s: %w", sourceName, err)
	}

	t.log.Info("session started", "sessionId", session.ID, "source", sourceName)

	return session, nil
}

// UpdateProgress flushes a partial counter update. Only the non-nil fields
// of the update are applied.
func (t *Tracker) UpdateProgress(ctx context.Context, sessionID int64, update models.ProgressUpdate) error {
	if err := t.store.UpdateSession(ctx, sessionID, update); err != nil {
		return fmt.Errorf("update session %d: %w", sessionID, err)
	}

	return nil
}

// Finish closes the session with its final status and optional error log.
func (t *Tracker) Finish(ctx context.Context, sessionID int64, status models.SessionStatus, errorLog *string) error {
	if err := t.store.FinishSession(ctx, sessionID, status, errorLog, t.now()); err != nil {
		return fmt.Errorf("finish session %d: %w", sessionID, err)
	}

	t.log.Info("session finished", "sessionId", sessionID, "status", status)

	return nil
}

// GetSession returns one session by ID.
func (t *Tracker) GetSession(ctx context.Context, sessionID int64) (*models.CrawlSession, error) {
	return t.store.GetSession(ctx, sessionID)
}

// GetSessions returns sessions newest first, optionally filtered by source.
func (t *Tracker) GetSessions(ctx context.Context, sourceName *string, limit int) ([]models.CrawlSession, error) {
	return t.store.GetSessions(ctx, sourceName, limit)
}
