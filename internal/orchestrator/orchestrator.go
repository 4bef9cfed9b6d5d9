// Package orchestrator coordinates crawls across sources: one session per
// source, failures isolated so a broken source never takes down the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"propcrawl/internal/adapters"
	"propcrawl/internal/config"
	"propcrawl/internal/logger"
	"propcrawl/internal/models"
	"propcrawl/internal/reconciler"
	"propcrawl/internal/session"
	"propcrawl/internal/storage"
	"propcrawl/internal/walker"
)

// maxConsecutiveWriteFailures aborts a source once storage keeps failing;
// at that point the database, not the data, is the problem.
const maxConsecutiveWriteFailures = 5

// ConfigurationError reports an invalid crawl request. It is raised before
// any session is created and is never retried.
type ConfigurationError struct {
	Source string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %q: %s", e.Source, e.Reason)
}

// Orchestrator runs crawl sessions over the configured sources.
type Orchestrator struct {
	cfg     *config.Config
	tracker *session.Tracker
	recon   *reconciler.Reconciler
	log     *logger.Logger

	// AdapterFactory builds the adapter for a source name. Swappable so
	// callers can crawl scripted sources.
	AdapterFactory func(name string) (adapters.Adapter, error)
}

// New creates an orchestrator over the given store.
func New(cfg *config.Config, store storage.Store, log *logger.Logger) *Orchestrator {
	scraping := cfg.Crawler.Scraping

	return &Orchestrator{
		cfg:     cfg,
		tracker: session.NewTracker(store, log),
		recon:   reconciler.New(store),
		log:     log,
		AdapterFactory: func(name string) (adapters.Adapter, error) {
			return adapters.New(name, &scraping)
		},
	}
}

// CrawlOne crawls a single source under one filter set. pageCap <= 0 falls
// back to the configured default. The whole body runs inside a failure
// boundary: a panic or fatal error finishes the session as failed and is
// reported in the result, never rethrown.
func (o *Orchestrator) CrawlOne(ctx context.Context, sourceName string, filters models.SearchFilters, pageCap int) (models.SessionResult, error) {
	adapter, err := o.AdapterFactory(sourceName)
	if err != nil {
		return models.SessionResult{}, &ConfigurationError{Source: sourceName, Reason: err.Error()}
	}

	sess, err := o.tracker.Start(ctx, sourceName, filters)
	if err != nil {
		return models.SessionResult{}, err
	}

	if pageCap <= 0 {
		pageCap = o.cfg.Crawler.Scraping.DefaultMaxPages
	}

	return o.runSession(ctx, sess, adapter, filters, pageCap), nil
}

// runSession drives the walker loop for one open session and always
// finishes it, whatever happens inside.
func (o *Orchestrator) runSession(ctx context.Context, sess *models.CrawlSession, adapter adapters.Adapter, filters models.SearchFilters, pageCap int) (result models.SessionResult) {
	counters := newCounters()

	result = models.SessionResult{
		SessionID:  sess.ID,
		SourceName: sess.SourceName,
		Status:     models.SessionCompleted,
	}

	finish := func(status models.SessionStatus, errorLog *string) {
		// Finishing happens on a fresh context so a cancelled crawl can
		// still record its final state.
		flushCtx := context.WithoutCancel(ctx)

		if err := o.tracker.UpdateProgress(flushCtx, sess.ID, counters.snapshot()); err != nil {
			o.log.Error("final progress flush failed", "sessionId", sess.ID, "error", err)
		}

		if err := o.tracker.Finish(flushCtx, sess.ID, status, errorLog); err != nil {
			o.log.Error("session finish failed", "sessionId", sess.ID, "error", err)
		}

		result.Status = status
		result.TotalPages = counters.pages
		result.NewCount = counters.newCount
		result.UpdatedCount = counters.updatedCount
		result.ErrorCount = counters.errorCount
	}

	defer func() {
		if r := recover(); r != nil {
			o.log.Error("crawl panicked", "source", sess.SourceName, "panic", r)

			msg := fmt.Sprintf("panic: %v", r)
			finish(models.SessionFailed, &msg)
		}
	}()

	// The walk gets its own cancel so an aborted session does not leave
	// the walker goroutine blocked on its send.
	walkCtx, stopWalk := context.WithCancel(ctx)
	defer stopWalk()

	w := walker.New(adapter, o.log.With("source", sess.SourceName), o.cfg.Crawler.Scraping.LowYieldThreshold)
	run := w.Walk(walkCtx, filters, pageCap)

	progressEvery := o.cfg.Crawler.Scraping.ProgressEvery
	consecutiveWriteFailures := 0

	for listing := range run.Listings() {
		outcome, err := o.recon.Reconcile(ctx, listing)
		if err != nil {
			counters.errorCount++

			if errors.Is(err, reconciler.ErrKeyConflict) {
				// Conflicts are data problems, not storage problems: log
				// loudly, skip the listing, keep the run alive.
				o.log.Warn("key conflict, skipping listing",
					"source", sess.SourceName,
					"url", listing.SourceURL,
					"error", err)

				continue
			}

			consecutiveWriteFailures++
			o.log.Error("reconciliation failed",
				"source", sess.SourceName,
				"url", listing.SourceURL,
				"error", err)

			if consecutiveWriteFailures >= maxConsecutiveWriteFailures {
				msg := fmt.Sprintf("aborted after %d consecutive storage failures: %v", consecutiveWriteFailures, err)
				finish(models.SessionFailed, &msg)

				return result
			}

			continue
		}

		consecutiveWriteFailures = 0
		counters.listings++

		switch outcome.Action {
		case reconciler.ActionInsert:
			counters.newCount++
		case reconciler.ActionUpdate:
			counters.updatedCount++
		}

		if counters.listings%progressEvery == 0 {
			counters.pages = run.Stats().PagesVisited
			if err := o.tracker.UpdateProgress(ctx, sess.ID, counters.snapshot()); err != nil {
				o.log.Warn("progress flush failed", "sessionId", sess.ID, "error", err)
			}
		}
	}

	stats := run.Stats()
	counters.pages = stats.PagesVisited
	counters.planned = &stats.PagesPlanned
	counters.errorCount += stats.Errors

	if stats.Failure != nil {
		msg := stats.Failure.Error()
		finish(models.SessionFailed, &msg)

		return result
	}

	if ctx.Err() != nil {
		msg := "cancelled"
		finish(models.SessionFailed, &msg)

		return result
	}

	finish(models.SessionCompleted, nil)

	return result
}

// CrawlAll crawls every enabled source concurrently, bounded by the
// configured source concurrency. Each source gets its own session; one
// source failing never aborts the others.
func (o *Orchestrator) CrawlAll(ctx context.Context, filters models.SearchFilters, pageCap int) ([]models.SessionResult, error) {
	sources := o.cfg.GetEnabledSources()
	if len(sources) == 0 {
		return nil, &ConfigurationError{Source: "*", Reason: "no enabled sources"}
	}

	// Reject a misconfigured source list up front so a typo cannot burn
	// half a crawl before surfacing.
	for _, name := range sources {
		if _, err := o.AdapterFactory(name); err != nil {
			return nil, &ConfigurationError{Source: name, Reason: err.Error()}
		}
	}

	workers := o.cfg.Crawler.Scraping.MaxConcurrentSources
	if workers <= 0 || workers > len(sources) {
		workers = len(sources)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make([]models.SessionResult, 0, len(sources))
		jobs    = make(chan string)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for name := range jobs {
				result, err := o.CrawlOne(ctx, name, filters, pageCap)
				if err != nil {
					// Session creation failed; report the source as failed
					// rather than dropping it from the results.
					o.log.Error("crawl could not start", "source", name, "error", err)

					result = models.SessionResult{SourceName: name, Status: models.SessionFailed}
				}

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		}()
	}

	for _, name := range sources {
		jobs <- name
	}

	close(jobs)
	wg.Wait()

	return results, nil
}

// counters tracks per-session progress between flushes.
type counters struct {
	planned      *int
	pages        int
	listings     int
	newCount     int
	updatedCount int
	errorCount   int
}

func newCounters() *counters { return &counters{} }

func (c *counters) snapshot() models.ProgressUpdate {
	pages := c.pages
	listings := c.listings
	newCount := c.newCount
	updated := c.updatedCount
	errCount := c.errorCount

	return models.ProgressUpdate{
		TotalPages:     c.planned,
		ProcessedPages: &pages,
		TotalListings:  &listings,
		NewCount:       &newCount,
		UpdatedCount:   &updated,
		ErrorCount:     &errCount,
	}
}
