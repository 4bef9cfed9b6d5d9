// Package walker drives a source adapter across its result pages and
// yields finished listings one at a time.
package walker

import (
	"context"
	"fmt"
	"sync"

	"propcrawl/internal/adapters"
	"propcrawl/internal/logger"
	"propcrawl/internal/models"
	"propcrawl/internal/normalizer"
)

// Stats summarizes one walk. A snapshot taken while the walk is running
// reflects progress so far; the final values are in place once the
// listings channel has closed.
type Stats struct {
	PagesPlanned int
	PagesVisited int
	Listings     int
	Errors       int
	LowYieldStop bool

	// Failure is set when the walk died on a panic instead of finishing.
	Failure error
}

// Walker paginates one adapter for one filter set.
type Walker struct {
	adapter   adapters.Adapter
	processor *normalizer.Processor
	log       *logger.Logger
	lowYield  int
}

// New creates a walker. lowYieldThreshold is the number of consecutive
// pages with zero recognized cards after which the walk stops early.
func New(adapter adapters.Adapter, log *logger.Logger, lowYieldThreshold int) *Walker {
	if lowYieldThreshold < 1 {
		lowYieldThreshold = 1
	}

	return &Walker{
		adapter:   adapter,
		processor: normalizer.NewProcessor(),
		log:       log,
		lowYield:  lowYieldThreshold,
	}
}

// Run is one in-flight walk. Listings are delivered over an unbuffered
// channel so a slow consumer paces the crawl and memory stays bounded.
type Run struct {
	listings chan models.Listing

	mu    sync.Mutex
	stats Stats
}

// Listings returns the delivery channel. It closes when the walk is done.
func (r *Run) Listings() <-chan models.Listing {
	return r.listings
}

// Stats returns a snapshot of the walk counters. Safe to call while the
// walk is still running.
func (r *Run) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stats
}

// update mutates the counters under the lock. The walker goroutine is the
// only writer; the consumer reads concurrently through Stats.
func (r *Run) update(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

// Walk starts paginating in the background. Pages run in ascending order
// from 1 to min(discovered, pageCap); pageCap <= 0 means no cap. Page and
// detail failures are logged, counted, and skipped. Cancelling the context
// stops the walk before the next fetch.
func (w *Walker) Walk(ctx context.Context, filters models.SearchFilters, pageCap int) *Run {
	run := &Run{listings: make(chan models.Listing)}

	go func() {
		defer close(run.listings)

		defer func() {
			if r := recover(); r != nil {
				run.update(func(s *Stats) { s.Failure = fmt.Errorf("walk panicked: %v", r) })
				w.log.Error("walk panicked", "source", w.adapter.Name(), "panic", r)
			}
		}()

		w.walk(ctx, filters, pageCap, run)
	}()

	return run
}

func (w *Walker) walk(ctx context.Context, filters models.SearchFilters, pageCap int, run *Run) {
	searchURL := w.adapter.BuildSearchURL(filters)

	pageCount := w.adapter.DiscoverPageCount(ctx, searchURL)
	if pageCap > 0 && pageCap < pageCount {
		pageCount = pageCap
	}

	run.update(func(s *Stats) { s.PagesPlanned = pageCount })

	w.log.Debug("starting walk",
		"source", w.adapter.Name(),
		"searchUrl", searchURL,
		"pages", pageCount)

	consecutiveEmpty := 0

	for page := 1; page <= pageCount; page++ {
		if ctx.Err() != nil {
			return
		}

		pageURL := w.adapter.PageURL(searchURL, page)

		stubs, err := w.adapter.ExtractPageStubs(ctx, pageURL)
		if err != nil {
			run.update(func(s *Stats) {
				s.Errors++
				s.PagesVisited++
			})
			w.log.Warn("page failed, skipping",
				"source", w.adapter.Name(),
				"page", page,
				"error", err)

			continue
		}

		run.update(func(s *Stats) { s.PagesVisited++ })

		if len(stubs) == 0 {
			consecutiveEmpty++
			if consecutiveEmpty >= w.lowYield {
				run.update(func(s *Stats) { s.LowYieldStop = true })
				w.log.Info("stopping early after consecutive empty pages",
					"source", w.adapter.Name(),
					"page", page,
					"emptyPages", consecutiveEmpty)

				return
			}

			continue
		}

		consecutiveEmpty = 0

		for _, stub := range stubs {
			if ctx.Err() != nil {
				return
			}

			listing, err := w.adapter.ExtractDetail(ctx, stub.URL)
			if err != nil {
				run.update(func(s *Stats) { s.Errors++ })
				w.log.Debug("detail failed, skipping",
					"source", w.adapter.Name(),
					"url", stub.URL,
					"error", err)

				continue
			}

			processed, err := w.processor.Process(listing)
			if err != nil {
				run.update(func(s *Stats) { s.Errors++ })
				w.log.Debug("listing rejected",
					"source", w.adapter.Name(),
					"url", stub.URL,
					"error", err)

				continue
			}

			select {
			case run.listings <- processed:
				run.update(func(s *Stats) { s.Listings++ })
			case <-ctx.Done():
				return
			}
		}
	}
}
