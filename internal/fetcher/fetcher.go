// Package fetcher provides the polite HTTP client used by every source
// adapter. Each fetcher owns its own rate-limit clock, so concurrent sources
// throttle independently.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"propcrawl/internal/config"
)

// maxJitter is the upper bound of the random noise added to every delay.
const maxJitter = 500 * time.Millisecond

// FetchError reports a transport-level failure: timeout, DNS error, or an
// unexpected status code. It never escapes the fetcher undiagnosed; callers
// decide whether the unit of work that requested the page is retried or
// skipped.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}

	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying transport error, if any.
func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher is a rate-limited HTTP client with optional user-agent rotation.
// It is safe for concurrent use, though each source task normally owns one
// exclusively.
type Fetcher struct {
	client   *http.Client
	delay    time.Duration
	rotate   bool
	agents   []string
	mu       sync.Mutex
	lastCall time.Time
	agentIdx int
	rnd      *rand.Rand
}

// New creates a fetcher from the scraping configuration.
func New(cfg *config.ScrapingConfig) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout()},
		delay:  cfg.Delay(),
		rotate: cfg.UserAgentRotation,
		agents: cfg.UserAgents,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch performs a GET request after waiting out the politeness delay.
// Any transport failure is returned as a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := f.wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req.Header.Set("User-Agent", f.nextAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-AR,es;q=0.9,en;q=0.8")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	// Redirects are followed by the client, so anything outside 2xx/3xx
	// here is a failure.
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return body, nil
}

// wait blocks until the politeness delay since the previous call of this
// fetcher has elapsed, plus jitter. Cancelling the context aborts the wait.
func (f *Fetcher) wait(ctx context.Context) error {
	f.mu.Lock()
	jitter := time.Duration(f.rnd.Int63n(int64(maxJitter)))
	due := f.lastCall.Add(f.delay + jitter)
	f.lastCall = time.Now()

	pause := time.Until(due)
	if pause > 0 {
		// Reserve the slot before sleeping so a concurrent caller queues
		// behind this one.
		f.lastCall = due
	}
	f.mu.Unlock()

	if pause <= 0 {
		return nil
	}

	timer := time.NewTimer(pause)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextAgent returns the outgoing identity header. With rotation enabled the
// pool is cycled; otherwise the first configured agent is static.
func (f *Fetcher) nextAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.agents) == 0 {
		return "propcrawl/1.0"
	}

	if !f.rotate {
		return f.agents[0]
	}

	agent := f.agents[f.agentIdx%len(f.agents)]
	f.agentIdx++

	return agent
}
