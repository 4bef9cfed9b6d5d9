// Package adapters contains one extraction adapter per supported listing
// website. Every adapter satisfies the same capability set; site quirks in
// URL construction, pagination markup, and card selectors stay behind it.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"propcrawl/internal/config"
	"propcrawl/internal/fetcher"
	"propcrawl/internal/models"
)

// ErrUnknownSource reports a source name with no registered adapter.
var ErrUnknownSource = errors.New("unknown source")

// ExtractionError reports that a fetched page could not be parsed into the
// expected shape. It is recoverable: the walker skips the unit of work and
// counts the failure.
type ExtractionError struct {
	Source string
	URL    string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s %s: %s: %v", e.Source, e.URL, e.Reason, e.Err)
	}

	return fmt.Sprintf("extract %s %s: %s", e.Source, e.URL, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *ExtractionError) Unwrap() error { return e.Err }

// Adapter is the capability set every source website implements.
type Adapter interface {
	// Name returns the source identifier, e.g. "zonaprop.com.ar".
	Name() string

	// BuildSearchURL builds a deterministic search URL from the filters.
	// Absent filter fields are omitted entirely.
	BuildSearchURL(filters models.SearchFilters) string

	// PageURL returns the URL of the n-th results page (1-based) for a
	// previously built search URL.
	PageURL(searchURL string, page int) string

	// DiscoverPageCount fetches the first results page and inspects its
	// pagination controls. Any failure degrades to 1, never to an error:
	// an undercount is recoverable, an aborted source is not.
	DiscoverPageCount(ctx context.Context, searchURL string) int

	// ExtractPageStubs extracts the listing stubs of one results page.
	// A page with no recognizable cards yields an empty slice; only the
	// page fetch itself can fail.
	ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error)

	// ExtractDetail fetches one listing's detail page and populates every
	// field it can find. Unknown optional fields stay unset.
	ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error)
}

// constructors maps source name to adapter constructor. Each adapter owns
// its own fetcher so rate-limit clocks never cross sources.
var constructors = map[string]func(f *fetcher.Fetcher) Adapter{
	"zonaprop.com.ar":     func(f *fetcher.Fetcher) Adapter { return NewZonaProp(f) },
	"argenprop.com":       func(f *fetcher.Fetcher) Adapter { return NewArgenProp(f) },
	"mercadolibre.com.ar": func(f *fetcher.Fetcher) Adapter { return NewMercadoLibre(f) },
	"remax.com.ar":        func(f *fetcher.Fetcher) Adapter { return NewRemax(f) },
	"properati.com.ar":    func(f *fetcher.Fetcher) Adapter { return NewProperati(f) },
	"inmuebles24.com":     func(f *fetcher.Fetcher) Adapter { return NewInmuebles24(f) },
	"navent.com":          func(f *fetcher.Fetcher) Adapter { return NewNavent(f) },
}

// New builds the adapter for the named source with a dedicated fetcher.
func New(name string, cfg *config.ScrapingConfig) (Adapter, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	return ctor(fetcher.New(cfg)), nil
}

// Sources returns all registered source names, sorted.
func Sources() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Registered reports whether a source name has an adapter.
func Registered(name string) bool {
	_, ok := constructors[name]

	return ok
}
