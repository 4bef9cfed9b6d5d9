package integration

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"propcrawl/internal/adapters"
	"propcrawl/internal/config"
	"propcrawl/internal/fetcher"
	"propcrawl/internal/logger"
	"propcrawl/internal/models"
	"propcrawl/internal/orchestrator"
	"propcrawl/internal/storage"
	"propcrawl/pkg/provenance"
	"propcrawl/pkg/textutil"
)

// testSite serves a two page listing portal. Prices are mutable so a second
// crawl can observe changes.
type testSite struct {
	server *httptest.Server
	prices map[string]int
}

func newTestSite() *testSite {
	site := &testSite{prices: map[string]int{
		"1001": 120000,
		"1002": 95000,
		"1003": 180000,
	}}

	mux := http.NewServeMux()
	mux.HandleFunc("/propiedades", site.handleSearch)
	mux.HandleFunc("/propiedad/", site.handleDetail)

	site.server = httptest.NewServer(mux)

	return site
}

func (s *testSite) handleSearch(w http.ResponseWriter, r *http.Request) {
	page := r.URL.Query().Get("pagina")

	var buf bytes.Buffer

	buf.WriteString(`<html><body><div class="results">`)

	if page == "" || page == "1" {
		buf.WriteString(`<a class="card" href="/propiedad/1001.html">Depto Palermo</a>`)
		buf.WriteString(`<a class="card" href="/propiedad/1002.html">Depto Caballito</a>`)
	} else {
		buf.WriteString(`<a class="card" href="/propiedad/1003.html">Casa Tigre</a>`)
	}

	buf.WriteString(`</div><div class="paging"><a href="?pagina=1">1</a><a href="?pagina=2">2</a></div></body></html>`)

	w.Write(buf.Bytes())
}

func (s *testSite) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Path[len("/propiedad/") : len(r.URL.Path)-len(".html")]

	price, ok := s.prices[id]
	if !ok {
		http.NotFound(w, r)
		return
	}

	fmt.Fprintf(w, `<html><body>
		<h1 class="title">Propiedad %s</h1>
		<span class="price">USD %d</span>
		<div class="description">Muy luminoso, apto credito.</div>
	</body></html>`, id, price)
}

// portalAdapter is a minimal source adapter pointed at the test site. It goes
// through the real fetcher so the whole network path is exercised.
type portalAdapter struct {
	baseURL string
	fetcher *fetcher.Fetcher
}

func (a *portalAdapter) Name() string { return "portal.test" }

func (a *portalAdapter) BuildSearchURL(models.SearchFilters) string {
	return a.baseURL + "/propiedades"
}

func (a *portalAdapter) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	return fmt.Sprintf("%s?pagina=%d", searchURL, page)
}

func (a *portalAdapter) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := a.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return doc.Find("div.paging a").Length()
}

func (a *portalAdapter) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := a.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var stubs []models.Stub

	doc.Find("a.card").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		stubs = append(stubs, models.Stub{URL: a.baseURL + href, Title: link.Text()})
	})

	return stubs, nil
}

func (a *portalAdapter) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := a.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, a.Name())
	listing.Title = textutil.CleanText(doc.Find("h1.title").Text())
	description := textutil.CleanText(doc.Find("div.description").Text())
	listing.Description = &description
	listing.PropertyType = models.PropertyApartment
	listing.OperationType = models.OperationSale
	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find("span.price").Text())
	listing.RawData = provenance.Stamp(a.Name(), listingURL)

	id := listingURL[len(a.baseURL+"/propiedad/") : len(listingURL)-len(".html")]
	listing.ExternalID = &id

	return listing, nil
}

func (a *portalAdapter) document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := a.fetcher.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

func parsePrice(text string) (*float64, models.Currency) {
	var amount float64
	if _, err := fmt.Sscanf(textutil.CleanText(text), "USD %f", &amount); err != nil {
		return nil, models.CurrencyUSD
	}

	return &amount, models.CurrencyUSD
}

func newPipeline(site *testSite, store storage.Store) *orchestrator.Orchestrator {
	cfg := config.Default()
	cfg.Crawler.Sources = []config.SourceConfig{{Name: "portal.test", Enabled: true}}
	cfg.Crawler.Scraping.DelaySec = 0

	orch := orchestrator.New(cfg, store, logger.NewNop())
	orch.AdapterFactory = func(string) (adapters.Adapter, error) {
		return &portalAdapter{baseURL: site.server.URL, fetcher: fetcher.New(&cfg.Crawler.Scraping)}, nil
	}

	return orch
}

func TestPipeline_CrawlAndRecrawl(t *testing.T) {
	site := newTestSite()
	defer site.server.Close()

	store := storage.NewMemoryStore()
	orch := newPipeline(site, store)
	ctx := context.Background()

	// First crawl inserts everything.
	result, err := orch.CrawlOne(ctx, "portal.test", models.SearchFilters{}, 0)
	if err != nil {
		t.Fatalf("first crawl: %v", err)
	}

	if result.Status != models.SessionCompleted {
		t.Fatalf("first crawl status = %s", result.Status)
	}

	if result.NewCount != 3 || result.UpdatedCount != 0 {
		t.Fatalf("first crawl counts = %+v", result)
	}

	// Second crawl with one price change: one update, two unchanged.
	site.prices["1001"] = 130000

	result, err = orch.CrawlOne(ctx, "portal.test", models.SearchFilters{}, 0)
	if err != nil {
		t.Fatalf("second crawl: %v", err)
	}

	if result.NewCount != 0 || result.UpdatedCount != 1 {
		t.Fatalf("second crawl counts = %+v", result)
	}

	// The changed listing carries a price history entry.
	props, err := store.SearchProperties(ctx, models.SearchFilters{}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(props) != 3 {
		t.Fatalf("stored properties = %d, want 3", len(props))
	}

	var changedID int64

	for _, p := range props {
		if p.Listing.ExternalID != nil && *p.Listing.ExternalID == "1001" {
			changedID = p.ID
		}
	}

	history, err := store.History(ctx, changedID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(history) != 1 || history[0].FieldName != "price_amount" {
		t.Fatalf("history = %+v", history)
	}

	// Both runs left completed sessions behind.
	sessions, err := store.GetSessions(ctx, nil, 10)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}

	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	for _, s := range sessions {
		if s.Status != models.SessionCompleted {
			t.Errorf("session %d status = %s", s.ID, s.Status)
		}
	}
}
