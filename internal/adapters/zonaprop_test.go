package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"propcrawl/internal/fetcher"
	"propcrawl/internal/models"
)

func newTestZonaProp(t *testing.T, baseURL string) *ZonaProp {
	t.Helper()

	z := NewZonaProp(fetcher.New(testCfg()))
	if baseURL != "" {
		z.baseURL = baseURL
	}

	return z
}

func strPtr(s string) *string          { return &s }
func intPtr(i int) *int                { return &i }
func floatPtr(f float64) *float64      { return &f }
func opPtr(o models.OperationType) *models.OperationType { return &o }
func propPtr(p models.PropertyType) *models.PropertyType { return &p }
func curPtr(c models.Currency) *models.Currency          { return &c }

func TestZonaProp_BuildSearchURL_Empty(t *testing.T) {
	z := newTestZonaProp(t, "")

	got := z.BuildSearchURL(models.SearchFilters{})
	if got != "https://www.zonaprop.com.ar/propiedades" {
		t.Errorf("Unexpected URL: %s", got)
	}
}

func TestZonaProp_BuildSearchURL_AllFilters(t *testing.T) {
	z := newTestZonaProp(t, "")

	filters := models.SearchFilters{
		OperationType: opPtr(models.OperationSale),
		PropertyType:  propPtr(models.PropertyApartment),
		MinPrice:      floatPtr(50000),
		MaxPrice:      floatPtr(150000),
		Currency:      curPtr(models.CurrencyUSD),
		MinBedrooms:   intPtr(2),
		City:          strPtr("Capital Federal"),
		Neighborhood:  strPtr("Palermo"),
	}

	built := z.BuildSearchURL(filters)

	u, err := url.Parse(built)
	if err != nil {
		t.Fatalf("Built URL does not parse: %v", err)
	}

	q := u.Query()

	checks := map[string]string{
		"tipo_operacion":    "venta",
		"tipo_propiedad":    "departamento",
		"precio_desde":      "50000",
		"precio_hasta":      "150000",
		"moneda":            "usd",
		"dormitorios_desde": "2",
		"localidad":         "Capital Federal",
		"barrio":            "Palermo",
	}

	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("param %s = %q, want %q", key, got, want)
		}
	}

	// Absent filters must be omitted, not sent as sentinels.
	for _, absent := range []string{"banos_desde", "superficie_desde", "provincia", "dormitorios_hasta"} {
		if q.Has(absent) {
			t.Errorf("param %s should be absent, got %q", absent, q.Get(absent))
		}
	}
}

func TestZonaProp_BuildSearchURL_Deterministic(t *testing.T) {
	z := newTestZonaProp(t, "")

	filters := models.SearchFilters{
		OperationType: opPtr(models.OperationRent),
		MinPrice:      floatPtr(100000),
	}

	if z.BuildSearchURL(filters) != z.BuildSearchURL(filters) {
		t.Error("BuildSearchURL must be deterministic for equal filters")
	}
}

func TestZonaProp_PageURL(t *testing.T) {
	z := newTestZonaProp(t, "")

	search := "https://www.zonaprop.com.ar/propiedades?tipo_operacion=venta"

	if got := z.PageURL(search, 1); got != search {
		t.Errorf("page 1 must return the search URL, got %s", got)
	}

	if got := z.PageURL(search, 3); !strings.Contains(got, "pagina=3") {
		t.Errorf("page 3 URL missing pagina param: %s", got)
	}
}

const zonapropResultsHTML = `
<html><body>
<div class="posting-card">
  <a class="posting-card-title" href="/departamento-en-venta-palermo-51234567.html">Depto 3 amb Palermo</a>
  <span class="posting-card-price">USD 185.000</span>
  <span class="posting-card-location">Palermo, Capital Federal</span>
</div>
<div class="posting-card">
  <a class="posting-card-title" href="/casa-en-venta-caballito-51234568.html">Casa Caballito</a>
  <span class="posting-card-price">USD 290.000</span>
  <span class="posting-card-location">Caballito, Capital Federal</span>
</div>
<div class="pagination">
  <a href="#">1</a><a href="#">2</a><a href="#">7</a><a href="#">Siguiente</a>
</div>
</body></html>`

func TestZonaProp_DiscoverPageCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(zonapropResultsHTML))
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	if got := z.DiscoverPageCount(context.Background(), srv.URL); got != 7 {
		t.Errorf("DiscoverPageCount = %d, want 7", got)
	}
}

func TestZonaProp_DiscoverPageCount_FallsBackToOne(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	if got := z.DiscoverPageCount(context.Background(), srv.URL); got != 1 {
		t.Errorf("DiscoverPageCount on fetch failure = %d, want 1", got)
	}
}

func TestZonaProp_DiscoverPageCount_NoPagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>no results</p></body></html>"))
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	if got := z.DiscoverPageCount(context.Background(), srv.URL); got != 1 {
		t.Errorf("DiscoverPageCount without pagination = %d, want 1", got)
	}
}

func TestZonaProp_ExtractPageStubs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(zonapropResultsHTML))
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	stubs, err := z.ExtractPageStubs(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ExtractPageStubs failed: %v", err)
	}

	if len(stubs) != 2 {
		t.Fatalf("Expected 2 stubs, got %d", len(stubs))
	}

	first := stubs[0]

	if !strings.HasSuffix(first.URL, "/departamento-en-venta-palermo-51234567.html") {
		t.Errorf("stub URL = %s", first.URL)
	}

	if !strings.HasPrefix(first.URL, srv.URL) {
		t.Errorf("stub URL must be absolute, got %s", first.URL)
	}

	if first.Title != "Depto 3 amb Palermo" {
		t.Errorf("stub title = %q", first.Title)
	}

	if first.PriceText != "USD 185.000" {
		t.Errorf("stub price = %q", first.PriceText)
	}
}

func TestZonaProp_ExtractPageStubs_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><div>maintenance</div></body></html>"))
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	stubs, err := z.ExtractPageStubs(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("An empty page must not be an error, got %v", err)
	}

	if len(stubs) != 0 {
		t.Errorf("Expected no stubs, got %d", len(stubs))
	}
}

const zonapropDetailHTML = `
<html><body>
<nav class="breadcrumb">Inicio > Departamento en Venta > Palermo</nav>
<h1 class="posting-title">Departamento 3 ambientes con balcón</h1>
<div class="posting-location">Palermo, Capital Federal, Buenos Aires</div>
<h2 class="posting-address">Av. Santa Fe 3100</h2>
<span class="posting-price">USD 185.000</span>
<span class="posting-expenses">$ 45.000 expensas</span>
<div class="posting-description">Luminoso departamento de 3 ambientes.</div>
<ul class="posting-features">
  <li>2 dormitorios</li>
  <li>1 baño</li>
  <li>75 m² totales</li>
  <li>Pileta</li>
</ul>
<div class="posting-gallery">
  <img src="/img/1.jpg"/><img src="/img/2.jpg"/>
</div>
<div class="posting-publisher"><h3>Inmobiliaria Norte</h3></div>
</body></html>`

func TestZonaProp_ExtractDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(zonapropDetailHTML))
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	listingURL := srv.URL + "/departamento-en-venta-palermo-51234567.html"

	listing, err := z.ExtractDetail(context.Background(), listingURL)
	if err != nil {
		t.Fatalf("ExtractDetail failed: %v", err)
	}

	if listing.Title != "Departamento 3 ambientes con balcón" {
		t.Errorf("title = %q", listing.Title)
	}

	if listing.SourceURL != listingURL {
		t.Errorf("sourceURL = %q", listing.SourceURL)
	}

	if listing.SourceName != "zonaprop.com.ar" {
		t.Errorf("sourceName = %q", listing.SourceName)
	}

	if listing.ExternalID == nil || *listing.ExternalID != "51234567" {
		t.Errorf("externalID = %v", listing.ExternalID)
	}

	if listing.PropertyType != models.PropertyApartment || listing.OperationType != models.OperationSale {
		t.Errorf("types = %s/%s", listing.PropertyType, listing.OperationType)
	}

	if listing.Price.Amount == nil || *listing.Price.Amount != 185000 {
		t.Errorf("price = %v", listing.Price.Amount)
	}

	if listing.Price.Currency != models.CurrencyUSD {
		t.Errorf("currency = %s", listing.Price.Currency)
	}

	if listing.Price.Expenses == nil || *listing.Price.Expenses != 45000 {
		t.Errorf("expenses = %v", listing.Price.Expenses)
	}

	if listing.Features.Bedrooms == nil || *listing.Features.Bedrooms != 2 {
		t.Errorf("bedrooms = %v", listing.Features.Bedrooms)
	}

	// No parking in the page: must be absent, not zero.
	if listing.Features.ParkingSpaces != nil {
		t.Errorf("parkingSpaces must stay nil, got %v", *listing.Features.ParkingSpaces)
	}

	if listing.Location.Neighborhood == nil || *listing.Location.Neighborhood != "Palermo" {
		t.Errorf("neighborhood = %v", listing.Location.Neighborhood)
	}

	if len(listing.Media.Gallery) != 2 || listing.Media.MainImage == nil {
		t.Errorf("media = %+v", listing.Media)
	}

	if listing.Contact.AgencyName == nil || *listing.Contact.AgencyName != "Inmobiliaria Norte" {
		t.Errorf("agency = %v", listing.Contact.AgencyName)
	}

	if listing.RawData["adapter"] != "zonaprop.com.ar" {
		t.Errorf("rawData adapter = %v", listing.RawData["adapter"])
	}
}

func TestZonaProp_ExtractDetail_NoTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>gone</p></body></html>"))
	}))
	defer srv.Close()

	z := newTestZonaProp(t, srv.URL)

	_, err := z.ExtractDetail(context.Background(), srv.URL+"/x-1.html")
	if err == nil {
		t.Fatal("Expected extraction error for page without title")
	}
}
