package adapters

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propcrawl/internal/fetcher"
	"propcrawl/internal/models"
	"propcrawl/pkg/textutil"
)

// site carries the state and helpers shared by every concrete adapter.
type site struct {
	name    string
	baseURL string
	fetcher *fetcher.Fetcher
}

// Name returns the source identifier.
func (s *site) Name() string { return s.name }

// document fetches a URL and parses it into a goquery document.
func (s *site) document(ctx context.Context, url string) (*goquery.Document, error) {
	body, err := s.fetcher.Fetch(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ExtractionError{Source: s.name, URL: url, Reason: "invalid HTML", Err: err}
	}

	return doc, nil
}

// abs resolves a possibly-relative href against the site base.
func (s *site) abs(ref string) string {
	return textutil.AbsoluteURL(s.baseURL, ref)
}

// maxPageFromLinks scans pagination anchors for the highest page number.
// Returns 1 when the selection holds nothing numeric.
func maxPageFromLinks(sel *goquery.Selection) int {
	maxPage := 1

	sel.Each(func(_ int, link *goquery.Selection) {
		text := strings.TrimSpace(link.Text())
		if page, err := strconv.Atoi(text); err == nil && page > maxPage {
			maxPage = page
		}
	})

	return maxPage
}

// parsePrice interprets a price label like "USD 185.000" or "$ 950.000".
// Unparseable text leaves the amount nil with the ARS default.
func parsePrice(text string) (amount *float64, currency models.Currency) {
	currency = models.CurrencyARS

	upper := strings.ToUpper(text)
	if strings.Contains(upper, "USD") || strings.Contains(upper, "U$S") || strings.Contains(upper, "US$") {
		currency = models.CurrencyUSD
	}

	return textutil.ExtractNumber(text), currency
}

// splitLocation maps a comma-separated location line onto neighborhood,
// city, and province, most specific first, matching how Argentine portals
// render their breadcrumb lines.
func splitLocation(text string, loc *models.Location) {
	parts := strings.Split(text, ",")

	cleaned := make([]string, 0, len(parts))

	for _, part := range parts {
		if p := textutil.CleanText(part); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	switch len(cleaned) {
	case 0:
		return
	case 1:
		loc.City = &cleaned[0]
	case 2:
		loc.Neighborhood = &cleaned[0]
		loc.City = &cleaned[1]
	default:
		loc.Neighborhood = &cleaned[0]
		loc.City = &cleaned[1]
		loc.Province = &cleaned[2]
	}
}

// featureFromLabel assigns one "3 dormitorios" style feature line to the
// matching field. Unknown labels are collected as amenities.
func featureFromLabel(text string, feats *models.Features) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "dorm") || strings.Contains(lower, "ambiente") || strings.Contains(lower, "habitaci"):
		if v := textutil.ExtractInt(text); v != nil {
			feats.Bedrooms = v
		}
	case strings.Contains(lower, "baño") || strings.Contains(lower, "bano"):
		if v := textutil.ExtractInt(text); v != nil {
			feats.Bathrooms = v
		}
	case strings.Contains(lower, "cochera") || strings.Contains(lower, "garage") || strings.Contains(lower, "estacionamiento"):
		if v := textutil.ExtractInt(text); v != nil {
			feats.ParkingSpaces = v
		}
	case strings.Contains(lower, "cubiert"):
		if v := textutil.ExtractNumber(text); v != nil {
			feats.CoveredArea = v
		}
	case strings.Contains(lower, "m²") || strings.Contains(lower, "m2") || strings.Contains(lower, "superficie"):
		if v := textutil.ExtractNumber(text); v != nil {
			feats.TotalArea = v
		}
	case strings.Contains(lower, "antig"):
		if v := textutil.ExtractInt(text); v != nil {
			feats.AgeYears = v
		}
	case strings.Contains(lower, "piso"):
		if v := textutil.ExtractInt(text); v != nil {
			feats.Floor = v
		}
	default:
		if clean := textutil.CleanText(text); clean != "" {
			feats.Amenities = append(feats.Amenities, clean)
		}
	}
}

// typesFromText infers property and operation type from breadcrumb or badge
// text. Defaults follow the domain: apartment for sale.
func typesFromText(text string) (models.PropertyType, models.OperationType) {
	lower := strings.ToLower(text)

	propertyType := models.PropertyApartment
	operationType := models.OperationSale

	switch {
	case strings.Contains(lower, "casa"):
		propertyType = models.PropertyHouse
	case strings.Contains(lower, "local"):
		propertyType = models.PropertyCommerce
	case strings.Contains(lower, "terreno") || strings.Contains(lower, "lote"):
		propertyType = models.PropertyLand
	case strings.Contains(lower, "oficina"):
		propertyType = models.PropertyOffice
	case strings.Contains(lower, "galp") || strings.Contains(lower, "depósito") || strings.Contains(lower, "deposito"):
		propertyType = models.PropertyWarehouse
	}

	switch {
	case strings.Contains(lower, "alquiler temporal") || strings.Contains(lower, "temporario"):
		operationType = models.OperationTemporaryRent
	case strings.Contains(lower, "alquiler"):
		operationType = models.OperationRent
	case strings.Contains(lower, "venta"):
		operationType = models.OperationSale
	}

	return propertyType, operationType
}

// optional returns a pointer to the cleaned text, or nil when empty.
func optional(text string) *string {
	clean := textutil.CleanText(text)
	if clean == "" {
		return nil
	}

	return &clean
}

// queryPageURL appends the conventional page query parameter, matching the
// separator already present in the search URL.
func queryPageURL(searchURL string, page int) string {
	if strings.Contains(searchURL, "?") {
		return fmt.Sprintf("%s&pagina=%d", searchURL, page)
	}

	return fmt.Sprintf("%s?pagina=%d", searchURL, page)
}
