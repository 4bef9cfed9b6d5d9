package adapters

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"propcrawl/internal/fetcher"
	"propcrawl/internal/models"
	"propcrawl/pkg/provenance"
	"propcrawl/pkg/textutil"
)

// mercadolibreIDRe matches MercadoLibre item ids such as "MLA-912345678".
var mercadolibreIDRe = regexp.MustCompile(`MLA-?(\d+)`)

// listingsPerPage is MercadoLibre's fixed page size, used for its
// offset-based pagination.
const listingsPerPage = 48

// MercadoLibre is the adapter for mercadolibre.com.ar real estate.
type MercadoLibre struct {
	site
}

// NewMercadoLibre creates the mercadolibre.com.ar adapter.
func NewMercadoLibre(f *fetcher.Fetcher) *MercadoLibre {
	return &MercadoLibre{site{
		name:    "mercadolibre.com.ar",
		baseURL: "https://inmuebles.mercadolibre.com.ar",
		fetcher: f,
	}}
}

// BuildSearchURL builds the search URL. MercadoLibre uses range expressions
// ("100000-*") rather than separate min/max parameters.
func (m *MercadoLibre) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			params.Set("operation", "venta")
		case models.OperationRent:
			params.Set("operation", "alquiler")
		case models.OperationTemporaryRent:
			params.Set("operation", "alquiler-temporal")
		}
	}

	if filters.PropertyType != nil {
		mapping := map[models.PropertyType]string{
			models.PropertyApartment: "departamentos",
			models.PropertyHouse:     "casas",
			models.PropertyCommerce:  "locales",
			models.PropertyLand:      "terrenos",
			models.PropertyOffice:    "oficinas",
			models.PropertyWarehouse: "depositos-galpones",
		}
		if v, ok := mapping[*filters.PropertyType]; ok {
			params.Set("category", v)
		}
	}

	if rangeExpr := rangeParam(filters.MinPrice, filters.MaxPrice); rangeExpr != "" {
		params.Set("price", rangeExpr)
	}

	if filters.Currency != nil {
		params.Set("currency", string(*filters.Currency))
	}

	if filters.MinBedrooms != nil || filters.MaxBedrooms != nil {
		params.Set("bedrooms", intRangeParam(filters.MinBedrooms, filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil || filters.MaxBathrooms != nil {
		params.Set("bathrooms", intRangeParam(filters.MinBathrooms, filters.MaxBathrooms))
	}

	if rangeExpr := rangeParam(filters.MinArea, filters.MaxArea); rangeExpr != "" {
		params.Set("covered_area", rangeExpr)
	}

	if filters.Province != nil {
		params.Set("state", *filters.Province)
	}

	if filters.City != nil {
		params.Set("city", *filters.City)
	}

	if filters.Neighborhood != nil {
		params.Set("neighborhood", *filters.Neighborhood)
	}

	searchURL := m.baseURL + "/propiedades"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// rangeParam renders MercadoLibre's "min-max" expression with "*" for an
// open end, or "" when neither bound is set.
func rangeParam(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d-%d", int(*min), int(*max))
	case min != nil:
		return fmt.Sprintf("%d-*", int(*min))
	case max != nil:
		return fmt.Sprintf("*-%d", int(*max))
	default:
		return ""
	}
}

func intRangeParam(min, max *int) string {
	switch {
	case min != nil && max != nil:
		return fmt.Sprintf("%d-%d", *min, *max)
	case min != nil:
		return fmt.Sprintf("%d-*", *min)
	default:
		return fmt.Sprintf("*-%d", *max)
	}
}

// PageURL uses MercadoLibre's offset pagination: page 2 starts at item 49.
func (m *MercadoLibre) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	offset := (page-1)*listingsPerPage + 1
	if u, err := url.Parse(searchURL); err == nil {
		q := u.Query()
		q.Set("_Desde", strconv.Itoa(offset))
		u.RawQuery = q.Encode()

		return u.String()
	}

	return fmt.Sprintf("%s&_Desde=%d", searchURL, offset)
}

// DiscoverPageCount inspects the andes pagination block.
func (m *MercadoLibre) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := m.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return maxPageFromLinks(doc.Find("nav.andes-pagination a.andes-pagination__link"))
}

// ExtractPageStubs extracts the ui-search result cards of one page.
func (m *MercadoLibre) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := m.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var stubs []models.Stub

	doc.Find("div.ui-search-result__wrapper").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.ui-search-link").First()

		href, ok := link.Attr("href")
		if !ok {
			return
		}

		currency := textutil.CleanText(card.Find("span.andes-money-amount__currency-symbol").First().Text())
		fraction := textutil.CleanText(card.Find("span.andes-money-amount__fraction").First().Text())

		stubs = append(stubs, models.Stub{
			URL:          href,
			Title:        textutil.CleanText(card.Find("h2.ui-search-item__title").Text()),
			PriceText:    textutil.CleanText(currency + " " + fraction),
			LocationText: textutil.CleanText(card.Find("span.ui-search-item__group__element").First().Text()),
		})
	})

	return stubs, nil
}

// ExtractDetail parses one MercadoLibre product detail page.
func (m *MercadoLibre) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := m.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, m.name)

	listing.Title = textutil.CleanText(doc.Find("h1.ui-pdp-title").First().Text())
	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: m.name, URL: listingURL, Reason: "no title found"}
	}

	listing.Description = optional(doc.Find("div.ui-pdp-description__content").First().Text())
	listing.PropertyType, listing.OperationType = typesFromText(doc.Find("div.ui-pdp-breadcrumb").Text() + " " + listing.Title)

	currencySymbol := doc.Find("span.andes-money-amount__currency-symbol").First().Text()
	fraction := doc.Find("span.andes-money-amount__fraction").First().Text()
	listing.Price.Amount, listing.Price.Currency = parsePrice(currencySymbol + " " + fraction)

	splitLocation(doc.Find("p.ui-pdp-color--BLACK").First().Text(), &listing.Location)

	// Spec table rows render as "label | value" pairs.
	doc.Find("tr.andes-table__row").Each(func(_ int, row *goquery.Selection) {
		label := row.Find("th").Text()
		value := row.Find("td").Text()
		featureFromLabel(label+" "+value, &listing.Features)
	})

	doc.Find("figure.ui-pdp-gallery__wrapper img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		if i == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgencyName = optional(doc.Find("div.ui-vip-profile-info h3").First().Text())

	if match := mercadolibreIDRe.FindStringSubmatch(listingURL); match != nil {
		id := "MLA" + match[1]
		listing.ExternalID = &id
	}

	listing.RawData = provenance.Stamp(m.name, listingURL)

	return listing, nil
}
