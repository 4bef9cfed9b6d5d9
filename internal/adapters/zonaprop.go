package adapters

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"propcrawl/internal/fetcher"
	"propcrawl/internal/models"
	"propcrawl/pkg/provenance"
	"propcrawl/pkg/textutil"
)

// zonapropIDRe pulls the numeric listing id out of a detail URL, e.g.
// ".../departamento-en-venta-palermo-51234567.html".
var zonapropIDRe = regexp.MustCompile(`-(\d+)\.html$`)

// ZonaProp is the adapter for zonaprop.com.ar.
type ZonaProp struct {
	site
}

// NewZonaProp creates the zonaprop.com.ar adapter.
func NewZonaProp(f *fetcher.Fetcher) *ZonaProp {
	return &ZonaProp{site{
		name:    "zonaprop.com.ar",
		baseURL: "https://www.zonaprop.com.ar",
		fetcher: f,
	}}
}

// BuildSearchURL builds the /propiedades search URL.
func (z *ZonaProp) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			params.Set("tipo_operacion", "venta")
		case models.OperationRent:
			params.Set("tipo_operacion", "alquiler")
		case models.OperationTemporaryRent:
			params.Set("tipo_operacion", "alquiler-temporal")
		}
	}

	if filters.PropertyType != nil {
		mapping := map[models.PropertyType]string{
			models.PropertyApartment: "departamento",
			models.PropertyHouse:     "casa",
			models.PropertyCommerce:  "local",
			models.PropertyLand:      "terreno",
			models.PropertyOffice:    "oficina",
			models.PropertyWarehouse: "galpon",
		}
		if v, ok := mapping[*filters.PropertyType]; ok {
			params.Set("tipo_propiedad", v)
		}
	}

	if filters.MinPrice != nil {
		params.Set("precio_desde", strconv.Itoa(int(*filters.MinPrice)))
	}

	if filters.MaxPrice != nil {
		params.Set("precio_hasta", strconv.Itoa(int(*filters.MaxPrice)))
	}

	if filters.Currency != nil {
		params.Set("moneda", strings.ToLower(string(*filters.Currency)))
	}

	if filters.MinBedrooms != nil {
		params.Set("dormitorios_desde", strconv.Itoa(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		params.Set("dormitorios_hasta", strconv.Itoa(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		params.Set("banos_desde", strconv.Itoa(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		params.Set("banos_hasta", strconv.Itoa(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		params.Set("superficie_desde", strconv.Itoa(int(*filters.MinArea)))
	}

	if filters.MaxArea != nil {
		params.Set("superficie_hasta", strconv.Itoa(int(*filters.MaxArea)))
	}

	if filters.Province != nil {
		params.Set("provincia", *filters.Province)
	}

	if filters.City != nil {
		params.Set("localidad", *filters.City)
	}

	if filters.Neighborhood != nil {
		params.Set("barrio", *filters.Neighborhood)
	}

	searchURL := z.baseURL + "/propiedades"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// PageURL appends the pagina query parameter.
func (z *ZonaProp) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	return queryPageURL(searchURL, page)
}

// DiscoverPageCount inspects the pagination block of the first results page.
func (z *ZonaProp) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := z.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return maxPageFromLinks(doc.Find("div.pagination a"))
}

// ExtractPageStubs extracts the posting cards of one results page.
func (z *ZonaProp) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := z.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var stubs []models.Stub

	doc.Find("div.posting-card").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.posting-card-title")

		href, ok := link.Attr("href")
		if !ok {
			return
		}

		stubs = append(stubs, models.Stub{
			URL:          z.abs(href),
			Title:        textutil.CleanText(link.Text()),
			PriceText:    textutil.CleanText(card.Find("span.posting-card-price").Text()),
			LocationText: textutil.CleanText(card.Find("span.posting-card-location").Text()),
		})
	})

	return stubs, nil
}

// ExtractDetail parses one zonaprop detail page.
func (z *ZonaProp) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := z.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, z.name)

	listing.Title = textutil.CleanText(doc.Find("h1.posting-title").First().Text())
	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: z.name, URL: listingURL, Reason: "no title found"}
	}

	listing.Description = optional(doc.Find("div.posting-description").First().Text())
	listing.PropertyType, listing.OperationType = typesFromText(doc.Find("nav.breadcrumb").Text())

	splitLocation(doc.Find("div.posting-location").First().Text(), &listing.Location)

	if address := optional(doc.Find("h2.posting-address").First().Text()); address != nil {
		listing.Location.Address = address
	}

	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find("span.posting-price").First().Text())

	if expensesText := doc.Find("span.posting-expenses").First().Text(); expensesText != "" {
		listing.Price.Expenses, listing.Price.ExpensesCurrency = parsePrice(expensesText)
	}

	doc.Find("ul.posting-features li").Each(func(_ int, item *goquery.Selection) {
		featureFromLabel(item.Text(), &listing.Features)
	})

	doc.Find("div.posting-gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		src = z.abs(src)
		if i == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgencyName = optional(doc.Find("div.posting-publisher h3").First().Text())
	listing.Contact.Phone = optional(doc.Find("span.publisher-phone").First().Text())

	if m := zonapropIDRe.FindStringSubmatch(listingURL); m != nil {
		listing.ExternalID = &m[1]
	}

	listing.RawData = provenance.Stamp(z.name, listingURL)

	return listing, nil
}
