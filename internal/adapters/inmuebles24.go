package adapters

import (
	"context"
	"fmt"
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

// inmuebles24IDRe matches the listing id suffix, e.g. "...-87654321.html".
var inmuebles24IDRe = regexp.MustCompile(`-(\d+)\.html$`)

// Inmuebles24 is the adapter for inmuebles24.com.
type Inmuebles24 struct {
	site
}

// NewInmuebles24 creates the inmuebles24.com adapter.
func NewInmuebles24(f *fetcher.Fetcher) *Inmuebles24 {
	return &Inmuebles24{site{
		name:    "inmuebles24.com",
		baseURL: "https://www.inmuebles24.com",
		fetcher: f,
	}}
}

// BuildSearchURL builds the search URL. Inmuebles24 shares Navent's backend
// but exposes Spanish parameter names with min/max suffixes.
func (i *Inmuebles24) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			params.Set("operacion", "venta")
		case models.OperationRent:
			params.Set("operacion", "renta")
		case models.OperationTemporaryRent:
			params.Set("operacion", "renta-temporal")
		}
	}

	if filters.PropertyType != nil {
		mapping := map[models.PropertyType]string{
			models.PropertyApartment: "departamento",
			models.PropertyHouse:     "casa",
			models.PropertyCommerce:  "local-comercial",
			models.PropertyLand:      "terreno",
			models.PropertyOffice:    "oficina",
			models.PropertyWarehouse: "bodega",
		}
		if v, ok := mapping[*filters.PropertyType]; ok {
			params.Set("tipo", v)
		}
	}

	if filters.MinPrice != nil {
		params.Set("preciomin", strconv.Itoa(int(*filters.MinPrice)))
	}

	if filters.MaxPrice != nil {
		params.Set("preciomax", strconv.Itoa(int(*filters.MaxPrice)))
	}

	if filters.Currency != nil {
		params.Set("moneda", string(*filters.Currency))
	}

	if filters.MinBedrooms != nil {
		params.Set("recamarasmin", strconv.Itoa(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		params.Set("recamarasmax", strconv.Itoa(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		params.Set("banosmin", strconv.Itoa(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		params.Set("banosmax", strconv.Itoa(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		params.Set("areamin", strconv.Itoa(int(*filters.MinArea)))
	}

	if filters.MaxArea != nil {
		params.Set("areamax", strconv.Itoa(int(*filters.MaxArea)))
	}

	if filters.Province != nil {
		params.Set("estado", *filters.Province)
	}

	if filters.City != nil {
		params.Set("ciudad", *filters.City)
	}

	if filters.Neighborhood != nil {
		params.Set("colonia", *filters.Neighborhood)
	}

	searchURL := i.baseURL + "/propiedades"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// PageURL appends the pagina query parameter.
func (i *Inmuebles24) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	if strings.Contains(searchURL, "?") {
		return fmt.Sprintf("%s&pagina=%d", searchURL, page)
	}

	return fmt.Sprintf("%s?pagina=%d", searchURL, page)
}

// DiscoverPageCount inspects the paging block of the first results page.
func (i *Inmuebles24) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := i.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return maxPageFromLinks(doc.Find("ul.paging li a"))
}

// ExtractPageStubs extracts the posting cards of one results page.
func (i *Inmuebles24) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := i.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var stubs []models.Stub

	doc.Find("div.postingCard").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("h4.postingCard-title a").First()
		if link.Length() == 0 {
			link = card.Find("a[href]").First()
		}

		href, ok := link.Attr("href")
		if !ok {
			return
		}

		stubs = append(stubs, models.Stub{
			URL:          i.abs(href),
			Title:        textutil.CleanText(link.Text()),
			PriceText:    textutil.CleanText(card.Find("span.firstPrice").First().Text()),
			LocationText: textutil.CleanText(card.Find("span.postingCardLocation").First().Text()),
		})
	})

	return stubs, nil
}

// ExtractDetail parses one inmuebles24 detail page.
func (i *Inmuebles24) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := i.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, i.name)

	listing.Title = textutil.CleanText(doc.Find("h1.title-property, h1").First().Text())
	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: i.name, URL: listingURL, Reason: "no title found"}
	}

	listing.Description = optional(doc.Find("div.section-description").First().Text())
	listing.PropertyType, listing.OperationType = typesFromText(doc.Find("ul.breadcrumb").Text() + " " + listing.Title)

	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find("div.price-value").First().Text())

	if expensesText := doc.Find("div.price-expenses").First().Text(); expensesText != "" {
		listing.Price.Expenses, listing.Price.ExpensesCurrency = parsePrice(expensesText)
	}

	splitLocation(doc.Find("h2.title-location").First().Text(), &listing.Location)

	doc.Find("ul.section-icon-features li").Each(func(_ int, item *goquery.Selection) {
		featureFromLabel(item.Text(), &listing.Features)
	})

	doc.Find("div.gallery-content img").Each(func(idx int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		src = i.abs(src)
		if idx == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgencyName = optional(doc.Find("h3.publisher-title").First().Text())

	if m := inmuebles24IDRe.FindStringSubmatch(listingURL); m != nil {
		listing.ExternalID = &m[1]
	}

	listing.RawData = provenance.Stamp(i.name, listingURL)

	return listing, nil
}
