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

// argenpropIDRe matches the trailing listing id of a detail path, e.g.
// ".../departamento-en-venta-en-caballito--9876543".
var argenpropIDRe = regexp.MustCompile(`--(\d+)$`)

// ArgenProp is the adapter for argenprop.com.
type ArgenProp struct {
	site
}

// NewArgenProp creates the argenprop.com adapter.
func NewArgenProp(f *fetcher.Fetcher) *ArgenProp {
	return &ArgenProp{site{
		name:    "argenprop.com",
		baseURL: "https://www.argenprop.com",
		fetcher: f,
	}}
}

// BuildSearchURL builds the search URL. Argenprop encodes operation and
// property type into the q segment and keeps the ranges as dashed params.
func (a *ArgenProp) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	segment := ""

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			segment = "venta"
		case models.OperationRent, models.OperationTemporaryRent:
			segment = "alquiler"
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
			if segment != "" {
				segment += "-" + v
			} else {
				segment = v
			}
		}
	}

	if segment != "" {
		params.Set("q", segment)
	}

	if filters.MinPrice != nil {
		params.Set("precio-desde", strconv.Itoa(int(*filters.MinPrice)))
	}

	if filters.MaxPrice != nil {
		params.Set("precio-hasta", strconv.Itoa(int(*filters.MaxPrice)))
	}

	if filters.Currency != nil {
		params.Set("moneda", string(*filters.Currency))
	}

	if filters.MinBedrooms != nil {
		params.Set("dormitorios-desde", strconv.Itoa(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		params.Set("dormitorios-hasta", strconv.Itoa(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		params.Set("banos-desde", strconv.Itoa(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		params.Set("banos-hasta", strconv.Itoa(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		params.Set("superficie-desde", strconv.Itoa(int(*filters.MinArea)))
	}

	if filters.MaxArea != nil {
		params.Set("superficie-hasta", strconv.Itoa(int(*filters.MaxArea)))
	}

	// Locality is a single dashed slug, most specific part first.
	var locationParts []string

	for _, part := range []*string{filters.Neighborhood, filters.City, filters.Province} {
		if part != nil {
			locationParts = append(locationParts, strings.ReplaceAll(strings.ToLower(*part), " ", "-"))
		}
	}

	if len(locationParts) > 0 {
		params.Set("localidad", strings.Join(locationParts, "-"))
	}

	searchURL := a.baseURL + "/propiedades"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// PageURL appends a pagina-N path-style suffix as a query parameter.
func (a *ArgenProp) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	if strings.Contains(searchURL, "?") {
		return fmt.Sprintf("%s&pagina=%d", searchURL, page)
	}

	return fmt.Sprintf("%s?pagina=%d", searchURL, page)
}

// DiscoverPageCount inspects the pagination nav of the first results page.
func (a *ArgenProp) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := a.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	count := maxPageFromLinks(doc.Find("nav.pagination a"))
	if count == 1 {
		count = maxPageFromLinks(doc.Find("div.pagination a"))
	}

	return count
}

// ExtractPageStubs extracts the listing cards of one results page.
func (a *ArgenProp) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := a.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	cards := doc.Find("div.listing__item")
	if cards.Length() == 0 {
		cards = doc.Find("article.card-container")
	}

	var stubs []models.Stub

	cards.Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.card__title-link")
		if link.Length() == 0 {
			link = card.Find("a").First()
		}

		href, ok := link.Attr("href")
		if !ok {
			return
		}

		title := textutil.CleanText(card.Find("h2.card__title").Text())
		if title == "" {
			title = textutil.CleanText(link.Text())
		}

		price := textutil.CleanText(card.Find("p.card__price").Text())
		if price == "" {
			price = textutil.CleanText(card.Find("span.price").Text())
		}

		location := textutil.CleanText(card.Find("p.card__location").Text())
		if location == "" {
			location = textutil.CleanText(card.Find("span.location").Text())
		}

		stubs = append(stubs, models.Stub{
			URL:          a.abs(href),
			Title:        title,
			PriceText:    price,
			LocationText: location,
		})
	})

	return stubs, nil
}

// ExtractDetail parses one argenprop detail page.
func (a *ArgenProp) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := a.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, a.name)

	listing.Title = textutil.CleanText(doc.Find("h1.property-title").First().Text())
	if listing.Title == "" {
		listing.Title = textutil.CleanText(doc.Find("h1").First().Text())
	}

	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: a.name, URL: listingURL, Reason: "no title found"}
	}

	description := doc.Find("div.property-description").First()
	if description.Length() == 0 {
		description = doc.Find("section.description").First()
	}

	listing.Description = optional(description.Text())
	listing.PropertyType, listing.OperationType = typesFromText(listing.Title)

	splitLocation(doc.Find("p.location-container").First().Text(), &listing.Location)

	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find("p.titlebar__price").First().Text())

	doc.Find("ul.property-features li").Each(func(_ int, item *goquery.Selection) {
		featureFromLabel(item.Text(), &listing.Features)
	})

	doc.Find("div.gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		src = a.abs(src)
		if i == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgencyName = optional(doc.Find("div.form-details h3").First().Text())

	if m := argenpropIDRe.FindStringSubmatch(strings.TrimSuffix(listingURL, "/")); m != nil {
		listing.ExternalID = &m[1]
	}

	listing.RawData = provenance.Stamp(a.name, listingURL)

	return listing, nil
}
