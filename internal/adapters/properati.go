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

// properatiIDRe matches the hex id at the end of a detail path.
var properatiIDRe = regexp.MustCompile(`-([0-9a-f]{8,})$`)

// Properati is the adapter for properati.com.ar.
type Properati struct {
	site
}

// NewProperati creates the properati.com.ar adapter.
func NewProperati(f *fetcher.Fetcher) *Properati {
	return &Properati{site{
		name:    "properati.com.ar",
		baseURL: "https://www.properati.com.ar",
		fetcher: f,
	}}
}

// BuildSearchURL builds the search URL. Properati wants location as l1/l2/l3
// slugs and lowercased currency.
func (p *Properati) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			params.Set("operation", "sale")
		case models.OperationRent:
			params.Set("operation", "rent")
		case models.OperationTemporaryRent:
			params.Set("operation", "temporary-rent")
		}
	}

	if filters.PropertyType != nil {
		mapping := map[models.PropertyType]string{
			models.PropertyApartment: "apartment",
			models.PropertyHouse:     "house",
			models.PropertyCommerce:  "commercial",
			models.PropertyLand:      "land",
			models.PropertyOffice:    "office",
			models.PropertyWarehouse: "warehouse",
		}
		if v, ok := mapping[*filters.PropertyType]; ok {
			params.Set("property_type", v)
		}
	}

	if filters.City != nil || filters.Neighborhood != nil {
		params.Set("l1", "argentina")
	}

	if filters.City != nil {
		params.Set("l2", slug(*filters.City))
	}

	if filters.Neighborhood != nil {
		params.Set("l3", slug(*filters.Neighborhood))
	}

	if filters.MinPrice != nil {
		params.Set("price_from", strconv.Itoa(int(*filters.MinPrice)))
	}

	if filters.MaxPrice != nil {
		params.Set("price_to", strconv.Itoa(int(*filters.MaxPrice)))
	}

	if filters.Currency != nil {
		params.Set("currency", strings.ToLower(string(*filters.Currency)))
	}

	if filters.MinBedrooms != nil {
		params.Set("bedrooms_from", strconv.Itoa(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		params.Set("bedrooms_to", strconv.Itoa(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		params.Set("bathrooms_from", strconv.Itoa(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		params.Set("bathrooms_to", strconv.Itoa(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		params.Set("area_from", strconv.Itoa(int(*filters.MinArea)))
	}

	if filters.MaxArea != nil {
		params.Set("area_to", strconv.Itoa(int(*filters.MaxArea)))
	}

	searchURL := p.baseURL + "/s"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// slug lowercases and dashes a location name.
func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(textutil.CleanText(s)), " ", "-")
}

// PageURL appends the page query parameter.
func (p *Properati) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	if strings.Contains(searchURL, "?") {
		return fmt.Sprintf("%s&page=%d", searchURL, page)
	}

	return fmt.Sprintf("%s?page=%d", searchURL, page)
}

// DiscoverPageCount inspects the pagination nav of the first results page.
func (p *Properati) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := p.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return maxPageFromLinks(doc.Find("nav.pagination a"))
}

// ExtractPageStubs extracts the posting cards of one results page.
func (p *Properati) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := p.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	cards := doc.Find("div.posting-card")
	if cards.Length() == 0 {
		cards = doc.Find("article.property-item")
	}

	var stubs []models.Stub

	cards.Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}

		stubs = append(stubs, models.Stub{
			URL:          p.abs(href),
			Title:        textutil.CleanText(card.Find("h2.posting-title, h3.property-title").First().Text()),
			PriceText:    textutil.CleanText(card.Find(".price, .posting-price").First().Text()),
			LocationText: textutil.CleanText(card.Find(".location, .posting-location").First().Text()),
		})
	})

	return stubs, nil
}

// ExtractDetail parses one properati detail page.
func (p *Properati) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := p.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, p.name)

	listing.Title = textutil.CleanText(doc.Find("h1.posting-title, h1.property-title").First().Text())
	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: p.name, URL: listingURL, Reason: "no title found"}
	}

	listing.Description = optional(doc.Find("div.description, div.posting-description").First().Text())
	listing.PropertyType, listing.OperationType = typesFromText(doc.Find("nav.breadcrumb").Text() + " " + listing.Title)

	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find(".price, .posting-price").First().Text())

	splitLocation(doc.Find("div.location-container, span.posting-location").First().Text(), &listing.Location)

	doc.Find("ul.posting-features li, div.details-item").Each(func(_ int, item *goquery.Selection) {
		featureFromLabel(item.Text(), &listing.Features)
	})

	doc.Find("div.gallery img, div.posting-gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		src = p.abs(src)
		if i == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgencyName = optional(doc.Find("div.publisher-info h3").First().Text())

	if m := properatiIDRe.FindStringSubmatch(strings.TrimSuffix(listingURL, "/")); m != nil {
		listing.ExternalID = &m[1]
	}

	listing.RawData = provenance.Stamp(p.name, listingURL)

	return listing, nil
}
