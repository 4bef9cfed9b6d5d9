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

// remaxIDRe matches the listing slug id, e.g. ".../listings/420123-depto".
var remaxIDRe = regexp.MustCompile(`/listings/(\d+)`)

// Remax is the adapter for remax.com.ar.
type Remax struct {
	site
}

// NewRemax creates the remax.com.ar adapter.
func NewRemax(f *fetcher.Fetcher) *Remax {
	return &Remax{site{
		name:    "remax.com.ar",
		baseURL: "https://www.remax.com.ar",
		fetcher: f,
	}}
}

// BuildSearchURL builds the /listings search URL with camelCase parameters.
func (r *Remax) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			params.Set("transactionType", "sale")
		case models.OperationRent:
			params.Set("transactionType", "rental")
		case models.OperationTemporaryRent:
			params.Set("transactionType", "temporary")
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
			params.Set("propertyType", v)
		}
	}

	if filters.MinPrice != nil {
		params.Set("minPrice", strconv.Itoa(int(*filters.MinPrice)))
	}

	if filters.MaxPrice != nil {
		params.Set("maxPrice", strconv.Itoa(int(*filters.MaxPrice)))
	}

	if filters.Currency != nil {
		params.Set("currency", string(*filters.Currency))
	}

	if filters.MinBedrooms != nil {
		params.Set("minBedrooms", strconv.Itoa(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		params.Set("maxBedrooms", strconv.Itoa(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		params.Set("minBathrooms", strconv.Itoa(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		params.Set("maxBathrooms", strconv.Itoa(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		params.Set("minArea", strconv.Itoa(int(*filters.MinArea)))
	}

	if filters.MaxArea != nil {
		params.Set("maxArea", strconv.Itoa(int(*filters.MaxArea)))
	}

	if filters.Province != nil {
		params.Set("province", *filters.Province)
	}

	if filters.City != nil {
		params.Set("city", *filters.City)
	}

	if filters.Neighborhood != nil {
		params.Set("neighborhood", *filters.Neighborhood)
	}

	searchURL := r.baseURL + "/listings"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// PageURL appends the page query parameter.
func (r *Remax) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	if u, err := url.Parse(searchURL); err == nil {
		q := u.Query()
		q.Set("page", strconv.Itoa(page))
		u.RawQuery = q.Encode()

		return u.String()
	}

	return fmt.Sprintf("%s&page=%d", searchURL, page)
}

// DiscoverPageCount inspects the pagination block of the first results page.
func (r *Remax) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := r.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return maxPageFromLinks(doc.Find("div.pagination a"))
}

// ExtractPageStubs extracts the property cards of one results page.
func (r *Remax) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := r.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	cards := doc.Find("div.property-card")
	if cards.Length() == 0 {
		cards = doc.Find("article.listing-item")
	}

	var stubs []models.Stub

	cards.Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}

		title := textutil.CleanText(card.Find("h2.property-title, h3.listing-title").First().Text())
		price := textutil.CleanText(card.Find(".price, .property-price").First().Text())
		location := textutil.CleanText(card.Find(".location, .property-location").First().Text())

		stubs = append(stubs, models.Stub{
			URL:          r.abs(href),
			Title:        title,
			PriceText:    price,
			LocationText: location,
		})
	})

	return stubs, nil
}

// ExtractDetail parses one remax detail page.
func (r *Remax) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := r.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, r.name)

	listing.Title = textutil.CleanText(doc.Find("h1.property-title, h1.listing-title").First().Text())
	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: r.name, URL: listingURL, Reason: "no title found"}
	}

	listing.Description = optional(doc.Find("div.description, div.property-description").First().Text())
	listing.PropertyType, listing.OperationType = typesFromText(listing.Title)

	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find(".price, .property-price").First().Text())

	splitLocation(doc.Find("div.property-address").First().Text(), &listing.Location)

	doc.Find("div.property-features li, ul.features li").Each(func(_ int, item *goquery.Selection) {
		featureFromLabel(item.Text(), &listing.Features)
	})

	doc.Find("div.property-gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		src = r.abs(src)
		if i == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgentName = optional(doc.Find("div.agent-card h3, span.agent-name").First().Text())
	listing.Contact.AgencyName = optional(doc.Find("div.office-name").First().Text())
	listing.Contact.Phone = optional(doc.Find("a.agent-phone").First().Text())

	if m := remaxIDRe.FindStringSubmatch(listingURL); m != nil {
		listing.ExternalID = &m[1]
	}

	listing.RawData = provenance.Stamp(r.name, listingURL)

	return listing, nil
}
