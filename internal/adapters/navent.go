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

// naventIDRe matches the aviso id in a detail path, e.g. "/aviso/1234567".
var naventIDRe = regexp.MustCompile(`/aviso/(\d+)`)

// Navent is the adapter for the navent.com aggregator. Navent syndicates
// listings from its portal network, so records extracted here frequently
// share URLs with other sources; the reconciler's per-listing locking is
// what keeps those collisions safe.
type Navent struct {
	site
}

// NewNavent creates the navent.com adapter.
func NewNavent(f *fetcher.Fetcher) *Navent {
	return &Navent{site{
		name:    "navent.com",
		baseURL: "https://www.navent.com",
		fetcher: f,
	}}
}

// BuildSearchURL builds the /avisos search URL.
func (n *Navent) BuildSearchURL(filters models.SearchFilters) string {
	params := url.Values{}

	if filters.OperationType != nil {
		switch *filters.OperationType {
		case models.OperationSale:
			params.Set("operation", "sell")
		case models.OperationRent:
			params.Set("operation", "rent")
		case models.OperationTemporaryRent:
			params.Set("operation", "temporary")
		}
	}

	if filters.PropertyType != nil {
		mapping := map[models.PropertyType]string{
			models.PropertyApartment: "apartment",
			models.PropertyHouse:     "house",
			models.PropertyCommerce:  "retail",
			models.PropertyLand:      "lot",
			models.PropertyOffice:    "office",
			models.PropertyWarehouse: "warehouse",
		}
		if v, ok := mapping[*filters.PropertyType]; ok {
			params.Set("type", v)
		}
	}

	if filters.MinPrice != nil {
		params.Set("price_min", strconv.Itoa(int(*filters.MinPrice)))
	}

	if filters.MaxPrice != nil {
		params.Set("price_max", strconv.Itoa(int(*filters.MaxPrice)))
	}

	if filters.Currency != nil {
		params.Set("currency", string(*filters.Currency))
	}

	if filters.MinBedrooms != nil {
		params.Set("rooms_min", strconv.Itoa(*filters.MinBedrooms))
	}

	if filters.MaxBedrooms != nil {
		params.Set("rooms_max", strconv.Itoa(*filters.MaxBedrooms))
	}

	if filters.MinBathrooms != nil {
		params.Set("baths_min", strconv.Itoa(*filters.MinBathrooms))
	}

	if filters.MaxBathrooms != nil {
		params.Set("baths_max", strconv.Itoa(*filters.MaxBathrooms))
	}

	if filters.MinArea != nil {
		params.Set("area_min", strconv.Itoa(int(*filters.MinArea)))
	}

	if filters.MaxArea != nil {
		params.Set("area_max", strconv.Itoa(int(*filters.MaxArea)))
	}

	if filters.Province != nil {
		params.Set("region", *filters.Province)
	}

	if filters.City != nil {
		params.Set("city", *filters.City)
	}

	if filters.Neighborhood != nil {
		params.Set("zone", *filters.Neighborhood)
	}

	searchURL := n.baseURL + "/avisos"
	if len(params) > 0 {
		return searchURL + "?" + params.Encode()
	}

	return searchURL
}

// PageURL appends the page query parameter.
func (n *Navent) PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}

	if strings.Contains(searchURL, "?") {
		return fmt.Sprintf("%s&page=%d", searchURL, page)
	}

	return fmt.Sprintf("%s?page=%d", searchURL, page)
}

// DiscoverPageCount inspects the pager of the first results page.
func (n *Navent) DiscoverPageCount(ctx context.Context, searchURL string) int {
	doc, err := n.document(ctx, searchURL)
	if err != nil {
		return 1
	}

	return maxPageFromLinks(doc.Find("div.pager a"))
}

// ExtractPageStubs extracts the aviso cards of one results page.
func (n *Navent) ExtractPageStubs(ctx context.Context, pageURL string) ([]models.Stub, error) {
	doc, err := n.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	var stubs []models.Stub

	doc.Find("article.aviso").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.aviso-link").First()

		href, ok := link.Attr("href")
		if !ok {
			return
		}

		stubs = append(stubs, models.Stub{
			URL:          n.abs(href),
			Title:        textutil.CleanText(card.Find("h2.aviso-title").Text()),
			PriceText:    textutil.CleanText(card.Find("span.aviso-price").Text()),
			LocationText: textutil.CleanText(card.Find("span.aviso-location").Text()),
		})
	})

	return stubs, nil
}

// ExtractDetail parses one navent detail page.
func (n *Navent) ExtractDetail(ctx context.Context, listingURL string) (models.Listing, error) {
	doc, err := n.document(ctx, listingURL)
	if err != nil {
		return models.Listing{}, err
	}

	listing := models.NewListing(listingURL, n.name)

	listing.Title = textutil.CleanText(doc.Find("h1.aviso-title").First().Text())
	if listing.Title == "" {
		return models.Listing{}, &ExtractionError{Source: n.name, URL: listingURL, Reason: "no title found"}
	}

	listing.Description = optional(doc.Find("div.aviso-description").First().Text())
	listing.PropertyType, listing.OperationType = typesFromText(doc.Find("ol.breadcrumb").Text() + " " + listing.Title)

	listing.Price.Amount, listing.Price.Currency = parsePrice(doc.Find("span.aviso-price").First().Text())

	splitLocation(doc.Find("div.aviso-location").First().Text(), &listing.Location)

	doc.Find("ul.aviso-features li").Each(func(_ int, item *goquery.Selection) {
		featureFromLabel(item.Text(), &listing.Features)
	})

	doc.Find("div.aviso-gallery img").Each(func(i int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok {
			return
		}

		src = n.abs(src)
		if i == 0 {
			listing.Media.MainImage = &src
		}

		listing.Media.Gallery = append(listing.Media.Gallery, src)
	})

	listing.Contact.AgencyName = optional(doc.Find("div.aviso-publisher").First().Text())

	if m := naventIDRe.FindStringSubmatch(listingURL); m != nil {
		listing.ExternalID = &m[1]
	}

	listing.RawData = provenance.Stamp(n.name, listingURL)

	return listing, nil
}
