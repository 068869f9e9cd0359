package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Kasperit/Price-Tracker/internal/domain"
)

// Product URL format: /fi/product/{id}/{slug}
var verkkokauppaProductID = regexp.MustCompile(`/fi/product/(\d+)/`)

// Verkkokauppa extracts products from Verkkokauppa.com through its public
// web API. Product URLs come from the sitemap on the CDN host, which skips
// a redirect on the main domain.
type Verkkokauppa struct {
	client     *Client
	baseURL    string
	sitemapURL string
	apiURL     string
}

// NewVerkkokauppa creates the Verkkokauppa.com extractor.
func NewVerkkokauppa(client *Client) *Verkkokauppa {
	return &Verkkokauppa{
		client:     client,
		baseURL:    "https://www.verkkokauppa.com",
		sitemapURL: "https://cdn-a.verkkokauppa.com/gsitemaps1/sitemap.xml",
		apiURL:     "https://web-api.service.verkkokauppa.com/products",
	}
}

func (v *Verkkokauppa) Source() Definition {
	return Definition{Name: "Verkkokauppa.com", BaseURL: v.baseURL}
}

// Discover returns product page URLs from the sitemap.
func (v *Verkkokauppa) Discover(ctx context.Context, limit int) ([]string, error) {
	return FetchSitemapURLs(ctx, v.client, v.sitemapURL, "/fi/product/", limit)
}

// verkkokauppaProduct is the relevant slice of the product API response.
type verkkokauppaProduct struct {
	PID  json.Number `json:"pid"`
	Name struct {
		FI string `json:"fi"`
		EN string `json:"en"`
	} `json:"name"`
	Price struct {
		Current  *float64 `json:"current"`
		Original *float64 `json:"original"`
	} `json:"price"`
	Href struct {
		FI string `json:"fi"`
	} `json:"href"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	Images  []map[string]interface{} `json:"images"`
	Active  *bool                    `json:"active"`
	Visible *int                     `json:"visible"`
}

// Extract fetches one product from the API and maps it to a snapshot.
func (v *Verkkokauppa) Extract(ctx context.Context, url string) (*domain.Snapshot, error) {
	m := verkkokauppaProductID.FindStringSubmatch(url)
	if m == nil {
		return nil, fmt.Errorf("no product id in url %q: %w", url, ErrNotFound)
	}
	id := m[1]

	var raw json.RawMessage
	if err := v.client.GetJSON(ctx, v.apiURL+"/"+id, &raw); err != nil {
		return nil, err
	}

	// The endpoint answers with an array even for a single id.
	var items []verkkokauppaProduct
	if err := json.Unmarshal(raw, &items); err != nil {
		var single verkkokauppaProduct
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("decode product %s: %w", id, err)
		}
		items = []verkkokauppaProduct{single}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	data := items[0]

	name := data.Name.FI
	if name == "" {
		name = data.Name.EN
	}
	if name == "" {
		return nil, fmt.Errorf("product %s: missing name", id)
	}

	if data.Price.Current == nil {
		return nil, fmt.Errorf("product %s: missing price", id)
	}
	price := *data.Price.Current

	var originalPrice *float64
	if data.Price.Original != nil && *data.Price.Original != price {
		originalPrice = data.Price.Original
	}

	productURL := data.Href.FI
	switch {
	case productURL == "":
		productURL = fmt.Sprintf("%s/fi/product/%s", v.baseURL, id)
	case !strings.HasPrefix(productURL, "http"):
		productURL = v.baseURL + productURL
	}

	var brand *string
	if data.Brand.Name != "" {
		brand = &data.Brand.Name
	}

	// The image entry maps size keys to URLs.
	var imageURL *string
	if len(data.Images) > 0 {
		for _, key := range []string{"300", "500"} {
			if u, ok := data.Images[0][key].(string); ok && u != "" {
				imageURL = &u
				break
			}
		}
	}

	active := true
	if data.Active != nil {
		active = *data.Active
	}
	visible := 1
	if data.Visible != nil {
		visible = *data.Visible
	}

	return &domain.Snapshot{
		ExternalID:    id,
		Name:          name,
		URL:           productURL,
		Price:         price,
		OriginalPrice: originalPrice,
		Currency:      domain.DefaultCurrency,
		Brand:         brand,
		ImageURL:      imageURL,
		Available:     active && visible == 1,
	}, nil
}
