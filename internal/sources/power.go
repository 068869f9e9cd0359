package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Kasperit/Price-Tracker/internal/domain"
)

// Product URL format: /{category-path}/{slug}/p-{id}/
var powerProductID = regexp.MustCompile(`/p-(\d+)/`)

// powerCategories are the top-level categories that hold actual products.
// Power.fi publishes no sitemap, so discovery enumerates these through the
// product list API.
var powerCategories = []int{
	3319, // Puhelimet ja kamerat
	3313, // Kellot ja kuntoilu
	3317, // Tietotekniikka
	3320, // Pelaaminen
	3315, // TV ja audio
	3283, // Kodinkoneet
	3311, // Keittiön pienkoneet
	5016, // Smart Home
	3286, // Koti ja piha
	3312, // Kauneus ja terveys
}

const powerPageSize = 100

// Power extracts products from Power.fi through its v2 product APIs.
type Power struct {
	client   *Client
	baseURL  string
	imageCDN string
}

// NewPower creates the Power.fi extractor.
func NewPower(client *Client) *Power {
	return &Power{
		client:   client,
		baseURL:  "https://www.power.fi",
		imageCDN: "https://media.power-cdn.net",
	}
}

func (p *Power) Source() Definition {
	return Definition{Name: "Power", BaseURL: p.baseURL}
}

// powerProductList is one page of the category listing.
type powerProductList struct {
	Products []struct {
		ProductID int64 `json:"productId"`
	} `json:"products"`
	IsLastPage *bool `json:"isLastPage"`
}

// Discover enumerates the category listings and returns product page URLs.
// Products appearing in several categories are reported once. A category
// page that fails to load ends that category; the source is unavailable
// only when every category failed without yielding anything.
func (p *Power) Discover(ctx context.Context, limit int) ([]string, error) {
	seen := make(map[int64]bool)
	var urls []string
	var lastErr error

	for _, category := range powerCategories {
		if limit > 0 && len(urls) >= limit {
			break
		}

		offset := 0
		for {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			listURL := fmt.Sprintf("%s/api/v2/productlists?cat=%d&size=%d&from=%d",
				p.baseURL, category, powerPageSize, offset)

			var page powerProductList
			if err := p.client.GetJSON(ctx, listURL, &page); err != nil {
				lastErr = fmt.Errorf("list category %d: %w", category, err)
				break
			}
			if len(page.Products) == 0 {
				break
			}

			for _, item := range page.Products {
				if item.ProductID == 0 || seen[item.ProductID] {
					continue
				}
				seen[item.ProductID] = true
				urls = append(urls, fmt.Sprintf("%s/p-%d/", p.baseURL, item.ProductID))
				if limit > 0 && len(urls) >= limit {
					return urls, nil
				}
			}

			// Absent isLastPage means there is no further page.
			if page.IsLastPage == nil || *page.IsLastPage {
				break
			}
			offset += powerPageSize
		}
	}

	if len(urls) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return urls, nil
}

// powerProduct is the relevant slice of the product detail response.
type powerProduct struct {
	ProductID        int64    `json:"productId"`
	Title            string   `json:"title"`
	Price            *float64 `json:"price"`
	PreviousPrice    *float64 `json:"previousPrice"`
	URL              string   `json:"url"`
	ManufacturerName string   `json:"manufacturerName"`
	ProductImage     *struct {
		BasePath string `json:"basePath"`
		Variants []struct {
			Filename string `json:"filename"`
		} `json:"variants"`
	} `json:"productImage"`
	StockCount       int `json:"stockCount"`
	StoresStockCount int `json:"storesStockCount"`
}

// Extract fetches one product from the detail API and maps it to a
// snapshot.
func (p *Power) Extract(ctx context.Context, url string) (*domain.Snapshot, error) {
	m := powerProductID.FindStringSubmatch(url)
	if m == nil {
		return nil, fmt.Errorf("no product id in url %q: %w", url, ErrNotFound)
	}
	id := m[1]

	var raw json.RawMessage
	if err := p.client.GetJSON(ctx, fmt.Sprintf("%s/api/v2/products?ids=%s", p.baseURL, id), &raw); err != nil {
		return nil, err
	}

	// The endpoint answers with an array even for a single id.
	var items []powerProduct
	if err := json.Unmarshal(raw, &items); err != nil {
		var single powerProduct
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("decode product %s: %w", id, err)
		}
		items = []powerProduct{single}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	data := items[0]

	if data.ProductID == 0 {
		return nil, fmt.Errorf("product %s: missing product id", id)
	}
	externalID := strconv.FormatInt(data.ProductID, 10)

	if data.Title == "" {
		return nil, fmt.Errorf("product %s: missing name", id)
	}

	if data.Price == nil || *data.Price == 0 {
		return nil, fmt.Errorf("product %s: missing price", id)
	}

	var originalPrice *float64
	if data.PreviousPrice != nil && *data.PreviousPrice > 0 {
		originalPrice = data.PreviousPrice
	}

	productURL := data.URL
	switch {
	case productURL == "":
		productURL = fmt.Sprintf("%s/p-%s/", p.baseURL, externalID)
	case !strings.HasPrefix(productURL, "http"):
		productURL = p.baseURL + productURL
	}

	var brand *string
	if data.ManufacturerName != "" {
		brand = &data.ManufacturerName
	}

	imageURL := p.imageURL(data)

	return &domain.Snapshot{
		ExternalID:    externalID,
		Name:          data.Title,
		URL:           productURL,
		Price:         *data.Price,
		OriginalPrice: originalPrice,
		Currency:      domain.DefaultCurrency,
		Brand:         brand,
		ImageURL:      imageURL,
		Available:     data.StockCount > 0 || data.StoresStockCount > 0,
	}, nil
}

// imageURL builds the CDN image URL, preferring the 600x600 webp variant.
func (p *Power) imageURL(data powerProduct) *string {
	img := data.ProductImage
	if img == nil || img.BasePath == "" || len(img.Variants) == 0 {
		return nil
	}

	filename := ""
	for _, variant := range img.Variants {
		if strings.Contains(variant.Filename, "600x600") && strings.HasSuffix(variant.Filename, ".webp") {
			filename = variant.Filename
			break
		}
	}
	if filename == "" {
		filename = img.Variants[0].Filename
	}
	if filename == "" {
		return nil
	}

	u := fmt.Sprintf("%s%s/%s", p.imageCDN, img.BasePath, filename)
	return &u
}
