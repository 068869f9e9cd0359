package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/Kasperit/Price-Tracker/internal/domain"
)

// Product URL format: /product/{category-path}/{slug}/{id}
var giganttiProductID = regexp.MustCompile(`/(\d+)(?:\?|$)`)

// Gigantti extracts products from Gigantti.fi through its internal product
// card and price APIs. Product URLs come from the PDP sitemap index.
type Gigantti struct {
	client     *Client
	baseURL    string
	sitemapURL string
}

// NewGigantti creates the Gigantti.fi extractor.
func NewGigantti(client *Client) *Gigantti {
	return &Gigantti{
		client:     client,
		baseURL:    "https://www.gigantti.fi",
		sitemapURL: "https://www.gigantti.fi/sitemaps/OCFIGIG.pdp.index.sitemap.xml",
	}
}

func (g *Gigantti) Source() Definition {
	return Definition{Name: "Gigantti", BaseURL: g.baseURL}
}

// Discover returns product page URLs from the sitemap index.
func (g *Gigantti) Discover(ctx context.Context, limit int) ([]string, error) {
	return FetchSitemapURLs(ctx, g.client, g.sitemapURL, "/product/", limit)
}

// giganttiPrice accepts the shapes the API uses for a price value: a bare
// number, a [withVAT, withoutVAT] array, or a formatted string. Anything
// else is treated as absent.
type giganttiPrice struct {
	value *float64
}

func (p *giganttiPrice) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		p.value = &n
		return nil
	}
	var arr []float64
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) > 0 {
			p.value = &arr[0]
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := domain.ParsePrice(s); err == nil {
			p.value = &v
		}
	}
	return nil
}

// giganttiPriceBlock is the card's price object. A non-object value is
// ignored; the price API fallback covers it.
type giganttiPriceBlock struct {
	Current  giganttiPrice
	Original giganttiPrice
}

func (p *giganttiPriceBlock) UnmarshalJSON(b []byte) error {
	var obj struct {
		Current  giganttiPrice `json:"current"`
		Original giganttiPrice `json:"original"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		p.Current = obj.Current
		p.Original = obj.Original
	}
	return nil
}

// giganttiBrand accepts either a plain string or an object with a name.
type giganttiBrand struct {
	name string
}

func (br *giganttiBrand) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		br.name = s
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		br.name = obj.Name
	}
	return nil
}

// giganttiImages accepts an image list, a single image object, or a bare
// URL string, keeping the first usable URL.
type giganttiImages struct {
	url string
}

func (im *giganttiImages) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		im.url = s
		return nil
	}
	var obj struct {
		URL string `json:"url"`
		Src string `json:"src"`
	}
	if err := json.Unmarshal(b, &obj); err == nil && (obj.URL != "" || obj.Src != "") {
		if obj.URL != "" {
			im.url = obj.URL
		} else {
			im.url = obj.Src
		}
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(b, &list); err == nil && len(list) > 0 {
		var first giganttiImages
		if err := first.UnmarshalJSON(list[0]); err == nil {
			im.url = first.url
		}
	}
	return nil
}

// giganttiCard is the relevant slice of the product card response.
type giganttiCard struct {
	Name         string             `json:"name"`
	Title        string             `json:"title"`
	Price        giganttiPriceBlock `json:"price"`
	Brand        giganttiBrand      `json:"brand"`
	Manufacturer giganttiBrand      `json:"manufacturer"`
	ImageURL     string             `json:"imageUrl"`
	Images       giganttiImages     `json:"images"`
	Image        giganttiImages     `json:"image"`
	Href         string             `json:"href"`
	URL          string             `json:"url"`
	ProductURL   string             `json:"productUrl"`
	Sellability  *struct {
		IsBuyableOnline  bool `json:"isBuyableOnline"`
		IsBuyableInStore bool `json:"isBuyableInStore"`
	} `json:"sellability"`
}

// unwrapGiganttiData peels the data envelope the APIs usually wrap their
// payload in. Unwrapped payloads pass through unchanged.
func unwrapGiganttiData(raw json.RawMessage) json.RawMessage {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Data) > 0 && string(wrapper.Data) != "null" {
		return wrapper.Data
	}
	return raw
}

// Extract fetches the product card, falling back to the price API when the
// card carries no price, and maps the result to a snapshot.
func (g *Gigantti) Extract(ctx context.Context, url string) (*domain.Snapshot, error) {
	m := giganttiProductID.FindStringSubmatch(url)
	if m == nil {
		return nil, fmt.Errorf("no product id in url %q: %w", url, ErrNotFound)
	}
	id := m[1]

	var raw json.RawMessage
	if err := g.client.GetJSON(ctx, fmt.Sprintf("%s/api/product/%s/card", g.baseURL, id), &raw); err != nil {
		return nil, err
	}

	var card giganttiCard
	if err := json.Unmarshal(unwrapGiganttiData(raw), &card); err != nil {
		return nil, fmt.Errorf("decode product card %s: %w", id, err)
	}

	name := card.Name
	if name == "" {
		name = card.Title
	}
	if name == "" {
		return nil, fmt.Errorf("product %s: missing name", id)
	}

	price := card.Price.Current.value
	if price == nil {
		price = g.fetchPrice(ctx, id)
	}
	if price == nil {
		return nil, fmt.Errorf("product %s: missing price", id)
	}

	var originalPrice *float64
	if p := card.Price.Original.value; p != nil && *p > 0 {
		originalPrice = p
	}

	brandName := card.Brand.name
	if brandName == "" {
		brandName = card.Manufacturer.name
	}
	var brand *string
	if brandName != "" {
		brand = &brandName
	}

	imageCandidate := card.ImageURL
	if imageCandidate == "" {
		imageCandidate = card.Images.url
	}
	if imageCandidate == "" {
		imageCandidate = card.Image.url
	}
	var imageURL *string
	if imageCandidate != "" {
		imageURL = &imageCandidate
	}

	productURL := card.Href
	if productURL == "" {
		productURL = card.URL
	}
	if productURL == "" {
		productURL = card.ProductURL
	}
	switch {
	case productURL == "":
		productURL = fmt.Sprintf("%s/product/%s", g.baseURL, id)
	case !strings.HasPrefix(productURL, "http"):
		productURL = g.baseURL + productURL
	}

	available := true
	if card.Sellability != nil {
		available = card.Sellability.IsBuyableOnline || card.Sellability.IsBuyableInStore
	}

	return &domain.Snapshot{
		ExternalID:    id,
		Name:          name,
		URL:           productURL,
		Price:         *price,
		OriginalPrice: originalPrice,
		Currency:      domain.DefaultCurrency,
		Brand:         brand,
		ImageURL:      imageURL,
		Available:     available,
	}, nil
}

// fetchPrice queries the standalone price API. Failures are tolerated; the
// caller reports the missing price.
func (g *Gigantti) fetchPrice(ctx context.Context, id string) *float64 {
	var raw json.RawMessage
	if err := g.client.GetJSON(ctx, fmt.Sprintf("%s/api/price/%s", g.baseURL, id), &raw); err != nil {
		return nil
	}

	var resp struct {
		Price struct {
			Current giganttiPrice `json:"current"`
		} `json:"price"`
		Current giganttiPrice `json:"current"`
	}
	if err := json.Unmarshal(unwrapGiganttiData(raw), &resp); err != nil {
		return nil
	}

	if resp.Price.Current.value != nil {
		return resp.Price.Current.value
	}
	return resp.Current.value
}
