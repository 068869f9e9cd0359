package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// FetchSitemapURLs fetches an XML sitemap and returns the URLs it lists.
// Sitemap index files are followed recursively; a child sitemap that fails
// to load is skipped so one bad shard does not lose the whole catalog.
// When filter is non-empty only URLs containing it are kept. A positive
// limit caps the result.
func FetchSitemapURLs(ctx context.Context, client *Client, sitemapURL, filter string, limit int) ([]string, error) {
	body, err := client.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		// A malformed catalog document will not fix itself within a run.
		return nil, fmt.Errorf("%w: parse %s: %v", ErrCatalogUnavailable, sitemapURL, err)
	}

	// Index files nest further sitemaps under <sitemap><loc>.
	if nested := xmlquery.Find(doc, "//sitemap/loc"); len(nested) > 0 {
		var urls []string
		for _, loc := range nested {
			if limit > 0 && len(urls) >= limit {
				break
			}
			remaining := 0
			if limit > 0 {
				remaining = limit - len(urls)
			}
			child, err := FetchSitemapURLs(ctx, client, strings.TrimSpace(loc.InnerText()), filter, remaining)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				continue
			}
			urls = append(urls, child...)
		}
		return urls, nil
	}

	var urls []string
	for _, loc := range xmlquery.Find(doc, "//url/loc") {
		u := strings.TrimSpace(loc.InnerText())
		if u == "" {
			continue
		}
		if filter != "" && !strings.Contains(u, filter) {
			continue
		}
		urls = append(urls, u)
		if limit > 0 && len(urls) >= limit {
			break
		}
	}
	return urls, nil
}
