package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const flatSitemap = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://shop.example/fi/product/100/widget</loc></url>
  <url><loc>https://shop.example/fi/campaign/sale</loc></url>
  <url><loc>https://shop.example/fi/product/200/gadget</loc></url>
</urlset>`

func TestFetchSitemapURLs_Flat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, flatSitemap)
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	urls, err := FetchSitemapURLs(ctx, client, server.URL, "/fi/product/", 0)
	if err != nil {
		t.Fatalf("FetchSitemapURLs: %v", err)
	}

	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d: %v", len(urls), urls)
	}

	if urls[0] != "https://shop.example/fi/product/100/widget" {
		t.Errorf("unexpected first url: %s", urls[0])
	}
}

func TestFetchSitemapURLs_NoFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, flatSitemap)
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	urls, err := FetchSitemapURLs(ctx, client, server.URL, "", 0)
	if err != nil {
		t.Fatalf("FetchSitemapURLs: %v", err)
	}

	if len(urls) != 3 {
		t.Errorf("expected 3 urls, got %d", len(urls))
	}
}

func TestFetchSitemapURLs_Index(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.xml":
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/shard1.xml</loc></sitemap>
  <sitemap><loc>%s/shard2.xml</loc></sitemap>
</sitemapindex>`, server.URL, server.URL)
		case "/shard1.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://shop.example/product/1</loc></url></urlset>`)
		case "/shard2.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://shop.example/product/2</loc></url></urlset>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	urls, err := FetchSitemapURLs(ctx, client, server.URL+"/index.xml", "/product/", 0)
	if err != nil {
		t.Fatalf("FetchSitemapURLs: %v", err)
	}

	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d: %v", len(urls), urls)
	}
}

func TestFetchSitemapURLs_IndexChildFailure(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/index.xml":
			fmt.Fprintf(w, `<sitemapindex>
  <sitemap><loc>%s/broken.xml</loc></sitemap>
  <sitemap><loc>%s/good.xml</loc></sitemap>
</sitemapindex>`, server.URL, server.URL)
		case "/good.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://shop.example/product/9</loc></url></urlset>`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	// One failing shard is skipped, the rest of the catalog survives
	urls, err := FetchSitemapURLs(ctx, client, server.URL+"/index.xml", "", 0)
	if err != nil {
		t.Fatalf("FetchSitemapURLs: %v", err)
	}

	if len(urls) != 1 {
		t.Fatalf("expected 1 url, got %d: %v", len(urls), urls)
	}

	if urls[0] != "https://shop.example/product/9" {
		t.Errorf("unexpected url: %s", urls[0])
	}
}

func TestFetchSitemapURLs_RootFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	_, err := FetchSitemapURLs(ctx, client, server.URL, "", 0)
	if err == nil {
		t.Fatal("expected error for unavailable sitemap")
	}

	// A 503 may clear up; it must stay retryable.
	if errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("fetch failure must not be permanent: %v", err)
	}
}

func TestFetchSitemapURLs_MalformedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<urlset><url><loc>https://shop.example/product/1`)
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	_, err := FetchSitemapURLs(ctx, client, server.URL, "", 0)
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable for a malformed document, got %v", err)
	}
}

func TestFetchSitemapURLs_Limit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, flatSitemap)
	}))
	defer server.Close()

	client := NewClient()
	ctx := context.Background()

	urls, err := FetchSitemapURLs(ctx, client, server.URL, "", 2)
	if err != nil {
		t.Fatalf("FetchSitemapURLs: %v", err)
	}

	if len(urls) != 2 {
		t.Errorf("expected limit of 2 urls, got %d", len(urls))
	}
}
