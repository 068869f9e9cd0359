// Package sources lists and extracts products from Finnish electronics
// stores. Each store has an Extractor that discovers product page URLs and
// maps per-product API responses to price snapshots.
package sources

import (
	"context"
	"sort"
	"strings"

	"github.com/Kasperit/Price-Tracker/internal/domain"
)

// Definition identifies a product source.
type Definition struct {
	Name    string
	BaseURL string
}

// Extractor lists and extracts products from one store.
type Extractor interface {
	// Source returns the store identity.
	Source() Definition

	// Discover returns product page URLs for the store. A positive limit
	// caps the listing; zero means everything.
	Discover(ctx context.Context, limit int) ([]string, error)

	// Extract fetches one product page URL and maps it to a snapshot.
	// Returns ErrNotFound when the product no longer exists.
	Extract(ctx context.Context, url string) (*domain.Snapshot, error)
}

// Registry holds the built-in extractors keyed by lowercase source name.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry with all built-in extractors sharing one
// HTTP client.
func NewRegistry(client *Client) *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.register(NewVerkkokauppa(client))
	r.register(NewGigantti(client))
	r.register(NewPower(client))
	return r
}

func (r *Registry) register(e Extractor) {
	r.extractors[strings.ToLower(e.Source().Name)] = e
}

// Get returns the extractor for a source name. Matching is
// case-insensitive.
func (r *Registry) Get(name string) (Extractor, bool) {
	e, ok := r.extractors[strings.ToLower(name)]
	return e, ok
}

// All returns every registered extractor ordered by name.
func (r *Registry) All() []Extractor {
	extractors := make([]Extractor, 0, len(r.extractors))
	for _, e := range r.extractors {
		extractors = append(extractors, e)
	}
	sort.Slice(extractors, func(i, j int) bool {
		return extractors[i].Source().Name < extractors[j].Source().Name
	})
	return extractors
}

// Names returns the registered source names in order.
func (r *Registry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.Source().Name
	}
	return names
}
