package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Kasperit/Price-Tracker/internal/domain"
	"github.com/Kasperit/Price-Tracker/internal/stats"
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

type productKey struct {
	storeID    int64
	externalID string
}

// Repository is an in-memory implementation of storage.Repository.
// Intended for tests and the --use-memory mode; state is lost on exit.
type Repository struct {
	mu           sync.RWMutex
	stores       map[int64]*domain.Store
	storeByName  map[string]int64
	products     map[int64]*domain.Product
	productByKey map[productKey]int64
	observations map[int64][]*domain.PriceObservation // keyed by product_id

	nextStoreID       int64
	nextProductID     int64
	nextObservationID int64
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository creates a new in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		stores:       make(map[int64]*domain.Store),
		storeByName:  make(map[string]int64),
		products:     make(map[int64]*domain.Product),
		productByKey: make(map[productKey]int64),
		observations: make(map[int64][]*domain.PriceObservation),
	}
}

// EnsureStore creates a store by its unique name if absent and returns the
// stored row either way.
func (r *Repository) EnsureStore(_ context.Context, name, baseURL string) (*domain.Store, error) {
	if name == "" {
		return nil, storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.storeByName[name]; exists {
		storeCopy := *r.stores[id]
		return &storeCopy, nil
	}

	r.nextStoreID++
	store := &domain.Store{
		ID:        r.nextStoreID,
		Name:      name,
		BaseURL:   baseURL,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	r.stores[store.ID] = store
	r.storeByName[name] = store.ID

	storeCopy := *store
	return &storeCopy, nil
}

// GetStoreByName retrieves a store by name. Returns ErrNotFound if not exists.
func (r *Repository) GetStoreByName(_ context.Context, name string) (*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.storeByName[name]
	if !exists {
		return nil, storage.ErrNotFound
	}

	storeCopy := *r.stores[id]
	return &storeCopy, nil
}

// ListStores retrieves all stores ordered by name.
func (r *Repository) ListStores(_ context.Context) ([]*domain.Store, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Store, 0, len(r.stores))
	for _, s := range r.stores {
		storeCopy := *s
		result = append(result, &storeCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// SetStoreActive toggles the active flag. Returns ErrNotFound if the store
// does not exist.
func (r *Repository) SetStoreActive(_ context.Context, name string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.storeByName[name]
	if !exists {
		return storage.ErrNotFound
	}

	r.stores[id].IsActive = active
	return nil
}

// UpsertSnapshot persists one extraction result: the product row is created
// or its mutable fields overwritten, and one observation is appended.
func (r *Repository) UpsertSnapshot(_ context.Context, storeID int64, snap *domain.Snapshot) (*storage.UpsertResult, error) {
	if snap == nil || storeID <= 0 || snap.ExternalID == "" || snap.Name == "" || snap.Price < 0 {
		return nil, storage.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[storeID]; !exists {
		return nil, fmt.Errorf("store %d: %w", storeID, storage.ErrNotFound)
	}

	now := time.Now().UTC()
	key := productKey{storeID: storeID, externalID: snap.ExternalID}

	created := false
	id, exists := r.productByKey[key]
	if exists {
		p := r.products[id]
		p.Name = snap.Name
		p.URL = snap.URL
		p.Brand = snap.Brand
		p.ImageURL = snap.ImageURL
		p.IsAvailable = snap.Available
		p.UpdatedAt = now
	} else {
		r.nextProductID++
		id = r.nextProductID
		r.products[id] = &domain.Product{
			ID:          id,
			StoreID:     storeID,
			ExternalID:  snap.ExternalID,
			Name:        snap.Name,
			URL:         snap.URL,
			Brand:       snap.Brand,
			ImageURL:    snap.ImageURL,
			IsAvailable: snap.Available,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		r.productByKey[key] = id
		created = true
	}

	currency := snap.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	r.nextObservationID++
	obs := &domain.PriceObservation{
		ID:         r.nextObservationID,
		ProductID:  id,
		Price:      snap.Price,
		Currency:   currency,
		ObservedAt: now,
	}
	if snap.OriginalPrice != nil {
		original := *snap.OriginalPrice
		obs.OriginalPrice = &original
	}
	r.observations[id] = append(r.observations[id], obs)

	return &storage.UpsertResult{ProductID: id, Created: created}, nil
}

// GetProduct retrieves a product by ID. Returns ErrNotFound if not exists.
func (r *Repository) GetProduct(_ context.Context, productID int64) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.products[productID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	productCopy := *p
	return &productCopy, nil
}

// GetProductByKey retrieves a product by its natural key.
func (r *Repository) GetProductByKey(_ context.Context, storeID int64, externalID string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.productByKey[productKey{storeID: storeID, externalID: externalID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	productCopy := *r.products[id]
	return &productCopy, nil
}

// GetHistory retrieves a product's observations in chronological order.
func (r *Repository) GetHistory(_ context.Context, productID int64) ([]*domain.PriceObservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.PriceObservation, 0, len(r.observations[productID]))
	for _, obs := range r.observations[productID] {
		obsCopy := *obs
		result = append(result, &obsCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ObservedAt.Equal(result[j].ObservedAt) {
			return result[i].ObservedAt.Before(result[j].ObservedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// GetStatistics derives price statistics from a product's history.
// Returns ErrNotFound when the product has no observations.
func (r *Repository) GetStatistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error) {
	history, err := r.GetHistory(ctx, productID)
	if err != nil {
		return nil, err
	}

	s := stats.Compute(history)
	if s == nil {
		return nil, storage.ErrNotFound
	}
	return s, nil
}

// PruneOrphans deletes every product with zero price observations.
func (r *Repository) PruneOrphans(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, p := range r.products {
		if len(r.observations[id]) > 0 {
			continue
		}
		delete(r.products, id)
		delete(r.productByKey, productKey{storeID: p.StoreID, externalID: p.ExternalID})
		delete(r.observations, id)
		removed++
	}

	return removed, nil
}

// Close is a no-op for the in-memory repository.
func (r *Repository) Close() {}
