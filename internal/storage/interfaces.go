package storage

import (
	"context"

	"github.com/Kasperit/Price-Tracker/internal/domain"
)

// UpsertResult reports the outcome of a single snapshot upsert.
type UpsertResult struct {
	ProductID int64
	Created   bool // true when the product row was created by this upsert
}

// Repository provides idempotent persistence for stores, products and price
// observations. The pair (store_id, external_id) is the natural key: an
// upsert for an existing key updates the product in place, a new key creates
// the product. Every upsert appends exactly one price observation.
type Repository interface {
	// EnsureStore creates a store by its unique name if absent and returns
	// the stored row either way. Existing stores are returned unchanged.
	EnsureStore(ctx context.Context, name, baseURL string) (*domain.Store, error)

	// GetStoreByName retrieves a store by name. Returns ErrNotFound if not exists.
	GetStoreByName(ctx context.Context, name string) (*domain.Store, error)

	// ListStores retrieves all stores ordered by name.
	ListStores(ctx context.Context) ([]*domain.Store, error)

	// SetStoreActive toggles the active flag. Stores are never deleted.
	// Returns ErrNotFound if the store does not exist.
	SetStoreActive(ctx context.Context, name string, active bool) error

	// UpsertSnapshot persists one extraction result transactionally:
	// the product row is created or its mutable fields overwritten, and one
	// price observation is appended stamped with the current time.
	UpsertSnapshot(ctx context.Context, storeID int64, snap *domain.Snapshot) (*UpsertResult, error)

	// GetProduct retrieves a product by ID. Returns ErrNotFound if not exists.
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)

	// GetProductByKey retrieves a product by its natural key.
	// Returns ErrNotFound if not exists.
	GetProductByKey(ctx context.Context, storeID int64, externalID string) (*domain.Product, error)

	// GetHistory retrieves a product's observations in chronological order
	// (oldest first).
	GetHistory(ctx context.Context, productID int64) ([]*domain.PriceObservation, error)

	// GetStatistics derives price statistics from a product's history.
	// Returns ErrNotFound when the product has no observations.
	GetStatistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error)

	// PruneOrphans deletes every product with zero price observations and
	// returns the number removed. Idempotent and safe to run at any time.
	PruneOrphans(ctx context.Context) (int64, error)

	// Close releases the underlying connection resources.
	Close()
}
