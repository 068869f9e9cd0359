package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kasperit/Price-Tracker/internal/domain"
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

// UpsertSnapshot persists one extraction result transactionally: the product
// row is created or its mutable fields overwritten via the natural-key
// conflict target, then one price observation is appended. Concurrent first
// inserts of the same (store_id, external_id) resolve to an update.
func (r *Repository) UpsertSnapshot(ctx context.Context, storeID int64, snap *domain.Snapshot) (*storage.UpsertResult, error) {
	if snap == nil || storeID <= 0 || snap.ExternalID == "" || snap.Name == "" || snap.Price < 0 {
		return nil, storage.ErrInvalidInput
	}

	currency := snap.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	upsertQuery := `
		INSERT INTO products (store_id, external_id, name, url, brand, image_url, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (store_id, external_id) DO UPDATE SET
			name         = EXCLUDED.name,
			url          = EXCLUDED.url,
			brand        = EXCLUDED.brand,
			image_url    = EXCLUDED.image_url,
			is_available = EXCLUDED.is_available,
			updated_at   = now()
		RETURNING id, (created_at = updated_at) AS created
	`

	var (
		productID int64
		created   bool
	)
	err = tx.QueryRow(ctx, upsertQuery,
		storeID,
		snap.ExternalID,
		snap.Name,
		snap.URL,
		snap.Brand,
		snap.ImageURL,
		snap.Available,
	).Scan(&productID, &created)
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	obsQuery := `
		INSERT INTO price_observations (product_id, price, original_price, currency)
		VALUES ($1, $2, $3, $4)
	`

	if _, err := tx.Exec(ctx, obsQuery, productID, snap.Price, snap.OriginalPrice, currency); err != nil {
		return nil, fmt.Errorf("append price observation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert: %w", err)
	}

	return &storage.UpsertResult{ProductID: productID, Created: created}, nil
}

// GetProduct retrieves a product by ID. Returns ErrNotFound if not exists.
func (r *Repository) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT id, store_id, external_id, name, url, brand, image_url, is_available, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, productID)
	p, err := scanProduct(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProductByKey retrieves a product by its natural key.
// Returns ErrNotFound if not exists.
func (r *Repository) GetProductByKey(ctx context.Context, storeID int64, externalID string) (*domain.Product, error) {
	query := `
		SELECT id, store_id, external_id, name, url, brand, image_url, is_available, created_at, updated_at
		FROM products
		WHERE store_id = $1 AND external_id = $2
	`

	row := r.pool.QueryRow(ctx, query, storeID, externalID)
	p, err := scanProduct(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get product by key: %w", err)
	}
	return p, nil
}

// PruneOrphans deletes every product with zero price observations.
// Idempotent; cascades remove any dangling observations.
func (r *Repository) PruneOrphans(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM products
		WHERE NOT EXISTS (
			SELECT 1 FROM price_observations o WHERE o.product_id = products.id
		)
	`

	ct, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prune orphan products: %w", err)
	}
	return ct.RowsAffected(), nil
}

// scanProduct scans a single product row.
func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.StoreID,
		&p.ExternalID,
		&p.Name,
		&p.URL,
		&p.Brand,
		&p.ImageURL,
		&p.IsAvailable,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
