package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kasperit/Price-Tracker/internal/domain"
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

// EnsureStore creates a store by its unique name if absent and returns the
// stored row either way. Concurrent calls for the same name are safe: the
// insert is absorbed by the unique constraint.
func (r *Repository) EnsureStore(ctx context.Context, name, baseURL string) (*domain.Store, error) {
	if name == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO stores (name, base_url)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, name, baseURL); err != nil {
		return nil, fmt.Errorf("ensure store: %w", err)
	}

	return r.GetStoreByName(ctx, name)
}

// GetStoreByName retrieves a store by name. Returns ErrNotFound if not exists.
func (r *Repository) GetStoreByName(ctx context.Context, name string) (*domain.Store, error) {
	query := `
		SELECT id, name, base_url, is_active, created_at
		FROM stores
		WHERE name = $1
	`

	row := r.pool.QueryRow(ctx, query, name)
	s, err := scanStore(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get store by name: %w", err)
	}
	return s, nil
}

// ListStores retrieves all stores ordered by name.
func (r *Repository) ListStores(ctx context.Context) ([]*domain.Store, error) {
	query := `
		SELECT id, name, base_url, is_active, created_at
		FROM stores
		ORDER BY name ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var result []*domain.Store
	for rows.Next() {
		s, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store rows: %w", err)
	}

	return result, nil
}

// SetStoreActive toggles the active flag. Returns ErrNotFound if the store
// does not exist.
func (r *Repository) SetStoreActive(ctx context.Context, name string, active bool) error {
	query := `UPDATE stores SET is_active = $2 WHERE name = $1`

	ct, err := r.pool.Exec(ctx, query, name, active)
	if err != nil {
		return fmt.Errorf("set store active: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanStore scans a single store row.
func scanStore(row pgx.Row) (*domain.Store, error) {
	var s domain.Store
	err := row.Scan(&s.ID, &s.Name, &s.BaseURL, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
