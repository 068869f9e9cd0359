package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kasperit/Price-Tracker/internal/domain"
	"github.com/Kasperit/Price-Tracker/internal/stats"
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

// GetHistory returns the full price history of a product in chronological
// order. An empty slice means the product has no observations yet.
func (r *Repository) GetHistory(ctx context.Context, productID int64) ([]*domain.PriceObservation, error) {
	query := `
		SELECT id, product_id, price::float8, original_price::float8, currency, observed_at
		FROM price_observations
		WHERE product_id = $1
		ORDER BY observed_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetStatistics computes summary statistics over a product's price history.
// Returns ErrNotFound when the product has no observations.
func (r *Repository) GetStatistics(ctx context.Context, productID int64) (*domain.PriceStatistics, error) {
	history, err := r.GetHistory(ctx, productID)
	if err != nil {
		return nil, err
	}

	st := stats.Compute(history)
	if st == nil {
		return nil, storage.ErrNotFound
	}
	return st, nil
}

// scanObservations scans all observation rows.
func scanObservations(rows pgx.Rows) ([]*domain.PriceObservation, error) {
	var observations []*domain.PriceObservation
	for rows.Next() {
		var o domain.PriceObservation
		err := rows.Scan(
			&o.ID,
			&o.ProductID,
			&o.Price,
			&o.OriginalPrice,
			&o.Currency,
			&o.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		observations = append(observations, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}
	return observations, nil
}
