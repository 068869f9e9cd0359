package domain

import (
	"math"
	"time"
)

// PriceObservation is one snapshot of a product's price at a point in time.
// Corresponds to the price_observations table in PostgreSQL.
// Observations are append-only: never mutated, deleted only by cascade when
// the owning product is deleted.
type PriceObservation struct {
	ID            int64     // PRIMARY KEY
	ProductID     int64     // owning product
	Price         float64   // observed price
	OriginalPrice *float64  // list price, nil when not on sale
	Currency      string    // ISO 4217 code
	ObservedAt    time.Time // assigned by the storage layer at write time
}

// DiscountPercent derives the discount relative to the original price,
// rounded to one decimal. Nil when there is no original price or the
// original is not greater than the observed price.
func (o *PriceObservation) DiscountPercent() *float64 {
	if o.OriginalPrice == nil || *o.OriginalPrice <= o.Price {
		return nil
	}
	pct := (*o.OriginalPrice - o.Price) / *o.OriginalPrice * 100
	pct = math.Round(pct*10) / 10
	return &pct
}
