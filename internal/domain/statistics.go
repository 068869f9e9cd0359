package domain

// PriceStatistics holds derived statistics over a product's observation
// history. Never stored; recomputed on demand from the chronological history.
type PriceStatistics struct {
	Current       float64  // most recent observed price
	Min           float64
	Max           float64
	Avg           float64  // rounded to two decimals
	ChangePercent *float64 // change from the first observation, rounded to one decimal; nil when the first price is zero
}
