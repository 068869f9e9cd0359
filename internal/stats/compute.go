// Package stats derives price statistics from a product's observation
// history. Statistics are never stored; both repository implementations
// recompute them on demand through Compute so the results always agree.
package stats

import (
	"math"

	"github.com/Kasperit/Price-Tracker/internal/domain"
)

// Compute calculates price statistics over a chronologically ordered
// observation history (oldest first). Returns nil for an empty history.
//
// Current is the most recent price, Avg is rounded to two decimals and
// ChangePercent is the percentage change from the first observation to the
// most recent one, rounded to one decimal. ChangePercent is nil when the
// first observed price is zero.
func Compute(history []*domain.PriceObservation) *domain.PriceStatistics {
	n := len(history)
	if n == 0 {
		return nil
	}

	prices := make([]float64, n)
	for i, obs := range history {
		prices[i] = obs.Price
	}

	first := prices[0]
	current := prices[n-1]

	s := &domain.PriceStatistics{
		Current: current,
		Min:     computeMin(prices),
		Max:     computeMax(prices),
		Avg:     round2(computeMean(prices)),
	}

	if first > 0 {
		change := round1((current - first) / first * 100)
		s.ChangePercent = &change
	}

	return s
}

func computeMin(values []float64) float64 {
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

func computeMax(values []float64) float64 {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func computeMean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
