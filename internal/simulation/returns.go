package simulation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// EstimateReturns derives GBM parameters from daily closes.
//
// Log returns r[i] = ln(p[i]/p[i-1]) are summarized with the population
// variance (denominator n). The drift carries the Ito correction:
// drift = mean(r) - variance/2.
func EstimateReturns(closes []float64) (ReturnStatistics, error) {
	if len(closes) < 2 {
		return ReturnStatistics{}, fmt.Errorf("got %d prices: %w", len(closes), ErrInsufficientData)
	}

	logReturns := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if !validPrice(prev) || !validPrice(cur) {
			return ReturnStatistics{}, fmt.Errorf("prices %v -> %v at index %d: %w", prev, cur, i, ErrInvalidPrice)
		}
		r := math.Log(cur / prev)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return ReturnStatistics{}, fmt.Errorf("log return at index %d is %v: %w", i, r, ErrInvalidPrice)
		}
		logReturns[i-1] = r
	}

	mean, variance := stat.PopMeanVariance(logReturns, nil)
	// Rounding can leave a tiny negative variance on constant input.
	if variance < 0 {
		variance = 0
	}
	return ReturnStatistics{
		Drift:        mean - 0.5*variance,
		Variance:     variance,
		Volatility:   math.Sqrt(variance),
		Observations: len(logReturns),
	}, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
