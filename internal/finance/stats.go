package finance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"telegramBotForecast/internal/simulation"
)

const tradingDaysPerYear = 252.0

// HoldingStats describes the realized performance of a replayed holding.
type HoldingStats struct {
	TotalReturn  float64 // percent
	AnnualReturn float64 // geometric, percent
	Volatility   float64 // annualized, percent
	SharpeRatio  float64 // risk-free rate assumed to be 0
	MaxDrawdown  float64 // percent
	NumDays      int
}

// CalculateHoldingStats computes realized statistics from the value curve
// using simple daily returns and sample (N-1) volatility.
func CalculateHoldingStats(hist simulation.HistoricalValueSeries) (*HoldingStats, error) {
	values := hist.Floats()
	if len(values) < 3 {
		return nil, fmt.Errorf("need at least 3 values for statistics, got %d", len(values))
	}
	initial, final := values[0], values[len(values)-1]

	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		returns[i-1] = values[i]/values[i-1] - 1
	}

	years := float64(len(returns)) / tradingDaysPerYear
	var annualReturn float64
	if years > 0 && final > 0 && initial > 0 {
		annualReturn = math.Pow(final/initial, 1/years) - 1
	}
	annualVol := stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)

	var sharpe float64
	if annualVol > 0 {
		sharpe = annualReturn / annualVol
	}

	stats := &HoldingStats{
		TotalReturn:  hist.TotalReturnPct,
		AnnualReturn: annualReturn * 100,
		Volatility:   annualVol * 100,
		SharpeRatio:  sharpe,
		MaxDrawdown:  hist.MaxDrawdownPct,
		NumDays:      len(values),
	}
	for name, v := range map[string]float64{
		"annual return": stats.AnnualReturn,
		"volatility":    stats.Volatility,
		"Sharpe ratio":  stats.SharpeRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid %s: %f", name, v)
		}
	}
	return stats, nil
}
