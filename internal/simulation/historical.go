package simulation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Valuate replays the holding over the series:
// value[i] = (price[i] / price[0]) * initial_amount.
func Valuate(series PriceSeries, params InvestmentParameters) (HistoricalValueSeries, error) {
	if series.Len() == 0 {
		return HistoricalValueSeries{}, ErrEmptyInput
	}
	if err := params.Validate(); err != nil {
		return HistoricalValueSeries{}, err
	}

	closes := series.Closes()
	if closes[0] <= 0 {
		return HistoricalValueSeries{}, fmt.Errorf("purchase price %v: %w", closes[0], ErrInvalidPrice)
	}
	base := decimal.NewFromFloat(closes[0])

	values := make([]decimal.Decimal, len(closes))
	values[0] = params.InitialAmount
	for i := 1; i < len(closes); i++ {
		values[i] = decimal.NewFromFloat(closes[i]).Div(base).Mul(params.InitialAmount)
	}

	final := values[len(values)-1]
	out := HistoricalValueSeries{
		Dates:      series.Dates(),
		Values:     values,
		FinalValue: final,
		GainOrLoss: final.Sub(params.InitialAmount),
	}
	out.TotalReturnPct = out.GainOrLoss.Div(params.InitialAmount).InexactFloat64() * 100
	out.MaxDrawdownPct = maxDrawdown(out.Floats()) * 100
	return out, nil
}

// maxDrawdown is the largest peak-to-trough decline as a fraction of the peak.
func maxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	dd := 0.0
	peak := values[0]
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if d := (peak - v) / peak; d > dd {
				dd = d
			}
		}
	}
	return dd
}
