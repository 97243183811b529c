package finance

import (
	"fmt"
	"math"
	"sort"
	"time"

	"telegramBotForecast/internal/simulation"
)

// filterPositive removes points where close <= 0 or is not finite, keeping
// timestamp and value arrays aligned. Yahoo reports missing bars as null,
// which decodes to 0.
func filterPositive(ts []int64, cl []float64) ([]int64, []float64) {
	if len(ts) != len(cl) {
		n := min(len(ts), len(cl))
		ts = ts[:n]
		cl = cl[:n]
	}
	outTs := make([]int64, 0, len(ts))
	outCl := make([]float64, 0, len(cl))
	for i := 0; i < len(ts); i++ {
		if cl[i] <= 0 || math.IsNaN(cl[i]) || math.IsInf(cl[i], 0) {
			continue
		}
		outTs = append(outTs, ts[i])
		outCl = append(outCl, cl[i])
	}
	return outTs, outCl
}

// dailyPoints converts bars to exchange-local calendar dates, sorted
// ascending, keeping the last bar seen for each date.
func dailyPoints(ts []int64, cl []float64, loc *time.Location) []simulation.PricePoint {
	idx := make([]int, len(ts))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ts[idx[a]] < ts[idx[b]] })

	out := make([]simulation.PricePoint, 0, len(ts))
	for _, i := range idx {
		tt := time.Unix(ts[i], 0).In(loc)
		day := time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, loc)
		if n := len(out); n > 0 && out[n-1].Date.Equal(day) {
			out[n-1].Close = cl[i]
			continue
		}
		out = append(out, simulation.PricePoint{Date: day, Close: cl[i]})
	}
	return out
}

// buildSeries cleans raw bars into a validated series starting at start.
func buildSeries(symbol string, ts []int64, cl []float64, loc *time.Location, start time.Time) (simulation.PriceSeries, error) {
	ts, cl = filterPositive(ts, cl)
	points := dailyPoints(ts, cl, loc)

	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	k := sort.Search(len(points), func(i int) bool { return !points[i].Date.Before(first) })
	points = points[k:]
	if len(points) == 0 {
		return simulation.PriceSeries{}, fmt.Errorf("%s: %w", symbol, ErrNoData)
	}
	return simulation.NewPriceSeries(points)
}
