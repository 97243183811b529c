package simulation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultPercentileLevel is the lower-tail level reported when none is given.
const DefaultPercentileLevel = 0.05

// Aggregate reduces a PathMatrix to its mean trajectory and terminal
// distribution statistics. level selects the lower tail, e.g. 0.05.
func Aggregate(m *PathMatrix, level float64) (AggregateResult, error) {
	if m == nil || m.Days() == 0 || m.Scenarios() == 0 {
		return AggregateResult{}, ErrEmptyInput
	}
	if !(level > 0 && level < 1) {
		return AggregateResult{}, fmt.Errorf("percentile level %v must be in (0,1): %w", level, ErrInvalidConfig)
	}

	days := m.Days()
	res := AggregateResult{
		MeanTrajectory:  make([]float64, days),
		LowerBand:       make([]float64, days),
		MedianBand:      make([]float64, days),
		UpperBand:       make([]float64, days),
		PercentileLevel: level,
	}
	sorted := make([]float64, m.Scenarios())
	for t := 0; t < days; t++ {
		copy(sorted, m.rows[t])
		res.MeanTrajectory[t] = stat.Mean(sorted, nil)
		sort.Float64s(sorted)
		res.LowerBand[t] = Percentile(sorted, level)
		res.MedianBand[t] = Percentile(sorted, 0.5)
		res.UpperBand[t] = Percentile(sorted, 1-level)
	}

	// sorted now holds the terminal day.
	last := days - 1
	res.TerminalMean = res.MeanTrajectory[last]
	res.TerminalMedian = res.MedianBand[last]
	res.TerminalLowerPercentile = res.LowerBand[last]
	res.TerminalUpperPercentile = res.UpperBand[last]

	anchor := m.rows[0][0]
	below := sort.SearchFloat64s(sorted, anchor)
	res.ProbabilityOfLoss = float64(below) / float64(len(sorted))
	return res, nil
}

// Percentile returns the p-quantile (0 <= p <= 1) of ascending-sorted data
// by linear interpolation between the order statistics at rank p*(n-1).
// This matches numpy's default "linear" method.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
