package simulation

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// tradingDaysPerYear is used only for annualized display figures.
const tradingDaysPerYear = 252.0

// PricePoint is a single daily close.
type PricePoint struct {
	Date  time.Time
	Close float64
}

// PriceSeries is an ordered, validated sequence of daily closes.
// The zero value is an empty series.
type PriceSeries struct {
	points []PricePoint
}

// NewPriceSeries validates points and returns an immutable series.
func NewPriceSeries(points []PricePoint) (PriceSeries, error) {
	if len(points) == 0 {
		return PriceSeries{}, ErrEmptyInput
	}
	for i, p := range points {
		if p.Close <= 0 || math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
			return PriceSeries{}, fmt.Errorf("point %d close %v: %w", i, p.Close, ErrInvalidPrice)
		}
		if i > 0 && !p.Date.After(points[i-1].Date) {
			return PriceSeries{}, fmt.Errorf("point %d (%s): %w", i, p.Date.Format("2006-01-02"), ErrUnorderedSeries)
		}
	}
	cp := make([]PricePoint, len(points))
	copy(cp, points)
	return PriceSeries{points: cp}, nil
}

func (s PriceSeries) Len() int { return len(s.points) }

func (s PriceSeries) At(i int) PricePoint { return s.points[i] }

// Last returns the most recent point. It panics on an empty series.
func (s PriceSeries) Last() PricePoint { return s.points[len(s.points)-1] }

// Closes returns a fresh copy of the closing prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Close
	}
	return out
}

// Dates returns a fresh copy of the dates.
func (s PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Date
	}
	return out
}

// Returns estimates drift and volatility from the series closes.
func (s PriceSeries) Returns() (ReturnStatistics, error) {
	return EstimateReturns(s.Closes())
}

// InvestmentParameters describes the existing holding.
type InvestmentParameters struct {
	InitialAmount decimal.Decimal
	StartDate     time.Time
}

func (p InvestmentParameters) Validate() error {
	if !p.InitialAmount.IsPositive() {
		return fmt.Errorf("initial amount %s must be positive: %w", p.InitialAmount, ErrInvalidConfig)
	}
	return nil
}

// ReturnStatistics holds daily log-return parameters for GBM.
type ReturnStatistics struct {
	Drift        float64 // mean log return minus half the variance
	Variance     float64 // population variance of log returns
	Volatility   float64 // sqrt(Variance)
	Observations int     // number of log returns used
}

func (r ReturnStatistics) AnnualizedDrift() float64 {
	return r.Drift * tradingDaysPerYear
}

func (r ReturnStatistics) AnnualizedVolatility() float64 {
	return r.Volatility * math.Sqrt(tradingDaysPerYear)
}

// MaxPathCells bounds HorizonDays*ScenarioCount for a single run.
const MaxPathCells = 1 << 26

// Config controls the forward simulation.
type Config struct {
	HorizonDays   int
	ScenarioCount int
	Seed          *int64 // nil draws fresh entropy per run
}

func (c Config) Validate() error {
	if c.HorizonDays < 1 {
		return fmt.Errorf("horizon_days %d must be >= 1: %w", c.HorizonDays, ErrInvalidConfig)
	}
	if c.ScenarioCount < 1 {
		return fmt.Errorf("scenario_count %d must be >= 1: %w", c.ScenarioCount, ErrInvalidConfig)
	}
	if c.HorizonDays > MaxPathCells/c.ScenarioCount {
		return fmt.Errorf("horizon_days %d x scenario_count %d exceeds %d cells: %w", c.HorizonDays, c.ScenarioCount, MaxPathCells, ErrInvalidConfig)
	}
	return nil
}

// PathMatrix holds simulated prices indexed by [day][scenario].
// It is never mutated after Simulate returns.
type PathMatrix struct {
	rows    [][]float64
	seed    int64
	hasSeed bool
}

func newPathMatrix(days, scenarios int) *PathMatrix {
	backing := make([]float64, days*scenarios)
	rows := make([][]float64, days)
	for t := range rows {
		rows[t] = backing[t*scenarios : (t+1)*scenarios : (t+1)*scenarios]
	}
	return &PathMatrix{rows: rows}
}

func (m *PathMatrix) Days() int { return len(m.rows) }

func (m *PathMatrix) Scenarios() int {
	if len(m.rows) == 0 {
		return 0
	}
	return len(m.rows[0])
}

func (m *PathMatrix) At(t, s int) float64 { return m.rows[t][s] }

// Row returns a copy of all scenario prices on day t.
func (m *PathMatrix) Row(t int) []float64 {
	out := make([]float64, len(m.rows[t]))
	copy(out, m.rows[t])
	return out
}

// Scenario returns a copy of one simulated path.
func (m *PathMatrix) Scenario(s int) []float64 {
	out := make([]float64, len(m.rows))
	for t, row := range m.rows {
		out[t] = row[s]
	}
	return out
}

// Terminal returns a copy of the last simulated day.
func (m *PathMatrix) Terminal() []float64 { return m.Row(len(m.rows) - 1) }

// Seed reports the seed that drove the run, if one is known.
func (m *PathMatrix) Seed() (int64, bool) { return m.seed, m.hasSeed }

// AggregateResult summarizes a PathMatrix.
type AggregateResult struct {
	MeanTrajectory          []float64
	TerminalMean            float64
	TerminalMedian          float64
	TerminalLowerPercentile float64
	TerminalUpperPercentile float64
	PercentileLevel         float64
	ProbabilityOfLoss       float64 // share of scenarios ending below the anchor

	// Per-day percentile bands at PercentileLevel, 0.5 and 1-PercentileLevel.
	LowerBand  []float64
	MedianBand []float64
	UpperBand  []float64
}

// HistoricalValueSeries is the replayed value of the holding.
type HistoricalValueSeries struct {
	Dates          []time.Time
	Values         []decimal.Decimal
	FinalValue     decimal.Decimal
	GainOrLoss     decimal.Decimal
	TotalReturnPct float64
	MaxDrawdownPct float64
}

// Floats converts the value curve for charting.
func (h HistoricalValueSeries) Floats() []float64 {
	out := make([]float64, len(h.Values))
	for i, v := range h.Values {
		out[i] = v.InexactFloat64()
	}
	return out
}
