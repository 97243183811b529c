package simulation

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// DefaultDisplayCount is the number of individual paths exposed for display.
const DefaultDisplayCount = 50

// Request is a full projection request for one holding.
type Request struct {
	Series          PriceSeries
	Investment      InvestmentParameters
	Config          Config
	PercentileLevel float64 // 0 means DefaultPercentileLevel
	DisplayCount    int     // 0 means min(DefaultDisplayCount, ScenarioCount)
}

// HoldingOutlook expresses terminal price statistics as holding values.
type HoldingOutlook struct {
	Units  decimal.Decimal // final historical value / anchor price
	Mean   decimal.Decimal
	Median decimal.Decimal
	Lower  decimal.Decimal
	Upper  decimal.Decimal
}

// Projection combines the historical replay with the forward simulation.
type Projection struct {
	History    HistoricalValueSeries
	Statistics ReturnStatistics
	Anchor     float64
	Paths      *PathMatrix
	Aggregate  AggregateResult
	Samples    [][]float64
	Outlook    HoldingOutlook
}

// Engine runs projections with a shared Simulator.
type Engine struct {
	sim *Simulator
}

func NewEngine(sim *Simulator) *Engine {
	if sim == nil {
		sim = NewSimulator()
	}
	return &Engine{sim: sim}
}

// Project runs the historical and forward branches concurrently. Each
// branch reads its own copy of the closes.
func (e *Engine) Project(req Request) (*Projection, error) {
	level := req.PercentileLevel
	if level == 0 {
		level = DefaultPercentileLevel
	}
	display := req.DisplayCount
	if display == 0 {
		display = min(DefaultDisplayCount, req.Config.ScenarioCount)
	}
	if err := req.Config.Validate(); err != nil {
		return nil, err
	}
	if display < 1 || display > req.Config.ScenarioCount {
		return nil, fmt.Errorf("display count %d must be in [1,%d]: %w", display, req.Config.ScenarioCount, ErrInvalidConfig)
	}
	if req.Series.Len() == 0 {
		return nil, ErrEmptyInput
	}

	out := &Projection{}
	var g errgroup.Group
	g.Go(func() error {
		hist, err := Valuate(req.Series, req.Investment)
		if err != nil {
			return err
		}
		out.History = hist
		return nil
	})
	g.Go(func() error {
		closes := req.Series.Closes()
		stats, err := EstimateReturns(closes)
		if err != nil {
			return err
		}
		anchor := closes[len(closes)-1]
		paths, err := e.sim.Simulate(anchor, stats, req.Config)
		if err != nil {
			return err
		}
		agg, err := Aggregate(paths, level)
		if err != nil {
			return err
		}
		out.Statistics, out.Anchor, out.Paths, out.Aggregate = stats, anchor, paths, agg
		out.Samples = make([][]float64, display)
		for s := range out.Samples {
			out.Samples[s] = paths.Scenario(s)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.Outlook = outlook(out.History.FinalValue, out.Anchor, out.Aggregate)
	return out, nil
}

func outlook(finalValue decimal.Decimal, anchor float64, agg AggregateResult) HoldingOutlook {
	units := finalValue.Div(decimal.NewFromFloat(anchor))
	value := func(price float64) decimal.Decimal {
		return units.Mul(decimal.NewFromFloat(price)).Round(2)
	}
	return HoldingOutlook{
		Units:  units,
		Mean:   value(agg.TerminalMean),
		Median: value(agg.TerminalMedian),
		Lower:  value(agg.TerminalLowerPercentile),
		Upper:  value(agg.TerminalUpperPercentile),
	}
}
