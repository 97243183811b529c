package simulation

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// blockSize is the number of scenario columns that share one random stream.
// It is fixed so that the draw assignment never depends on the worker count.
const blockSize = 256

// Simulator generates GBM price paths.
type Simulator struct {
	source  RandomSource
	workers int
}

type Option func(*Simulator)

// WithSource injects the random source used when Config.Seed is nil.
func WithSource(src RandomSource) Option {
	return func(s *Simulator) { s.source = src }
}

// WithWorkers bounds block parallelism. Values below 1 mean GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Simulator) { s.workers = n }
}

func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{}
	for _, o := range opts {
		o(s)
	}
	if s.workers < 1 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Simulate builds a PathMatrix starting from anchor. Each day applies
// p[t] = p[t-1] * exp(drift + volatility*z) to every scenario at once.
func (s *Simulator) Simulate(anchor float64, stats ReturnStatistics, cfg Config) (*PathMatrix, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !validPrice(anchor) {
		return nil, fmt.Errorf("anchor price %v: %w", anchor, ErrInvalidPrice)
	}
	if !finite(stats.Drift) || !finite(stats.Volatility) || stats.Volatility < 0 {
		return nil, fmt.Errorf("drift %v volatility %v: %w", stats.Drift, stats.Volatility, ErrInvalidConfig)
	}

	m := newPathMatrix(cfg.HorizonDays, cfg.ScenarioCount)
	for i := range m.rows[0] {
		m.rows[0][i] = anchor
	}

	var src RandomSource
	switch {
	case cfg.Seed != nil:
		src = NewSeededSource(*cfg.Seed)
		m.seed, m.hasSeed = *cfg.Seed, true
	case s.source != nil:
		src = s.source
	default:
		seed := freshSeed()
		src = NewSeededSource(seed)
		m.seed, m.hasSeed = seed, true
	}

	if cfg.HorizonDays == 1 {
		return m, nil
	}

	blocks := (cfg.ScenarioCount + blockSize - 1) / blockSize
	var g errgroup.Group
	g.SetLimit(s.workers)
	for b := 0; b < blocks; b++ {
		lo := b * blockSize
		hi := min(lo+blockSize, cfg.ScenarioCount)
		stream := src.Stream(b)
		g.Go(func() error {
			walk(m, lo, hi, stream, stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// walk advances columns [lo, hi) through every day. Draws are taken
// day-major within the block.
func walk(m *PathMatrix, lo, hi int, stream Stream, stats ReturnStatistics) {
	growth := make([]float64, hi-lo)
	for t := 1; t < len(m.rows); t++ {
		for i := range growth {
			growth[i] = stream.Rand()
		}
		floats.Scale(stats.Volatility, growth)
		floats.AddConst(stats.Drift, growth)
		for i, x := range growth {
			growth[i] = math.Exp(x)
		}
		floats.MulTo(m.rows[t][lo:hi], m.rows[t-1][lo:hi], growth)
	}
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
