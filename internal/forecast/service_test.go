package forecast

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegramBotForecast/internal/config"
	"telegramBotForecast/internal/finance"
	"telegramBotForecast/internal/openai"
	"telegramBotForecast/internal/simulation"
	"telegramBotForecast/internal/storage"
)

type fakePrices struct {
	closes []float64
	err    error

	mu     sync.Mutex
	calls  int
	starts []time.Time
}

func (f *fakePrices) FetchDaily(_ context.Context, symbol string, start time.Time) (simulation.PriceSeries, error) {
	f.mu.Lock()
	f.calls++
	f.starts = append(f.starts, start)
	f.mu.Unlock()
	if f.err != nil {
		return simulation.PriceSeries{}, f.err
	}
	points := make([]simulation.PricePoint, len(f.closes))
	for i, c := range f.closes {
		points[i] = simulation.PricePoint{Date: start.AddDate(0, 0, i+1), Close: c}
	}
	return simulation.NewPriceSeries(points)
}

type fakeStore struct {
	runs []storage.RunRecord
	err  error
}

func (f *fakeStore) SaveRun(r storage.RunRecord) error {
	if f.err != nil {
		return f.err
	}
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeStore) RecentRuns(chatID int64, limit int) ([]storage.RunRecord, error) {
	return f.runs, nil
}

type fakeNarrator struct {
	got  openai.NarrationInput
	text string
	err  error
}

func (f *fakeNarrator) Narrate(_ context.Context, in openai.NarrationInput) (string, error) {
	f.got = in
	return f.text, f.err
}

func defaults() config.Simulation {
	return config.Simulation{
		Amount:          decimal.NewFromInt(1000),
		StartYear:       2019,
		HorizonDays:     30,
		Scenarios:       40,
		DisplayPaths:    5,
		PercentileLevel: 0.05,
	}
}

func newTestService(prices PriceSource, opts ...Option) *Service {
	s := NewService(prices, simulation.NewEngine(nil), defaults(), zerolog.Nop(), opts...)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func seed(v int64) *int64 { return &v }

func TestService_Run(t *testing.T) {
	prices := &fakePrices{closes: []float64{100, 105, 102, 108}}
	store := &fakeStore{}
	narrator := &fakeNarrator{text: "steady growth"}
	s := newTestService(prices, WithStore(store), WithNarrator(narrator))

	rep, err := s.Run(context.Background(), Query{ChatID: 9, Symbol: " aapl ", StartYear: 2024, Seed: seed(7)})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rep.Query.Symbol)
	require.Len(t, prices.starts, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), prices.starts[0])

	assert.True(t, rep.Projection.History.FinalValue.Equal(decimal.NewFromInt(1080)))
	assert.True(t, bytes.HasPrefix(rep.HistoryChart, []byte("\x89PNG")))
	assert.True(t, bytes.HasPrefix(rep.ProjectionChart, []byte("\x89PNG")))
	assert.Equal(t, "steady growth", rep.Narration)

	require.Len(t, store.runs, 1)
	run := store.runs[0]
	assert.Equal(t, int64(9), run.ChatID)
	assert.Equal(t, "AAPL", run.Symbol)
	assert.Equal(t, 30, run.HorizonDays)
	assert.Equal(t, 40, run.Scenarios)
	require.NotNil(t, run.Seed)
	assert.Equal(t, int64(7), *run.Seed)
	assert.True(t, run.FinalValue.Equal(decimal.NewFromInt(1080)))
	assert.True(t, run.MedianValue.Equal(rep.Projection.Outlook.Median))

	assert.Equal(t, "AAPL", narrator.got.Symbol)
	assert.True(t, narrator.got.FinalValue.Equal(decimal.NewFromInt(1080)))
	assert.Equal(t, 0.05, narrator.got.PercentileLevel)
}

func TestService_RunSummary(t *testing.T) {
	s := newTestService(&fakePrices{closes: []float64{100, 105, 102, 108}})

	rep, err := s.Run(context.Background(), Query{Symbol: "AAPL", StartYear: 2024, Seed: seed(1)})
	require.NoError(t, err)

	sum := rep.Summary()
	assert.Contains(t, sum, "AAPL • 1000.00 invested in 2024")
	assert.Contains(t, sum, "Final value: 1080.00")
	assert.Contains(t, sum, "Gain/Loss: +80.00 (+8.00%)")
	assert.Contains(t, sum, "Max drawdown: 2.86%")
	assert.Contains(t, sum, "CAGR: ")
	assert.Contains(t, sum, "Next 30 trading days • 40 scenarios")
	assert.Contains(t, sum, "Median: ")
	assert.Contains(t, sum, "P5: ")
	assert.Contains(t, sum, "P95: ")
	assert.Contains(t, sum, "P(loss): ")
	assert.Contains(t, sum, "Seed: 1")
}

func TestService_RunLossSummary(t *testing.T) {
	s := newTestService(&fakePrices{closes: []float64{100, 90}})

	rep, err := s.Run(context.Background(), Query{Symbol: "X", StartYear: 2024, Amount: decimal.NewFromInt(500), Seed: seed(1)})
	require.NoError(t, err)
	assert.Contains(t, rep.Summary(), "Gain/Loss: -50.00 (-10.00%)")
	assert.Nil(t, rep.Stats)
	assert.NotContains(t, rep.Summary(), "CAGR")
}

func TestService_RunRecordsFreshSeed(t *testing.T) {
	store := &fakeStore{}
	s := newTestService(&fakePrices{closes: []float64{100, 101, 99, 102}}, WithStore(store))

	rep, err := s.Run(context.Background(), Query{Symbol: "SPY", StartYear: 2024})
	require.NoError(t, err)
	require.NotNil(t, rep.Query.Seed)
	require.Len(t, store.runs, 1)
	require.NotNil(t, store.runs[0].Seed)
	assert.Equal(t, *rep.Query.Seed, *store.runs[0].Seed)

	// the reported seed replays the same paths
	again, err := s.Project(context.Background(), Query{Symbol: "SPY", StartYear: 2024, Seed: rep.Query.Seed})
	require.NoError(t, err)
	assert.Equal(t, rep.Projection.Aggregate.MeanTrajectory, again.Projection.Aggregate.MeanTrajectory)
}

func TestService_RunSeededChartsAreCached(t *testing.T) {
	cache := finance.NewChartCache()
	s := newTestService(&fakePrices{closes: []float64{100, 105, 102, 108}}, WithChartCache(cache))

	q := Query{Symbol: "AAPL", StartYear: 2024, Seed: seed(5)}
	first, err := s.Run(context.Background(), q)
	require.NoError(t, err)
	second, err := s.Run(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.ProjectionChart, second.ProjectionChart)
	assert.Equal(t, first.HistoryChart, second.HistoryChart)
}

func TestService_RunSingleDayHorizonSkipsProjectionChart(t *testing.T) {
	s := newTestService(&fakePrices{closes: []float64{100, 105}})

	rep, err := s.Run(context.Background(), Query{Symbol: "TWO", StartYear: 2024, HorizonDays: 1, Seed: seed(1)})
	require.NoError(t, err)
	assert.NotNil(t, rep.HistoryChart)
	assert.Nil(t, rep.ProjectionChart)
}

func TestService_RunToleratesSideEffectFailures(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	narrator := &fakeNarrator{err: errors.New("quota")}
	s := newTestService(&fakePrices{closes: []float64{100, 105}}, WithStore(store), WithNarrator(narrator))

	rep, err := s.Run(context.Background(), Query{Symbol: "AAPL", StartYear: 2024, Seed: seed(1)})
	require.NoError(t, err)
	assert.Empty(t, rep.Narration)
}

func TestService_RunFetchError(t *testing.T) {
	s := newTestService(&fakePrices{err: finance.ErrNoData})

	_, err := s.Run(context.Background(), Query{Symbol: "NOPE"})
	assert.ErrorIs(t, err, finance.ErrNoData)
	assert.Contains(t, err.Error(), "NOPE")
}

func TestService_RunEngineError(t *testing.T) {
	s := newTestService(&fakePrices{closes: []float64{100}})

	// a single close cannot be calibrated
	_, err := s.Run(context.Background(), Query{Symbol: "ONE", StartYear: 2024, HorizonDays: 5})
	assert.ErrorIs(t, err, simulation.ErrInsufficientData)
}

func TestService_Resolve(t *testing.T) {
	s := newTestService(&fakePrices{})

	q, err := s.Resolve(Query{Symbol: "msft"})
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.Symbol)
	assert.True(t, q.Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 2019, q.StartYear)
	assert.Equal(t, 30, q.HorizonDays)
	assert.Equal(t, 40, q.Scenarios)
	assert.Equal(t, 5, q.DisplayPaths)
	assert.Equal(t, 0.05, q.PercentileLevel)
	assert.Nil(t, q.Seed)

	q, err = s.Resolve(Query{Symbol: "msft", Scenarios: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, q.DisplayPaths)
}

func TestService_ResolveErrors(t *testing.T) {
	s := newTestService(&fakePrices{})
	cases := map[string]Query{
		"empty symbol":     {Symbol: "  "},
		"negative amount":  {Symbol: "A", Amount: decimal.NewFromInt(-5)},
		"too early":        {Symbol: "A", StartYear: 2003},
		"future":           {Symbol: "A", StartYear: 2025},
		"negative horizon": {Symbol: "A", HorizonDays: -1},
		"huge horizon":     {Symbol: "A", HorizonDays: 1 << 62, Scenarios: 4},
		"too many days":    {Symbol: "A", HorizonDays: MaxHorizonDays + 1},
		"negative count":   {Symbol: "A", Scenarios: -3},
		"too many paths":   {Symbol: "A", Scenarios: MaxScenarios + 1},
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Resolve(q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}

	_, err := s.Run(context.Background(), Query{Symbol: "A", HorizonDays: 1 << 62, Scenarios: 4})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestService_RecentRuns(t *testing.T) {
	runs, err := newTestService(&fakePrices{}).RecentRuns(1, 5)
	require.NoError(t, err)
	assert.Nil(t, runs)

	store := &fakeStore{runs: []storage.RunRecord{{Symbol: "A"}}}
	runs, err = newTestService(&fakePrices{}, WithStore(store)).RecentRuns(1, 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
