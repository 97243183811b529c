package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"telegramBotForecast/internal/config"
	"telegramBotForecast/internal/finance"
	"telegramBotForecast/internal/openai"
	"telegramBotForecast/internal/simulation"
	"telegramBotForecast/internal/storage"
)

// ErrInvalidQuery reports a request rejected before any data is fetched.
var ErrInvalidQuery = errors.New("invalid query")

// Request bounds. Larger grids are refused before any data is fetched.
const (
	MinStartYear   = config.MinStartYear
	MaxHorizonDays = config.MaxHorizonDays
	MaxScenarios   = config.MaxScenarios
)

// PriceSource loads daily closes from start onwards.
type PriceSource interface {
	FetchDaily(ctx context.Context, symbol string, start time.Time) (simulation.PriceSeries, error)
}

type Narrator interface {
	Narrate(ctx context.Context, in openai.NarrationInput) (string, error)
}

type RunStore interface {
	SaveRun(r storage.RunRecord) error
	RecentRuns(chatID int64, limit int) ([]storage.RunRecord, error)
}

// Query is one projection request. Zero fields take the service defaults.
type Query struct {
	ChatID          int64
	Symbol          string
	Amount          decimal.Decimal
	StartYear       int
	HorizonDays     int
	Scenarios       int
	Seed            *int64
	PercentileLevel float64
	DisplayPaths    int
}

// Report is the outcome of Run.
type Report struct {
	Query           Query
	Projection      *simulation.Projection
	Stats           *finance.HoldingStats // nil when the history is too short
	HistoryChart    []byte
	ProjectionChart []byte
	Narration       string
	CreatedAt       time.Time
}

type Service struct {
	prices   PriceSource
	engine   *simulation.Engine
	store    RunStore // optional
	narrator Narrator // optional
	charts   *finance.ChartCache
	defaults config.Simulation
	log      zerolog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithStore(s RunStore) Option { return func(svc *Service) { svc.store = s } }

func WithNarrator(n Narrator) Option { return func(svc *Service) { svc.narrator = n } }

func WithChartCache(c *finance.ChartCache) Option { return func(svc *Service) { svc.charts = c } }

func NewService(prices PriceSource, engine *simulation.Engine, defaults config.Simulation, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		prices:   prices,
		engine:   engine,
		charts:   finance.NewChartCache(),
		defaults: defaults,
		log:      log.With().Str("component", "forecast").Logger(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Resolve fills zero fields of q from the service defaults and validates it.
func (s *Service) Resolve(q Query) (Query, error) {
	q.Symbol = strings.ToUpper(strings.TrimSpace(q.Symbol))
	if q.Amount.IsZero() {
		q.Amount = s.defaults.Amount
	}
	if q.StartYear == 0 {
		q.StartYear = s.defaults.StartYear
	}
	if q.HorizonDays == 0 {
		q.HorizonDays = s.defaults.HorizonDays
	}
	if q.Scenarios == 0 {
		q.Scenarios = s.defaults.Scenarios
	}
	if q.Seed == nil {
		q.Seed = s.defaults.Seed
	}
	if q.PercentileLevel == 0 {
		q.PercentileLevel = s.defaults.PercentileLevel
	}
	if q.DisplayPaths == 0 {
		q.DisplayPaths = min(s.defaults.DisplayPaths, q.Scenarios)
	}

	switch {
	case q.Symbol == "":
		return q, fmt.Errorf("symbol is required: %w", ErrInvalidQuery)
	case !q.Amount.IsPositive():
		return q, fmt.Errorf("amount must be positive, got %s: %w", q.Amount, ErrInvalidQuery)
	case q.StartYear < MinStartYear || q.StartYear > s.now().Year():
		return q, fmt.Errorf("start year must be in %d..%d, got %d: %w", MinStartYear, s.now().Year(), q.StartYear, ErrInvalidQuery)
	case q.HorizonDays < 1 || q.HorizonDays > MaxHorizonDays:
		return q, fmt.Errorf("horizon must be in 1..%d days, got %d: %w", MaxHorizonDays, q.HorizonDays, ErrInvalidQuery)
	case q.Scenarios < 1 || q.Scenarios > MaxScenarios:
		return q, fmt.Errorf("scenarios must be in 1..%d, got %d: %w", MaxScenarios, q.Scenarios, ErrInvalidQuery)
	}
	return q, nil
}

// Run fetches prices, projects the holding, renders both charts and records
// the run. Narration and persistence failures are logged, never returned.
func (s *Service) Run(ctx context.Context, q Query) (*Report, error) {
	q, err := s.Resolve(q)
	if err != nil {
		return nil, err
	}
	seeded := q.Seed != nil
	rep, lastDate, err := s.project(ctx, q)
	if err != nil {
		return nil, err
	}
	log := s.log.With().Str("symbol", rep.Query.Symbol).Int64("chat_id", rep.Query.ChatID).Logger()

	if err := s.renderCharts(rep, lastDate, seeded); err != nil {
		return nil, err
	}
	if s.store != nil {
		if err := s.store.SaveRun(rep.record()); err != nil {
			log.Warn().Err(err).Msg("save run failed")
		}
	}
	if s.narrator != nil {
		text, err := s.narrator.Narrate(ctx, rep.narrationInput())
		if err != nil {
			log.Warn().Err(err).Msg("narration failed")
		} else {
			rep.Narration = text
		}
	}
	return rep, nil
}

// Project runs the pipeline without charts, persistence or narration.
func (s *Service) Project(ctx context.Context, q Query) (*Report, error) {
	q, err := s.Resolve(q)
	if err != nil {
		return nil, err
	}
	rep, _, err := s.project(ctx, q)
	return rep, err
}

func (s *Service) project(ctx context.Context, q Query) (*Report, time.Time, error) {
	start := time.Date(q.StartYear, 1, 1, 0, 0, 0, 0, time.UTC)
	series, err := s.prices.FetchDaily(ctx, q.Symbol, start)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("fetch %s: %w", q.Symbol, err)
	}

	began := s.now()
	proj, err := s.engine.Project(simulation.Request{
		Series:          series,
		Investment:      simulation.InvestmentParameters{InitialAmount: q.Amount, StartDate: start},
		Config:          simulation.Config{HorizonDays: q.HorizonDays, ScenarioCount: q.Scenarios, Seed: q.Seed},
		PercentileLevel: q.PercentileLevel,
		DisplayCount:    q.DisplayPaths,
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if seed, ok := proj.Paths.Seed(); ok && q.Seed == nil {
		q.Seed = &seed
	}
	s.log.Info().
		Str("symbol", q.Symbol).
		Int("points", series.Len()).
		Int("horizon_days", q.HorizonDays).
		Int("scenarios", q.Scenarios).
		Dur("elapsed", s.now().Sub(began)).
		Str("final_value", proj.History.FinalValue.StringFixed(2)).
		Msg("projection complete")

	rep := &Report{Query: q, Projection: proj, CreatedAt: s.now()}
	if stats, err := finance.CalculateHoldingStats(proj.History); err == nil {
		rep.Stats = stats
	}
	return rep, series.Last().Date, nil
}

// RecentRuns lists the latest runs for a chat.
func (s *Service) RecentRuns(chatID int64, limit int) ([]storage.RunRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.RecentRuns(chatID, limit)
}

// renderCharts draws both charts concurrently. Projection images are only
// cached for seeded queries since unseeded runs never repeat. A series or
// horizon too short to draw leaves the chart nil.
func (s *Service) renderCharts(rep *Report, lastDate time.Time, seeded bool) error {
	q := rep.Query
	histKey := fmt.Sprintf("hist|%s|%s|%d|%s", q.Symbol, q.Amount, q.StartYear, lastDate.Format("2006-01-02"))
	projKey := ""
	if seeded {
		projKey = fmt.Sprintf("proj|%s|%d|%d|%d|%g|%d", histKey, q.HorizonDays, q.Scenarios, *q.Seed, q.PercentileLevel, q.DisplayPaths)
	}

	var g errgroup.Group
	if len(rep.Projection.History.Dates) >= 2 {
		g.Go(func() error {
			img, err := s.cachedChart(histKey, func() ([]byte, error) {
				return finance.HistoryChart(q.Symbol, rep.Projection.History)
			})
			if err != nil {
				return fmt.Errorf("history chart: %w", err)
			}
			rep.HistoryChart = img
			return nil
		})
	}
	if q.HorizonDays >= 2 {
		g.Go(func() error {
			img, err := s.cachedChart(projKey, func() ([]byte, error) {
				return finance.ProjectionChart(q.Symbol, rep.Projection)
			})
			if err != nil {
				return fmt.Errorf("projection chart: %w", err)
			}
			rep.ProjectionChart = img
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) cachedChart(key string, render func() ([]byte, error)) ([]byte, error) {
	if key != "" {
		if img, ok := s.charts.Get(key); ok {
			return img, nil
		}
	}
	img, err := render()
	if err != nil {
		return nil, err
	}
	if key != "" {
		s.charts.Set(key, img)
	}
	return img, nil
}

func (r *Report) record() storage.RunRecord {
	o := r.Projection.Outlook
	return storage.RunRecord{
		ChatID:      r.Query.ChatID,
		Symbol:      r.Query.Symbol,
		Amount:      r.Query.Amount,
		StartDate:   time.Date(r.Query.StartYear, 1, 1, 0, 0, 0, 0, time.UTC),
		HorizonDays: r.Query.HorizonDays,
		Scenarios:   r.Query.Scenarios,
		Seed:        r.Query.Seed,
		FinalValue:  r.Projection.History.FinalValue,
		MedianValue: o.Median,
		LowerValue:  o.Lower,
		CreatedAt:   r.CreatedAt,
	}
}

func (r *Report) narrationInput() openai.NarrationInput {
	p := r.Projection
	return openai.NarrationInput{
		Symbol:            r.Query.Symbol,
		Amount:            r.Query.Amount,
		StartYear:         r.Query.StartYear,
		FinalValue:        p.History.FinalValue,
		HorizonDays:       r.Query.HorizonDays,
		Scenarios:         r.Query.Scenarios,
		Mean:              p.Outlook.Mean,
		Median:            p.Outlook.Median,
		Lower:             p.Outlook.Lower,
		Upper:             p.Outlook.Upper,
		PercentileLevel:   p.Aggregate.PercentileLevel,
		ProbabilityOfLoss: p.Aggregate.ProbabilityOfLoss,
		AnnualDrift:       p.Statistics.AnnualizedDrift(),
		AnnualVolatility:  p.Statistics.AnnualizedVolatility(),
	}
}
