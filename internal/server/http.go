package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"telegramBotForecast/internal/finance"
	"telegramBotForecast/internal/forecast"
	"telegramBotForecast/internal/simulation"
)

// Projector runs a projection without side effects.
type Projector interface {
	Project(ctx context.Context, q forecast.Query) (*forecast.Report, error)
}

type Config struct {
	Port      string
	Log       zerolog.Logger
	Webhook   http.HandlerFunc
	Projector Projector
}

type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	projector Projector
}

func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		projector: cfg.Projector,
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	s.router.Post("/telegram/webhook", cfg.Webhook)
	s.router.Route("/api", func(r chi.Router) {
		r.With(middleware.Timeout(90*time.Second)).Post("/projection", s.handleProjection)
	})

	s.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http: listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http: shutting down")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

type projectionRequest struct {
	Symbol          string          `json:"symbol"`
	Amount          decimal.Decimal `json:"amount"`
	StartYear       int             `json:"start_year"`
	HorizonDays     int             `json:"horizon_days"`
	Scenarios       int             `json:"scenarios"`
	Seed            *int64          `json:"seed,omitempty"`
	PercentileLevel float64         `json:"percentile_level"`
}

type projectionResponse struct {
	Symbol            string          `json:"symbol"`
	Amount            decimal.Decimal `json:"amount"`
	StartYear         int             `json:"start_year"`
	Seed              *int64          `json:"seed"`
	FinalValue        decimal.Decimal `json:"final_value"`
	GainOrLoss        decimal.Decimal `json:"gain_or_loss"`
	TotalReturnPct    float64         `json:"total_return_pct"`
	MaxDrawdownPct    float64         `json:"max_drawdown_pct"`
	AnnualDrift       float64         `json:"annual_drift"`
	AnnualVolatility  float64         `json:"annual_volatility"`
	HorizonDays       int             `json:"horizon_days"`
	Scenarios         int             `json:"scenarios"`
	Mean              decimal.Decimal `json:"mean"`
	Median            decimal.Decimal `json:"median"`
	Lower             decimal.Decimal `json:"lower"`
	Upper             decimal.Decimal `json:"upper"`
	PercentileLevel   float64         `json:"percentile_level"`
	ProbabilityOfLoss float64         `json:"probability_of_loss"`
	MeanTrajectory    []float64       `json:"mean_trajectory"`
	Summary           string          `json:"summary"`
}

// handleProjection runs a projection and returns the figures without charts.
// POST /api/projection
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	var req projectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	rep, err := s.projector.Project(r.Context(), forecast.Query{
		Symbol:          req.Symbol,
		Amount:          req.Amount,
		StartYear:       req.StartYear,
		HorizonDays:     req.HorizonDays,
		Scenarios:       req.Scenarios,
		Seed:            req.Seed,
		PercentileLevel: req.PercentileLevel,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Error().Err(err).Str("symbol", req.Symbol).Msg("projection failed")
		}
		http.Error(w, err.Error(), status)
		return
	}

	p := rep.Projection
	s.writeJSON(w, projectionResponse{
		Symbol:            rep.Query.Symbol,
		Amount:            rep.Query.Amount,
		StartYear:         rep.Query.StartYear,
		Seed:              rep.Query.Seed,
		FinalValue:        p.History.FinalValue,
		GainOrLoss:        p.History.GainOrLoss,
		TotalReturnPct:    p.History.TotalReturnPct,
		MaxDrawdownPct:    p.History.MaxDrawdownPct,
		AnnualDrift:       p.Statistics.AnnualizedDrift(),
		AnnualVolatility:  p.Statistics.AnnualizedVolatility(),
		HorizonDays:       rep.Query.HorizonDays,
		Scenarios:         rep.Query.Scenarios,
		Mean:              p.Outlook.Mean,
		Median:            p.Outlook.Median,
		Lower:             p.Outlook.Lower,
		Upper:             p.Outlook.Upper,
		PercentileLevel:   p.Aggregate.PercentileLevel,
		ProbabilityOfLoss: p.Aggregate.ProbabilityOfLoss,
		MeanTrajectory:    p.Aggregate.MeanTrajectory,
		Summary:           rep.Summary(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, forecast.ErrInvalidQuery), errors.Is(err, simulation.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, finance.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, simulation.ErrInsufficientData), errors.Is(err, simulation.ErrInvalidPrice),
		errors.Is(err, simulation.ErrEmptyInput), errors.Is(err, simulation.ErrUnorderedSeries):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
