package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	TelegramToken    string
	WebhookPublicURL string
	OpenAIKey        string // empty disables narration
	Port             string
	DBPath           string
	LogLevel         string
	LogPretty        bool
	Simulation       Simulation
}

// Bounds shared by every projection request.
const (
	MinStartYear   = 2004
	MaxHorizonDays = 2520
	MaxScenarios   = 20000
)

// Simulation holds the defaults applied to every projection request.
type Simulation struct {
	Amount          decimal.Decimal
	StartYear       int
	HorizonDays     int
	Scenarios       int
	DisplayPaths    int
	PercentileLevel float64
	Seed            *int64
	Workers         int
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
		Port:      getEnv("PORT", "9095"),
		DBPath:    getEnv("DB_PATH", "/app/data/forecast.db"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}
	var err error
	if cfg.TelegramToken, err = mustEnv("TELEGRAM_BOT_TOKEN"); err != nil {
		return Config{}, err
	}
	if cfg.WebhookPublicURL, err = mustEnv("WEBHOOK_PUBLIC_URL"); err != nil {
		return Config{}, err
	}
	if cfg.LogPretty, err = getEnvAsBool("LOG_PRETTY", false); err != nil {
		return Config{}, err
	}
	if cfg.Simulation, err = loadSimulation(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadSimulation() (Simulation, error) {
	var (
		s   Simulation
		err error
	)
	if s.Amount, err = decimal.NewFromString(getEnv("SIM_AMOUNT", "1000")); err != nil {
		return Simulation{}, fmt.Errorf("SIM_AMOUNT: %w", err)
	}
	if s.StartYear, err = getEnvAsInt("SIM_START_YEAR", 2019); err != nil {
		return Simulation{}, err
	}
	if s.HorizonDays, err = getEnvAsInt("SIM_HORIZON_DAYS", 365); err != nil {
		return Simulation{}, err
	}
	if s.Scenarios, err = getEnvAsInt("SIM_SCENARIOS", 1000); err != nil {
		return Simulation{}, err
	}
	if s.DisplayPaths, err = getEnvAsInt("SIM_DISPLAY_PATHS", 50); err != nil {
		return Simulation{}, err
	}
	if s.Workers, err = getEnvAsInt("SIM_WORKERS", 0); err != nil {
		return Simulation{}, err
	}
	if v := os.Getenv("SIM_PERCENTILE"); v != "" {
		if s.PercentileLevel, err = strconv.ParseFloat(v, 64); err != nil {
			return Simulation{}, fmt.Errorf("SIM_PERCENTILE: %w", err)
		}
	} else {
		s.PercentileLevel = 0.05
	}
	if v := os.Getenv("SIM_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Simulation{}, fmt.Errorf("SIM_SEED: %w", err)
		}
		s.Seed = &seed
	}
	return s, s.Validate()
}

func (s Simulation) Validate() error {
	switch {
	case !s.Amount.IsPositive():
		return fmt.Errorf("SIM_AMOUNT must be positive, got %s", s.Amount)
	case s.StartYear < MinStartYear || s.StartYear > time.Now().Year():
		return fmt.Errorf("SIM_START_YEAR must be in [%d,%d], got %d", MinStartYear, time.Now().Year(), s.StartYear)
	case s.HorizonDays < 1 || s.HorizonDays > MaxHorizonDays:
		return fmt.Errorf("SIM_HORIZON_DAYS must be in [1,%d], got %d", MaxHorizonDays, s.HorizonDays)
	case s.Scenarios < 1 || s.Scenarios > MaxScenarios:
		return fmt.Errorf("SIM_SCENARIOS must be in [1,%d], got %d", MaxScenarios, s.Scenarios)
	case s.DisplayPaths < 1 || s.DisplayPaths > s.Scenarios:
		return fmt.Errorf("SIM_DISPLAY_PATHS must be in [1,%d], got %d", s.Scenarios, s.DisplayPaths)
	case !(s.PercentileLevel > 0 && s.PercentileLevel < 1):
		return fmt.Errorf("SIM_PERCENTILE must be in (0,1), got %v", s.PercentileLevel)
	case s.Workers < 0:
		return fmt.Errorf("SIM_WORKERS must be >= 0, got %d", s.Workers)
	}
	return nil
}

func mustEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", fmt.Errorf("missing env %s", k)
	}
	return v, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
