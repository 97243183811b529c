package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"telegramBotForecast/internal/config"
	"telegramBotForecast/internal/finance"
	"telegramBotForecast/internal/forecast"
	"telegramBotForecast/internal/logger"
	"telegramBotForecast/internal/openai"
	"telegramBotForecast/internal/server"
	"telegramBotForecast/internal/simulation"
	"telegramBotForecast/internal/storage"
	"telegramBotForecast/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New(logger.Config{Level: "info"})
		boot.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	// Ensure parent directory for the DB exists
	_ = os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755)
	db, err := storage.OpenSQLite("file:" + cfg.DBPath + "?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	if err := storage.InitSchema(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema")
	}
	log.Info().Str("path", cfg.DBPath).Msg("db: schema ensured (runs table)")

	engine := simulation.NewEngine(simulation.NewSimulator(simulation.WithWorkers(cfg.Simulation.Workers)))
	opts := []forecast.Option{forecast.WithStore(storage.NewStore(db))}
	if cfg.OpenAIKey != "" {
		opts = append(opts, forecast.WithNarrator(openai.NewNarrator(cfg.OpenAIKey)))
	} else {
		log.Info().Msg("OPENAI_API_KEY not set, narration disabled")
	}
	svc := forecast.NewService(finance.NewYahooClient(log), engine, cfg.Simulation, log, opts...)

	tg, err := telegram.NewBot(cfg.TelegramToken, cfg.WebhookPublicURL, svc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize telegram bot")
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Webhook:   tg.WebhookHandler,
		Projector: svc,
	})
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	tg.Wait()
	log.Info().Msg("Server stopped")
}
