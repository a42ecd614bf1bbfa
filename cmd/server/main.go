package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fibernet/kpicore/internal/cache"
	"github.com/fibernet/kpicore/internal/config"
	"github.com/fibernet/kpicore/internal/db"
	httpapi "github.com/fibernet/kpicore/internal/http"
	"github.com/fibernet/kpicore/internal/service"
	"github.com/fibernet/kpicore/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "kpicore").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}
	if err := store.SeedConfiguracion(ctx, settings.Defaults()); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed settings")
	}

	var cch *cache.Cache
	if cfg.RedisURL != "" {
		cch, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, running without cache")
			cch = nil
		}
	} else {
		logger.Info().Msg("no REDIS_URL, running without cache")
	}
	defer cch.Close()

	sets := settings.New(store)
	agg := &service.Aggregator{Store: store, Settings: sets, Logger: logger}
	eval := &service.Evaluator{Store: store, Settings: sets, Logger: logger}
	det := &service.Detector{Store: store, Logger: logger}
	snap := &service.Snapshot{Store: store, Settings: sets, Cache: cch, Logger: logger}

	sched := &service.Scheduler{
		Aggregator: agg,
		Evaluator:  eval,
		Settings:   sets,
		Cache:      cch,
		Interval:   cfg.AggregateInterval,
		Logger:     logger,
	}
	schedCtx, stopSched := context.WithCancel(ctx)
	go sched.Run(schedCtx)

	router := httpapi.Router(cfg, store, httpapi.Services{
		Settings:   sets,
		Aggregator: agg,
		Evaluator:  eval,
		Detector:   det,
		Snapshot:   snap,
	}, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopSched()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
