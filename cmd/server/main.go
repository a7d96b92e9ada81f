// Package main runs the stock-pulse API server: the daily ranking batch on a
// cron schedule, the read API and the realtime WebSocket feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stock-pulse/cache"
	"stock-pulse/config"
	"stock-pulse/internal/api"
	"stock-pulse/internal/app"
	"stock-pulse/observability"
	"stock-pulse/ranking"
	"stock-pulse/realtime"
	"stock-pulse/repository"
	"stock-pulse/services"
	"stock-pulse/timeseries"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	decimal.MarshalJSONWithoutQuotes = true

	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger(false)
		observability.Fatal("invalid configuration", "error", err)
	}

	observability.InitLoggerWithLevel(cfg.Log.JSON, observability.ParseLevel(cfg.Log.Level))
	observability.InitMetrics()
	if envErr != nil {
		observability.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Time-series cache, falling back to memory when redis is unavailable
	seriesCache := cache.New(ctx, cfg.Cache.RedisURL)
	defer seriesCache.Close()
	observability.Info("time-series cache ready", "backend", seriesCache.Backend())

	store, err := repository.Open(ctx, cfg.Database.URL)
	if err != nil {
		observability.Fatal("failed to open ranking store", "error", err)
	}

	universe, err := config.LoadUniverse(cfg.MarketData.UniverseFile, cfg.MarketData.Exchange)
	if err != nil {
		observability.Fatal("failed to load tracked universe", "error", err)
	}

	provider, err := services.NewProvider(cfg)
	if err != nil {
		observability.Fatal("failed to configure market data provider", "error", err)
	}
	if !cfg.HasProviderKey() {
		observability.Warn("market data API key not set, every symbol will be skipped", "provider", provider.Name())
	}

	series := timeseries.NewService(provider, seriesCache, timeseries.OptionsFromConfig(cfg))
	batch := ranking.NewBatchJob(series, store, universe)

	application := app.New(cfg, store, series, batch)
	application.Startup(ctx)

	ticks := realtime.NewSimulatedTickSource(cfg.Realtime.MaxSwing, nil)
	scheduler := realtime.NewScheduler(realtime.SchedulerConfigFromConfig(cfg), store, batch, ticks).WithContext(ctx)

	// Daily ranking batch
	schedule, err := config.ParseCron(cfg.Batch.Cron)
	if err != nil {
		observability.Fatal("invalid batch schedule", "error", err)
	}
	jobs := cron.New()
	jobs.Schedule(schedule, cron.FuncJob(func() { batch.RunDailyBatchUpdate(ctx) }))
	jobs.Start()
	observability.Info("daily batch scheduled", "cron", cfg.Batch.Cron, "next", schedule.Next(time.Now()))

	// Warm the rankings so the first clients see scores
	go batch.RunDailyBatchUpdate(ctx)

	handler := api.NewHandler(application, cfg, nil)
	router := api.NewRouter(handler, cfg, realtime.WSHandler(scheduler.Registry()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		observability.Info("starting server", "port", cfg.HTTP.Port, "url", fmt.Sprintf("http://localhost:%d", cfg.HTTP.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			observability.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	observability.Info("shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	<-jobs.Stop().Done()
	scheduler.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}
