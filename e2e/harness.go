// Package e2e provides end-to-end testing infrastructure for stock-pulse.
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stock-pulse/cache"
	"stock-pulse/config"
	"stock-pulse/e2e/mocks"
	"stock-pulse/internal/api"
	"stock-pulse/internal/app"
	"stock-pulse/models"
	"stock-pulse/ranking"
	"stock-pulse/realtime"
	"stock-pulse/repository"
	"stock-pulse/services"
	"stock-pulse/timeseries"
)

// TestHarness wires the full server stack against a mock market data
// provider, an in-process cache and a SQLite ranking store.
type TestHarness struct {
	t          *testing.T
	ctx        context.Context
	cancel     context.CancelFunc
	mockServer *mocks.MockServer
	store      repository.RankingStore
	series     *timeseries.Service
	batch      *ranking.BatchJob
	scheduler  *realtime.Scheduler
	app        *app.App
	router     http.Handler
	server     *httptest.Server
	config     *config.Config
}

// NewTestHarness creates a new test harness. Call Setup before use.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Setup initializes all test dependencies for the given universe. Each
// configure func may adjust the test configuration before wiring.
func (h *TestHarness) Setup(universe []models.TrackedSymbol, configure ...func(*config.Config)) error {
	h.mockServer = mocks.NewMockServer()
	h.config = h.createTestConfig()
	for _, fn := range configure {
		fn(h.config)
	}

	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))

	var err error
	h.store, err = repository.Open(h.ctx, h.config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open ranking store: %w", err)
	}

	provider, err := services.NewProvider(h.config)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	seriesCache := cache.NewStore(cache.NewMemoryBackend())
	h.series = timeseries.NewService(provider, seriesCache, timeseries.OptionsFromConfig(h.config))
	h.batch = ranking.NewBatchJob(h.series, h.store, universe)

	h.app = app.New(h.config, h.store, h.series, h.batch)
	h.app.Startup(h.ctx)

	h.scheduler = realtime.NewScheduler(
		realtime.SchedulerConfigFromConfig(h.config),
		h.store,
		h.batch,
		realtime.NewSimulatedTickSource(h.config.Realtime.MaxSwing, nil),
	).WithContext(h.ctx)

	handler := api.NewHandler(h.app, h.config, nil)
	h.router = api.NewRouter(handler, h.config, realtime.WSHandler(h.scheduler.Registry()))
	h.server = httptest.NewServer(h.router)

	return nil
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.scheduler != nil {
		h.scheduler.Stop()
	}

	if h.server != nil {
		h.server.Close()
	}

	if h.cancel != nil {
		h.cancel()
	}

	if h.app != nil {
		h.app.Shutdown(context.Background())
	}

	if h.mockServer != nil {
		h.mockServer.Close()
	}

	services.SetGlobalRegistry(services.NewCircuitBreakerRegistry(services.DefaultCircuitBreakerConfig))
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock provider for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// Store returns the ranking store.
func (h *TestHarness) Store() repository.RankingStore {
	return h.store
}

// Batch returns the ranking batch job.
func (h *TestHarness) Batch() *ranking.BatchJob {
	return h.batch
}

// Scheduler returns the realtime broadcast scheduler.
func (h *TestHarness) Scheduler() *realtime.Scheduler {
	return h.scheduler
}

// Config returns the test configuration.
func (h *TestHarness) Config() *config.Config {
	return h.config
}

// WebSocketURL returns the ws:// address of the realtime feed.
func (h *TestHarness) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
}

// DoRequest performs an HTTP request against the router and returns the response.
func (h *TestHarness) DoRequest(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// RunBatch runs one ranking batch synchronously.
func (h *TestHarness) RunBatch() *models.BatchRun {
	h.batch.RunDailyBatchUpdate(h.ctx)
	return h.batch.LastRun()
}

func (h *TestHarness) createTestConfig() *config.Config {
	cfg := config.NewTestConfig()

	cfg.Database.URL = "sqlite://" + filepath.Join(h.t.TempDir(), "rankings.db")
	cfg.EOD.APIKey = "e2e-token"
	cfg.EOD.BaseURL = h.mockServer.URL()
	cfg.AlphaVantage.APIKey = "e2e-token"
	cfg.AlphaVantage.BaseURL = h.mockServer.URL() + "/query"
	cfg.Realtime.TickSeconds = 1

	return cfg
}
