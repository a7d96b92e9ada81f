package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stock-pulse/config"
	"stock-pulse/indicators"
	"stock-pulse/models"
	"stock-pulse/observability"
	"stock-pulse/repository"

	"github.com/dustin/go-humanize"
)

// RepositoryInterface defines the ranking store operations needed by App
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
	GetRanking(ctx context.Context, symbol string) (*models.RankingRecord, error)
	GetTopRanked(ctx context.Context, limit int) ([]models.RankingRecord, error)
	GetBottomRanked(ctx context.Context, limit int) ([]models.RankingRecord, error)
}

// SeriesInterface provides cached, enriched daily series
type SeriesInterface interface {
	GetEnrichedSeries(ctx context.Context, symbol string) ([]models.EnrichedPoint, error)
}

// BatchInterface defines the ranking batch operations
type BatchInterface interface {
	RunDailyBatchUpdate(ctx context.Context)
	Running() bool
	LastRun() *models.BatchRun
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	ctx    context.Context
	cfg    *config.Config
	repo   RepositoryInterface
	series SeriesInterface
	batch  BatchInterface
}

// New creates a new App application struct
func New(cfg *config.Config, repo RepositoryInterface, series SeriesInterface, batch BatchInterface) *App {
	return &App{
		ctx:    context.Background(),
		cfg:    cfg,
		repo:   repo,
		series: series,
		batch:  batch,
	}
}

// Startup is called when the app starts. ctx bounds background batch runs.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.repo != nil {
		a.repo.Close()
	}
}

// Repo returns the ranking store, or nil when none is configured
func (a *App) Repo() RepositoryInterface {
	return a.repo
}

// Health reports whether the ranking store is reachable
func (a *App) Health(ctx context.Context) error {
	if a.repo == nil {
		return fmt.Errorf("database not initialized")
	}
	return a.repo.Health(ctx)
}

// GetDailyStockData returns the recent chart series for symbol together with
// an analysis of its latest point. It returns nil when no data is available.
func (a *App) GetDailyStockData(ctx context.Context, symbol string) (*models.DailyStockData, error) {
	if a.series == nil {
		return nil, fmt.Errorf("time series service not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	series, err := a.series.GetEnrichedSeries(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load series for %s: %w", symbol, err)
	}
	latest := models.Latest(series)
	if latest == nil {
		return nil, nil
	}

	classification := indicators.Classify(*latest)

	return &models.DailyStockData{
		Symbol: symbol,
		Name:   a.companyName(ctx, symbol),
		Data:   recent(series, a.cfg.MarketData.RecentPoints),
		AIAnalysis: models.AIAnalysis{
			LatestPrice:    latest.Close,
			Suggestion:     classification.Signal,
			RiskAssessment: models.RiskAssessment(latest.MACD),
			Trend:          classification.Reason,
			Indicators: models.IndicatorSnapshot{
				SMA50:  fmt.Sprintf("%.2f", latest.SMA50),
				RSI:    fmt.Sprintf("%.2f", latest.RSI),
				MACD:   fmt.Sprintf("%.2f", latest.MACD),
				Volume: humanize.Comma(latest.Volume),
			},
		},
	}, nil
}

// companyName falls back to the symbol when the store has no record
func (a *App) companyName(ctx context.Context, symbol string) string {
	if a.repo == nil {
		return symbol
	}
	rec, err := a.repo.GetRanking(ctx, symbol)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			observability.Warn("failed to look up company name", "symbol", symbol, "error", err)
		}
		return symbol
	}
	if rec.CompanyName == "" {
		return symbol
	}
	return rec.CompanyName
}

// recent returns the last n points. n <= 0 keeps the whole series.
func recent(series []models.EnrichedPoint, n int) []models.EnrichedPoint {
	if n <= 0 || len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// GetTopRanked returns up to limit records by descending trending score
func (a *App) GetTopRanked(ctx context.Context, limit int) ([]models.RankingRecord, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	records, err := a.repo.GetTopRanked(ctx, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []models.RankingRecord{}
	}
	return records, nil
}

// GetMarketMovers returns the n highest and n lowest scored symbols
func (a *App) GetMarketMovers(ctx context.Context, n int) (*models.MarketMovers, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if n <= 0 {
		return nil, fmt.Errorf("n must be positive, got %d", n)
	}

	gainers, err := a.repo.GetTopRanked(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load gainers: %w", err)
	}
	losers, err := a.repo.GetBottomRanked(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to load losers: %w", err)
	}
	if gainers == nil {
		gainers = []models.RankingRecord{}
	}
	if losers == nil {
		losers = []models.RankingRecord{}
	}
	return &models.MarketMovers{Gainers: gainers, Losers: losers}, nil
}

// RunBatch starts a ranking batch in the background. It returns false when
// a batch is already running.
func (a *App) RunBatch() (bool, error) {
	if a.batch == nil {
		return false, fmt.Errorf("ranking batch not initialized")
	}
	if a.batch.Running() {
		return false, nil
	}
	go a.batch.RunDailyBatchUpdate(a.ctx)
	return true, nil
}

// LastBatchRun returns the most recent batch run, or nil before the first
func (a *App) LastBatchRun() *models.BatchRun {
	if a.batch == nil {
		return nil
	}
	return a.batch.LastRun()
}
