package ranking

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"stock-pulse/indicators"
	"stock-pulse/models"
	"stock-pulse/observability"
)

// SeriesSource provides enriched daily series. A nil series with a nil
// error means no data is available right now.
type SeriesSource interface {
	GetEnrichedSeries(ctx context.Context, symbol string) ([]models.EnrichedPoint, error)
}

// BatchStore defines the ranking store operations needed by BatchJob
type BatchStore interface {
	SeedUniverse(ctx context.Context, symbols []models.TrackedSymbol) (int, error)
	ListSymbols(ctx context.Context) ([]string, error)
	UpdateRanking(ctx context.Context, symbol string, update models.RankingUpdate) error
}

// BatchJob recomputes score and signal for every tracked symbol
type BatchJob struct {
	series   SeriesSource
	store    BatchStore
	universe []models.TrackedSymbol
	now      func() time.Time
	metrics  *observability.Metrics

	running atomic.Bool

	mu      sync.RWMutex
	lastRun *models.BatchRun
}

// NewBatchJob creates a BatchJob seeding the given universe
func NewBatchJob(series SeriesSource, store BatchStore, universe []models.TrackedSymbol) *BatchJob {
	return &BatchJob{
		series:   series,
		store:    store,
		universe: universe,
		now:      time.Now,
		metrics:  observability.GetMetrics(),
	}
}

// WithClock replaces the wall clock used for lastUpdated stamps
func (j *BatchJob) WithClock(now func() time.Time) *BatchJob {
	j.now = now
	return j
}

// RunDailyBatchUpdate seeds the universe, then walks every tracked symbol in
// order, one at a time. A symbol without data is skipped and a failing symbol
// is logged; neither stops the walk. A call made while another run is in
// progress returns immediately.
func (j *BatchJob) RunDailyBatchUpdate(ctx context.Context) {
	if !j.running.CompareAndSwap(false, true) {
		observability.Warn("ranking batch already running, skipping")
		return
	}
	defer j.running.Store(false)

	timer := j.metrics.NewTimer()
	run := models.NewBatchRun(j.now())
	log := observability.WithComponent("batch").With("run_id", run.ID.String())
	j.setLastRun(run)

	inserted, err := j.store.SeedUniverse(ctx, j.universe)
	if err != nil {
		log.Error("failed to seed universe", "error", err)
	} else if inserted > 0 {
		log.Info("seeded tracked universe", "inserted", inserted)
	}

	symbols, err := j.store.ListSymbols(ctx)
	if err != nil {
		log.Error("failed to list tracked symbols", "error", err)
		j.updateRun(run, func(r *models.BatchRun) {
			r.Error = err.Error()
			r.Complete(j.now())
		})
		timer.ObserveBatch("failed")
		return
	}

	log.Info("running daily batch update", "symbols", len(symbols))

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			log.Warn("ranking batch cancelled", "error", err)
			j.updateRun(run, func(r *models.BatchRun) { r.Cancel(j.now(), err.Error()) })
			timer.ObserveBatch("cancelled")
			return
		}

		outcome := j.processSymbol(ctx, symbol)
		j.metrics.RecordBatchSymbol(outcome)
		j.updateRun(run, func(r *models.BatchRun) {
			r.Symbols++
			switch outcome {
			case outcomeUpdated:
				r.Updated++
			case outcomeSkipped:
				r.Skipped++
			default:
				r.Failed++
			}
		})
	}

	j.updateRun(run, func(r *models.BatchRun) { r.Complete(j.now()) })
	timer.ObserveBatch("success")

	last := j.LastRun()
	log.Info("daily batch update finished",
		"updated", last.Updated,
		"skipped", last.Skipped,
		"failed", last.Failed,
		"duration_ms", last.Duration().Milliseconds())
}

const (
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

func (j *BatchJob) processSymbol(ctx context.Context, symbol string) string {
	log := observability.WithSymbol(symbol)

	series, err := j.series.GetEnrichedSeries(ctx, symbol)
	if err != nil {
		log.Error("batch error fetching series", "error", err)
		return outcomeFailed
	}

	latest := models.Latest(series)
	if latest == nil {
		log.Warn("no series data, skipping for this cycle")
		return outcomeSkipped
	}

	score := TrendingScore(*latest)
	classification := indicators.Classify(*latest)

	update := models.RankingUpdate{
		TrendingScore: score,
		LatestPrice:   decimal.NewFromFloat(latest.Close),
		LastUpdated:   j.now(),
		Signal:        classification.Signal,
	}
	if err := j.store.UpdateRanking(ctx, symbol, update); err != nil {
		log.Error("batch error persisting ranking", "error", err)
		return outcomeFailed
	}

	j.metrics.RecordTrendingScore(string(classification.Signal), score)
	log.Debug("ranking updated", "score", score, "signal", classification.Signal)
	return outcomeUpdated
}

// Running returns true while a batch is in progress
func (j *BatchJob) Running() bool {
	return j.running.Load()
}

// LastRun returns a snapshot of the most recent run, or nil before the first one
func (j *BatchJob) LastRun() *models.BatchRun {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.lastRun == nil {
		return nil
	}
	snapshot := *j.lastRun
	return &snapshot
}

func (j *BatchJob) setLastRun(run *models.BatchRun) {
	j.mu.Lock()
	j.lastRun = run
	j.mu.Unlock()
}

func (j *BatchJob) updateRun(run *models.BatchRun, mutate func(*models.BatchRun)) {
	j.mu.Lock()
	mutate(run)
	j.mu.Unlock()
}
