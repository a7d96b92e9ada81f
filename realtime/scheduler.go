package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock-pulse/config"
	"stock-pulse/models"
	"stock-pulse/observability"
)

// RankingStore is the subset of the ranking store read and written by ticks
type RankingStore interface {
	GetTopRanked(ctx context.Context, limit int) ([]models.RankingRecord, error)
	UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) error
}

// BatchRunner refreshes rankings; it is kicked off on every start
type BatchRunner interface {
	RunDailyBatchUpdate(ctx context.Context)
}

// SchedulerConfig controls tick pacing and fan-out
type SchedulerConfig struct {
	TickInterval time.Duration
	TickTopN     int // symbols perturbed per tick
	SnapshotTopN int // records in each TOP_PICKS snapshot
}

// SchedulerConfigFromConfig reads the REALTIME_* settings
func SchedulerConfigFromConfig(cfg *config.Config) SchedulerConfig {
	return SchedulerConfig{
		TickInterval: cfg.TickInterval(),
		TickTopN:     cfg.Realtime.TickTopN,
		SnapshotTopN: cfg.Realtime.SnapshotTopN,
	}
}

// Scheduler runs while at least one subscriber is connected. Each tick
// perturbs the top ranked prices, pushes one REALTIME_UPDATE per symbol and
// then a TOP_PICKS snapshot. It stops itself on the first tick that finds
// no subscribers and is restarted by the next connection.
type Scheduler struct {
	cfg      SchedulerConfig
	store    RankingStore
	batch    BatchRunner
	ticks    TickSource
	registry *Registry
	now      func() time.Time
	baseCtx  context.Context
	metrics  *observability.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewScheduler creates a stopped Scheduler with its own subscriber registry
func NewScheduler(cfg SchedulerConfig, store RankingStore, batch BatchRunner, ticks TickSource) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		store:   store,
		batch:   batch,
		ticks:   ticks,
		now:     time.Now,
		baseCtx: context.Background(),
		metrics: observability.GetMetrics(),
	}
	s.registry = NewRegistry(s.Start)
	return s
}

// WithClock replaces the clock used for message timestamps
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithContext sets the parent of every run; cancelling it stops the loop
// and any batch the scheduler started.
func (s *Scheduler) WithContext(ctx context.Context) *Scheduler {
	s.baseCtx = ctx
	return s
}

func (s *Scheduler) Registry() *Registry {
	return s.registry
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start moves the scheduler to running: it fires a batch refresh without
// waiting for it and begins ticking. It is a no-op when already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.metrics.SetSchedulerRunning(true)

	observability.Info("realtime scheduler started",
		"interval", s.cfg.TickInterval,
		"subscribers", s.registry.Count())

	if s.batch != nil {
		go s.batch.RunDailyBatchUpdate(s.baseCtx)
	}
	go s.loop(ctx, s.done)
}

// Stop halts the tick loop and waits for it to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	done := s.done
	if s.running {
		s.stopLocked("shutdown")
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Scheduler) stopLocked(reason string) {
	s.running = false
	s.cancel()
	s.metrics.SetSchedulerRunning(false)
	observability.Info("realtime scheduler stopped", "reason", reason)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Tick(ctx) {
				return
			}
		}
	}
}

// Tick runs one broadcast round. It returns false, stopping the scheduler,
// when nobody is subscribed.
func (s *Scheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	// A cancelled ctx belongs to a run that was already stopped.
	if ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if s.registry.Count() == 0 {
		if s.running {
			s.stopLocked("no subscribers")
		}
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	s.metrics.RecordSchedulerTick()
	log := observability.WithComponent("realtime")

	top, err := s.store.GetTopRanked(ctx, s.cfg.TickTopN)
	if err != nil {
		log.Error("failed to load top ranked symbols", "error", err)
		return true
	}

	for _, rec := range top {
		tick, err := s.ticks.Next(ctx, rec)
		if err != nil {
			log.Warn("failed to produce tick", "symbol", rec.Symbol, "error", err)
			continue
		}

		s.broadcast(models.MessageTypeRealtimeUpdate, models.NewRealtimeUpdate(tick, s.now()))

		if err := s.store.UpdatePrice(ctx, rec.Symbol, tick.Price.Round(2)); err != nil {
			log.Error("failed to persist tick price", "symbol", rec.Symbol, "error", err)
		}
	}

	snapshot, err := s.store.GetTopRanked(ctx, s.cfg.SnapshotTopN)
	if err != nil {
		log.Error("failed to load ranking snapshot", "error", err)
		return true
	}
	s.broadcast(models.MessageTypeTopPicks, models.NewTopPicksMessage(snapshot, s.now()))

	return true
}

func (s *Scheduler) broadcast(messageType string, msg any) {
	if err := s.registry.Broadcast(msg); err != nil {
		observability.Error("broadcast failed", "type", messageType, "error", err)
		return
	}
	s.metrics.RecordBroadcast(messageType)
}
