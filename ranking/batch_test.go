package ranking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stock-pulse/models"
)

// MockSeriesSource implements SeriesSource for testing
type MockSeriesSource struct {
	GetEnrichedSeriesFunc func(ctx context.Context, symbol string) ([]models.EnrichedPoint, error)

	mu    sync.Mutex
	calls []string
}

func (m *MockSeriesSource) GetEnrichedSeries(ctx context.Context, symbol string) ([]models.EnrichedPoint, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()
	if m.GetEnrichedSeriesFunc != nil {
		return m.GetEnrichedSeriesFunc(ctx, symbol)
	}
	return nil, nil
}

func (m *MockSeriesSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockBatchStore implements BatchStore over a map
type MockBatchStore struct {
	SeedUniverseFunc  func(ctx context.Context, symbols []models.TrackedSymbol) (int, error)
	ListSymbolsFunc   func(ctx context.Context) ([]string, error)
	UpdateRankingFunc func(ctx context.Context, symbol string, update models.RankingUpdate) error

	mu      sync.Mutex
	order   []string
	records map[string]models.RankingRecord
	seeds   int
}

func NewMockBatchStore() *MockBatchStore {
	return &MockBatchStore{records: make(map[string]models.RankingRecord)}
}

func (m *MockBatchStore) SeedUniverse(ctx context.Context, symbols []models.TrackedSymbol) (int, error) {
	m.mu.Lock()
	m.seeds++
	m.mu.Unlock()
	if m.SeedUniverseFunc != nil {
		return m.SeedUniverseFunc(ctx, symbols)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, s := range symbols {
		if _, ok := m.records[s.Symbol]; ok {
			continue
		}
		m.records[s.Symbol] = models.NewRankingRecord(s, time.Time{})
		m.order = append(m.order, s.Symbol)
		inserted++
	}
	return inserted, nil
}

func (m *MockBatchStore) ListSymbols(ctx context.Context) ([]string, error) {
	if m.ListSymbolsFunc != nil {
		return m.ListSymbolsFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

func (m *MockBatchStore) UpdateRanking(ctx context.Context, symbol string, update models.RankingUpdate) error {
	if m.UpdateRankingFunc != nil {
		if err := m.UpdateRankingFunc(ctx, symbol, update); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[symbol]
	if !ok {
		return nil
	}
	r.Apply(update)
	m.records[symbol] = r
	return nil
}

func (m *MockBatchStore) Record(symbol string) models.RankingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[symbol]
}

var testUniverse = []models.TrackedSymbol{
	{Symbol: "RELIANCE", CompanyName: "Reliance Industries Ltd.", Exchange: "NSE"},
	{Symbol: "TCS", CompanyName: "Tata Consultancy Services", Exchange: "NSE"},
	{Symbol: "INFY", CompanyName: "Infosys Ltd.", Exchange: "NSE"},
}

// risingSeries ends on close 60 above its 50-day SMA with positive MACD
func risingSeries() []models.EnrichedPoint {
	return []models.EnrichedPoint{{
		OHLCV:  models.OHLCV{Date: "2024-07-01", Open: 59, Close: 60, Volume: 1000},
		SMA50:  35.5,
		SMA200: 30.5,
		RSI:    66,
		MACD:   11,
		Signal: models.SignalBuy,
	}}
}

var fixedNow = time.Date(2024, 7, 1, 6, 0, 0, 0, time.UTC)

func TestRunDailyBatchUpdate_UpdatesEverySymbol(t *testing.T) {
	series := &MockSeriesSource{
		GetEnrichedSeriesFunc: func(ctx context.Context, symbol string) ([]models.EnrichedPoint, error) {
			return risingSeries(), nil
		},
	}
	store := NewMockBatchStore()
	job := NewBatchJob(series, store, testUniverse).WithClock(func() time.Time { return fixedNow })

	job.RunDailyBatchUpdate(context.Background())

	wantScore := TrendingScore(risingSeries()[0])
	for _, s := range testUniverse {
		r := store.Record(s.Symbol)
		if r.TrendingScore != wantScore {
			t.Errorf("%s score = %d, want %d", s.Symbol, r.TrendingScore, wantScore)
		}
		if !r.LatestPrice.Equal(decimal.NewFromInt(60)) {
			t.Errorf("%s price = %s, want 60", s.Symbol, r.LatestPrice)
		}
		if r.Signal != models.SignalBuy {
			t.Errorf("%s signal = %q, want BUY", s.Symbol, r.Signal)
		}
		if !r.LastUpdated.Equal(fixedNow) {
			t.Errorf("%s lastUpdated = %v, want %v", s.Symbol, r.LastUpdated, fixedNow)
		}
	}

	calls := series.Calls()
	if len(calls) != 3 || calls[0] != "RELIANCE" || calls[2] != "INFY" {
		t.Errorf("series calls = %v, want universe order", calls)
	}

	last := job.LastRun()
	if last == nil || last.Status != models.BatchRunStatusCompleted {
		t.Fatalf("LastRun() = %+v, want completed run", last)
	}
	if last.Updated != 3 || last.Skipped != 0 || last.Failed != 0 {
		t.Errorf("LastRun() counts = %+v", last)
	}
}

func TestRunDailyBatchUpdate_FailureDoesNotAbort(t *testing.T) {
	series := &MockSeriesSource{
		GetEnrichedSeriesFunc: func(ctx context.Context, symbol string) ([]models.EnrichedPoint, error) {
			switch symbol {
			case "RELIANCE":
				return nil, errors.New("connection reset by peer")
			case "TCS":
				return nil, nil
			}
			return risingSeries(), nil
		},
	}
	store := NewMockBatchStore()
	job := NewBatchJob(series, store, testUniverse)

	// Prior values that must survive the failing and skipped symbols.
	store.SeedUniverse(context.Background(), testUniverse)
	prior := models.RankingUpdate{TrendingScore: 42, LatestPrice: decimal.NewFromInt(2900), LastUpdated: fixedNow, Signal: models.SignalHold}
	store.UpdateRanking(context.Background(), "RELIANCE", prior)
	store.UpdateRanking(context.Background(), "TCS", prior)

	job.RunDailyBatchUpdate(context.Background())

	for _, sym := range []string{"RELIANCE", "TCS"} {
		r := store.Record(sym)
		if r.TrendingScore != 42 || !r.LatestPrice.Equal(decimal.NewFromInt(2900)) {
			t.Errorf("%s = %+v, want prior values retained", sym, r)
		}
	}
	if r := store.Record("INFY"); r.Signal != models.SignalBuy {
		t.Errorf("INFY signal = %q, want BUY after a failing earlier symbol", r.Signal)
	}

	last := job.LastRun()
	if last.Updated != 1 || last.Skipped != 1 || last.Failed != 1 {
		t.Errorf("LastRun() counts = updated %d skipped %d failed %d, want 1/1/1", last.Updated, last.Skipped, last.Failed)
	}
}

func TestRunDailyBatchUpdate_PersistErrorContinues(t *testing.T) {
	series := &MockSeriesSource{
		GetEnrichedSeriesFunc: func(ctx context.Context, symbol string) ([]models.EnrichedPoint, error) {
			return risingSeries(), nil
		},
	}
	store := NewMockBatchStore()
	store.UpdateRankingFunc = func(ctx context.Context, symbol string, update models.RankingUpdate) error {
		if symbol == "TCS" {
			return errors.New("write conflict")
		}
		return nil
	}
	job := NewBatchJob(series, store, testUniverse)

	job.RunDailyBatchUpdate(context.Background())

	if r := store.Record("INFY"); r.Signal != models.SignalBuy {
		t.Errorf("INFY should be updated after TCS persist failure, got %+v", r)
	}
	if last := job.LastRun(); last.Failed != 1 || last.Updated != 2 {
		t.Errorf("LastRun() = %+v, want 2 updated 1 failed", last)
	}
}

func TestRunDailyBatchUpdate_SeedIsIdempotent(t *testing.T) {
	store := NewMockBatchStore()
	job := NewBatchJob(&MockSeriesSource{}, store, testUniverse)

	store.SeedUniverse(context.Background(), testUniverse)
	store.UpdateRanking(context.Background(), "TCS", models.RankingUpdate{TrendingScore: 77, LatestPrice: decimal.NewFromInt(3900)})

	job.RunDailyBatchUpdate(context.Background())

	if r := store.Record("TCS"); r.TrendingScore != 77 {
		t.Errorf("reseeding overwrote TCS: %+v", r)
	}
}

func TestRunDailyBatchUpdate_ListError(t *testing.T) {
	series := &MockSeriesSource{}
	store := NewMockBatchStore()
	store.ListSymbolsFunc = func(ctx context.Context) ([]string, error) {
		return nil, errors.New("database unavailable")
	}
	job := NewBatchJob(series, store, testUniverse)

	job.RunDailyBatchUpdate(context.Background())

	if len(series.Calls()) != 0 {
		t.Errorf("series calls = %v, want none", series.Calls())
	}
	last := job.LastRun()
	if last == nil || last.Error == "" {
		t.Errorf("LastRun() = %+v, want recorded error", last)
	}
	if job.Running() {
		t.Error("Running() should be false after the run returns")
	}
}

func TestRunDailyBatchUpdate_Cancelled(t *testing.T) {
	series := &MockSeriesSource{}
	job := NewBatchJob(series, NewMockBatchStore(), testUniverse)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job.RunDailyBatchUpdate(ctx)

	if len(series.Calls()) != 0 {
		t.Errorf("series calls = %v, want none after cancellation", series.Calls())
	}
	if last := job.LastRun(); last.Status != models.BatchRunStatusCancelled {
		t.Errorf("Status = %v, want cancelled", last.Status)
	}
}

func TestRunDailyBatchUpdate_RefusesOverlap(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	series := &MockSeriesSource{
		GetEnrichedSeriesFunc: func(ctx context.Context, symbol string) ([]models.EnrichedPoint, error) {
			once.Do(func() { close(entered) })
			<-release
			return nil, nil
		},
	}
	store := NewMockBatchStore()
	job := NewBatchJob(series, store, testUniverse)

	done := make(chan struct{})
	go func() {
		job.RunDailyBatchUpdate(context.Background())
		close(done)
	}()

	<-entered
	if !job.Running() {
		t.Error("Running() = false during a run")
	}
	job.RunDailyBatchUpdate(context.Background())
	close(release)
	<-done

	store.mu.Lock()
	seeds := store.seeds
	store.mu.Unlock()
	if seeds != 1 {
		t.Errorf("SeedUniverse called %d times, want 1", seeds)
	}
	if got := len(series.Calls()); got != 3 {
		t.Errorf("series calls = %d, want 3", got)
	}
}
