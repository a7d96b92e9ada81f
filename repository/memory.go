package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock-pulse/models"
	"stock-pulse/ranking"
)

// MemoryStore keeps ranking records in process. It is used when no
// DATABASE_URL is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.RankingRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.RankingRecord),
		now:     time.Now,
	}
}

func (m *MemoryStore) Close()                         {}
func (m *MemoryStore) Health(_ context.Context) error { return nil }

func (m *MemoryStore) SeedUniverse(_ context.Context, symbols []models.TrackedSymbol) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	inserted := 0
	for _, s := range symbols {
		s.Symbol = normalizeSymbol(s.Symbol)
		if _, ok := m.records[s.Symbol]; ok {
			continue
		}
		m.records[s.Symbol] = models.NewRankingRecord(s, now)
		inserted++
	}
	return inserted, nil
}

func (m *MemoryStore) ListSymbols(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symbols := make([]string, 0, len(m.records))
	for s := range m.records {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (m *MemoryStore) GetRanking(_ context.Context, symbol string) (*models.RankingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[normalizeSymbol(symbol)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryStore) UpdateRanking(_ context.Context, symbol string, u models.RankingUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeSymbol(symbol)
	rec, ok := m.records[key]
	if !ok {
		return nil
	}
	rec.Apply(u)
	m.records[key] = rec
	return nil
}

func (m *MemoryStore) UpdatePrice(_ context.Context, symbol string, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeSymbol(symbol)
	rec, ok := m.records[key]
	if !ok {
		return nil
	}
	rec.LatestPrice = price
	m.records[key] = rec
	return nil
}

func (m *MemoryStore) GetTopRanked(_ context.Context, limit int) ([]models.RankingRecord, error) {
	records := m.snapshot()
	ranking.SortRecords(records)
	return ranking.TopN(records, limit), nil
}

func (m *MemoryStore) GetBottomRanked(_ context.Context, limit int) ([]models.RankingRecord, error) {
	records := m.snapshot()
	ranking.SortRecordsAscending(records)
	return ranking.TopN(records, limit), nil
}

func (m *MemoryStore) snapshot() []models.RankingRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]models.RankingRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	return records
}
