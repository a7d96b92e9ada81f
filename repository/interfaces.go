package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"stock-pulse/models"
)

// ErrNotFound is returned when no ranking record exists for a symbol
var ErrNotFound = errors.New("ranking record not found")

// RankingStore persists one ranking record per tracked symbol. Updates for
// symbols that were never seeded are no-ops.
type RankingStore interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Universe
	SeedUniverse(ctx context.Context, symbols []models.TrackedSymbol) (int, error)
	ListSymbols(ctx context.Context) ([]string, error)

	// Records
	GetRanking(ctx context.Context, symbol string) (*models.RankingRecord, error)
	UpdateRanking(ctx context.Context, symbol string, update models.RankingUpdate) error
	UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) error

	// Ordered reads: score desc, price desc, symbol asc and the reverse
	GetTopRanked(ctx context.Context, limit int) ([]models.RankingRecord, error)
	GetBottomRanked(ctx context.Context, limit int) ([]models.RankingRecord, error)
}

// Compile-time interface verification
var (
	_ RankingStore = (*Repository)(nil)
	_ RankingStore = (*SQLiteStore)(nil)
	_ RankingStore = (*MemoryStore)(nil)
)
