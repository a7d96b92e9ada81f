package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"stock-pulse/models"
	"stock-pulse/observability"
)

// SQLiteStore keeps ranking records in an embedded SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and creates the
// rankings table.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	observability.Info("sqlite ranking store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_rankings (
			symbol         TEXT PRIMARY KEY,
			company_name   TEXT NOT NULL DEFAULT '',
			exchange       TEXT NOT NULL DEFAULT '',
			trending_score INTEGER NOT NULL DEFAULT 0,
			latest_price   TEXT NOT NULL DEFAULT '0',
			last_updated   INTEGER NOT NULL,
			signal         TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_rankings_score ON stock_rankings(trending_score)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		observability.Warn("failed to close sqlite store", "error", err)
	}
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) SeedUniverse(ctx context.Context, symbols []models.TrackedSymbol) (int, error) {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "stock_rankings")

	now := time.Now().UTC()
	inserted := 0
	for _, sym := range symbols {
		rec := models.NewRankingRecord(sym, now)
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO stock_rankings (`+rankingColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol) DO NOTHING
		`, rec.Symbol, rec.CompanyName, rec.Exchange, rec.TrendingScore, rec.LatestPrice.String(),
			rec.LastUpdated.UnixNano(), string(rec.Signal))
		if err != nil {
			metrics.RecordDBError("insert", "stock_rankings")
			return inserted, fmt.Errorf("failed to seed %s: %w", sym.Symbol, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	return inserted, nil
}

func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM stock_rankings ORDER BY symbol`)
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "stock_rankings")
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *SQLiteStore) GetRanking(ctx context.Context, symbol string) (*models.RankingRecord, error) {
	rec, err := scanSQLiteRanking(s.db.QueryRowContext(ctx, `
		SELECT `+rankingColumns+` FROM stock_rankings WHERE symbol = ?
	`, normalizeSymbol(symbol)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		observability.GetMetrics().RecordDBError("select", "stock_rankings")
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) UpdateRanking(ctx context.Context, symbol string, u models.RankingUpdate) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "stock_rankings")

	_, err := s.db.ExecContext(ctx, `
		UPDATE stock_rankings
		SET trending_score = ?, latest_price = ?, last_updated = ?, signal = ?
		WHERE symbol = ?
	`, u.TrendingScore, u.LatestPrice.String(), u.LastUpdated.UnixNano(), string(u.Signal), normalizeSymbol(symbol))
	if err != nil {
		metrics.RecordDBError("update", "stock_rankings")
		return fmt.Errorf("failed to update ranking: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE stock_rankings SET latest_price = ? WHERE symbol = ?
	`, price.String(), normalizeSymbol(symbol))
	if err != nil {
		observability.GetMetrics().RecordDBError("update", "stock_rankings")
		return fmt.Errorf("failed to update price: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetTopRanked(ctx context.Context, limit int) ([]models.RankingRecord, error) {
	return s.listRanked(ctx, `ORDER BY trending_score DESC, CAST(latest_price AS REAL) DESC, symbol ASC`, limit)
}

func (s *SQLiteStore) GetBottomRanked(ctx context.Context, limit int) ([]models.RankingRecord, error) {
	return s.listRanked(ctx, `ORDER BY trending_score ASC, CAST(latest_price AS REAL) ASC, symbol ASC`, limit)
}

func (s *SQLiteStore) listRanked(ctx context.Context, orderBy string, limit int) ([]models.RankingRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_rankings")

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+rankingColumns+` FROM stock_rankings `+orderBy+` LIMIT ?
	`, limit)
	if err != nil {
		metrics.RecordDBError("select", "stock_rankings")
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	records := []models.RankingRecord{}
	for rows.Next() {
		rec, err := scanSQLiteRanking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func scanSQLiteRanking(row rowScanner) (*models.RankingRecord, error) {
	var rec models.RankingRecord
	var price, signal string
	var updated int64
	if err := row.Scan(&rec.Symbol, &rec.CompanyName, &rec.Exchange, &rec.TrendingScore,
		&price, &updated, &signal); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid stored price %q: %w", price, err)
	}
	rec.LatestPrice = p
	rec.LastUpdated = time.Unix(0, updated).UTC()
	rec.Signal = models.Signal(signal)
	return &rec, nil
}
