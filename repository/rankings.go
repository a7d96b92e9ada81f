package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stock-pulse/models"
	"stock-pulse/observability"
)

const rankingColumns = `symbol, company_name, exchange, trending_score, latest_price, last_updated, signal`

// SeedUniverse inserts every symbol that has no record yet and returns how
// many were inserted. Existing records are left untouched.
func (r *Repository) SeedUniverse(ctx context.Context, symbols []models.TrackedSymbol) (int, error) {
	if err := r.checkDB(); err != nil {
		return 0, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("insert", "stock_rankings")

	now := time.Now().UTC()
	inserted := 0
	for _, s := range symbols {
		rec := models.NewRankingRecord(s, now)
		tag, err := r.db.Exec(ctx, `
			INSERT INTO stock_rankings (`+rankingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (symbol) DO NOTHING
		`, rec.Symbol, rec.CompanyName, rec.Exchange, rec.TrendingScore, rec.LatestPrice, rec.LastUpdated, string(rec.Signal))
		if err != nil {
			metrics.RecordDBError("insert", "stock_rankings")
			return inserted, fmt.Errorf("failed to seed %s: %w", s.Symbol, err)
		}
		inserted += int(tag.RowsAffected())
	}

	return inserted, nil
}

// ListSymbols returns every tracked symbol in alphabetical order
func (r *Repository) ListSymbols(ctx context.Context) ([]string, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_rankings")

	rows, err := r.db.Query(ctx, `SELECT symbol FROM stock_rankings ORDER BY symbol`)
	if err != nil {
		metrics.RecordDBError("select", "stock_rankings")
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// GetRanking returns the record for symbol or ErrNotFound
func (r *Repository) GetRanking(ctx context.Context, symbol string) (*models.RankingRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_rankings")

	rec, err := scanRanking(r.db.QueryRow(ctx, `
		SELECT `+rankingColumns+` FROM stock_rankings WHERE symbol = $1
	`, normalizeSymbol(symbol)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordDBError("select", "stock_rankings")
		return nil, fmt.Errorf("failed to query ranking: %w", err)
	}

	return rec, nil
}

// UpdateRanking overwrites score, price, timestamp and signal
func (r *Repository) UpdateRanking(ctx context.Context, symbol string, u models.RankingUpdate) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "stock_rankings")

	_, err := r.db.Exec(ctx, `
		UPDATE stock_rankings
		SET trending_score = $2, latest_price = $3, last_updated = $4, signal = $5
		WHERE symbol = $1
	`, normalizeSymbol(symbol), u.TrendingScore, u.LatestPrice, u.LastUpdated, string(u.Signal))
	if err != nil {
		metrics.RecordDBError("update", "stock_rankings")
		return fmt.Errorf("failed to update ranking: %w", err)
	}

	return nil
}

// UpdatePrice overwrites only the latest price
func (r *Repository) UpdatePrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	if err := r.checkDB(); err != nil {
		return err
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("update", "stock_rankings")

	_, err := r.db.Exec(ctx, `
		UPDATE stock_rankings SET latest_price = $2 WHERE symbol = $1
	`, normalizeSymbol(symbol), price)
	if err != nil {
		metrics.RecordDBError("update", "stock_rankings")
		return fmt.Errorf("failed to update price: %w", err)
	}

	return nil
}

// GetTopRanked returns up to limit records, highest score first. A limit
// of zero or less returns all records.
func (r *Repository) GetTopRanked(ctx context.Context, limit int) ([]models.RankingRecord, error) {
	return r.listRanked(ctx, `ORDER BY trending_score DESC, latest_price DESC, symbol ASC`, limit)
}

// GetBottomRanked returns up to limit records, lowest score first
func (r *Repository) GetBottomRanked(ctx context.Context, limit int) ([]models.RankingRecord, error) {
	return r.listRanked(ctx, `ORDER BY trending_score ASC, latest_price ASC, symbol ASC`, limit)
}

func (r *Repository) listRanked(ctx context.Context, orderBy string, limit int) ([]models.RankingRecord, error) {
	if err := r.checkDB(); err != nil {
		return nil, err
	}
	// LIMIT NULL returns every row
	var lim any = limit
	if limit <= 0 {
		lim = nil
	}
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()
	defer timer.ObserveDB("select", "stock_rankings")

	rows, err := r.db.Query(ctx, `
		SELECT `+rankingColumns+` FROM stock_rankings `+orderBy+` LIMIT $1
	`, lim)
	if err != nil {
		metrics.RecordDBError("select", "stock_rankings")
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	records := []models.RankingRecord{}
	for rows.Next() {
		rec, err := scanRanking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

// rowScanner is satisfied by pgx.Row, pgx.Rows and *sql.Row(s)
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRanking(row rowScanner) (*models.RankingRecord, error) {
	var rec models.RankingRecord
	var signal string
	if err := row.Scan(&rec.Symbol, &rec.CompanyName, &rec.Exchange, &rec.TrendingScore,
		&rec.LatestPrice, &rec.LastUpdated, &signal); err != nil {
		return nil, err
	}
	rec.Signal = models.Signal(signal)
	return &rec, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
