// Package ranking scores enriched series and maintains the ranked universe.
package ranking

import (
	"math"
	"sort"

	"stock-pulse/models"
)

// Score bounds
const (
	MinScore = 0
	MaxScore = 100
)

// TrendingScore rates the latest point of a series on a 0-100 scale.
// Terms are added in this order:
//
//	50
//	+ (close - open) / close * 2500   daily momentum
//	+ (rsi - 50)                      relative strength
//	+ macd * 5                        trend confirmation
//	+ 10 if close > sma200            long-term trend bonus
//
// The sum is rounded to the nearest integer and clamped to [0, 100].
func TrendingScore(p models.EnrichedPoint) int {
	score := 50.0
	score += (p.Close - p.Open) / p.Close * 2500
	score += p.RSI - 50
	score += p.MACD * 5
	if p.Close > p.SMA200 {
		score += 10
	}

	switch {
	case math.IsNaN(score):
		return MinScore
	case score >= MaxScore:
		return MaxScore
	case score <= MinScore:
		return MinScore
	}
	return int(math.Round(score))
}

// SortRecords orders records by trending score descending, then latest price
// descending, then symbol for a stable result.
func SortRecords(records []models.RankingRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.TrendingScore != b.TrendingScore {
			return a.TrendingScore > b.TrendingScore
		}
		if c := a.LatestPrice.Cmp(b.LatestPrice); c != 0 {
			return c > 0
		}
		return a.Symbol < b.Symbol
	})
}

// SortRecordsAscending orders records by trending score ascending, the
// reverse of SortRecords on score and price.
func SortRecordsAscending(records []models.RankingRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.TrendingScore != b.TrendingScore {
			return a.TrendingScore < b.TrendingScore
		}
		if c := a.LatestPrice.Cmp(b.LatestPrice); c != 0 {
			return c < 0
		}
		return a.Symbol < b.Symbol
	})
}

// TopN returns at most n records from the front of an already sorted slice.
// n <= 0 returns all of them.
func TopN(records []models.RankingRecord, n int) []models.RankingRecord {
	if n > 0 && n < len(records) {
		return records[:n]
	}
	return records
}
