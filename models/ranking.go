package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackedSymbol is one entry of the ranked universe
type TrackedSymbol struct {
	Symbol      string `json:"symbol" yaml:"symbol"`
	CompanyName string `json:"companyName" yaml:"company_name"`
	Exchange    string `json:"exchange" yaml:"exchange"`
}

// RankingRecord is the persisted ranking state of a tracked symbol
type RankingRecord struct {
	Symbol        string          `json:"symbol"`
	CompanyName   string          `json:"companyName"`
	Exchange      string          `json:"exchange"`
	TrendingScore int             `json:"trendingScore"`
	LatestPrice   decimal.Decimal `json:"latestPrice"`
	LastUpdated   time.Time       `json:"lastUpdated"`
	Signal        Signal          `json:"signal,omitempty"`
}

// NewRankingRecord creates the initial record for a freshly seeded symbol
func NewRankingRecord(s TrackedSymbol, now time.Time) RankingRecord {
	return RankingRecord{
		Symbol:      s.Symbol,
		CompanyName: s.CompanyName,
		Exchange:    s.Exchange,
		LatestPrice: decimal.Zero,
		LastUpdated: now,
	}
}

// RankingUpdate is the full recompute written by the batch job
type RankingUpdate struct {
	TrendingScore int
	LatestPrice   decimal.Decimal
	LastUpdated   time.Time
	Signal        Signal
}

// Apply writes u onto r
func (r *RankingRecord) Apply(u RankingUpdate) {
	r.TrendingScore = u.TrendingScore
	r.LatestPrice = u.LatestPrice
	r.LastUpdated = u.LastUpdated
	r.Signal = u.Signal
}

// MarketMovers holds the highest and lowest scored symbols
type MarketMovers struct {
	Gainers []RankingRecord `json:"gainers"`
	Losers  []RankingRecord `json:"losers"`
}
