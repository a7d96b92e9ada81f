package realtime

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"

	"stock-pulse/models"
)

func TestSimulatedTickSource_Bounds(t *testing.T) {
	src := NewSimulatedTickSource(0.005, rand.New(rand.NewPCG(1, 2)))
	rec := models.RankingRecord{Symbol: "TCS", TrendingScore: 80, LatestPrice: decimal.NewFromInt(4000)}

	// max move = 4000 * 0.8 * 0.005 = 16
	limit := decimal.RequireFromString("16.0001")
	for i := 0; i < 500; i++ {
		tick, err := src.Next(context.Background(), rec)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if tick.Symbol != "TCS" {
			t.Errorf("Symbol = %s, want TCS", tick.Symbol)
		}
		if tick.Change.Abs().GreaterThan(limit) {
			t.Fatalf("|change| = %s exceeds %s", tick.Change.Abs(), limit)
		}
		if !tick.Price.Equal(rec.LatestPrice.Add(tick.Change)) {
			t.Errorf("Price = %s, want base + change", tick.Price)
		}
		wantSignal := models.SignalSell
		if tick.Change.IsPositive() {
			wantSignal = models.SignalBuy
		}
		if tick.Signal != wantSignal {
			t.Errorf("Signal = %s for change %s, want %s", tick.Signal, tick.Change, wantSignal)
		}
	}
}

func TestSimulatedTickSource_DefaultBasePrice(t *testing.T) {
	src := NewSimulatedTickSource(0.005, rand.New(rand.NewPCG(3, 4)))
	rec := models.RankingRecord{Symbol: "NEW", TrendingScore: 100}

	tick, err := src.Next(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	// max move = 1000 * 1 * 0.005 = 5
	if tick.Price.LessThan(decimal.NewFromInt(995)) || tick.Price.GreaterThan(decimal.NewFromInt(1005)) {
		t.Errorf("Price = %s, want within 5 of the default 1000", tick.Price)
	}
}

func TestSimulatedTickSource_ZeroScoreNeverMoves(t *testing.T) {
	src := NewSimulatedTickSource(0.005, nil)
	rec := models.RankingRecord{Symbol: "FLAT", LatestPrice: decimal.NewFromInt(250)}

	tick, err := src.Next(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if !tick.Change.IsZero() || !tick.Price.Equal(rec.LatestPrice) {
		t.Errorf("tick = %+v, want no move at score 0", tick)
	}
	if tick.Signal != models.SignalSell {
		t.Errorf("Signal = %s, want SELL for a zero change", tick.Signal)
	}
}
