package realtime

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stock-pulse/models"
)

// TickSource produces the next price move for a ranked symbol
type TickSource interface {
	Next(ctx context.Context, rec models.RankingRecord) (models.PriceTick, error)
}

// DefaultBasePrice stands in for symbols that have no price yet
var DefaultBasePrice = decimal.NewFromInt(1000)

// SimulatedTickSource perturbs the latest price by a random move whose
// maximum size grows with the trending score.
type SimulatedTickSource struct {
	mu       sync.Mutex
	rng      *rand.Rand
	maxSwing float64 // largest move as a fraction of price, reached at score 100
}

// NewSimulatedTickSource creates a tick source. A nil rng is seeded from
// the clock.
func NewSimulatedTickSource(maxSwing float64, rng *rand.Rand) *SimulatedTickSource {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &SimulatedTickSource{rng: rng, maxSwing: maxSwing}
}

// Next returns base + change where change is uniform in
// ±base*score/100*maxSwing. A positive change is BUY, anything else SELL.
func (s *SimulatedTickSource) Next(_ context.Context, rec models.RankingRecord) (models.PriceTick, error) {
	base := rec.LatestPrice
	if base.IsZero() {
		base = DefaultBasePrice
	}

	s.mu.Lock()
	u := s.rng.Float64()
	s.mu.Unlock()

	amplitude := base.InexactFloat64() * float64(rec.TrendingScore) / 100 * s.maxSwing
	change := decimal.NewFromFloat((u*2 - 1) * amplitude)

	signal := models.SignalSell
	if change.IsPositive() {
		signal = models.SignalBuy
	}

	return models.PriceTick{
		Symbol: rec.Symbol,
		Price:  base.Add(change),
		Change: change,
		Signal: signal,
	}, nil
}
