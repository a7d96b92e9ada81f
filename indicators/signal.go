package indicators

import "stock-pulse/models"

// Signal rationales
const (
	ReasonOversoldCrossover = "MACD Crossover in Oversold territory"
	ReasonAboveSMA          = "Price above 50-day SMA with positive MACD"
	ReasonBelowSMA          = "Price below 50-day SMA and weakening RSI"
	ReasonConsolidating     = "Consolidating"
)

// Classify maps the close, 50-day SMA, RSI and MACD of a point onto a signal.
// Rules are evaluated in order and the first match wins.
func Classify(p models.EnrichedPoint) models.Classification {
	switch {
	case p.RSI < 30 && p.MACD > 0:
		return models.Classification{Signal: models.SignalStrongBuy, Reason: ReasonOversoldCrossover}
	case p.Close > p.SMA50 && p.MACD > 0:
		return models.Classification{Signal: models.SignalBuy, Reason: ReasonAboveSMA}
	case p.Close < p.SMA50 && p.RSI < 50:
		return models.Classification{Signal: models.SignalSell, Reason: ReasonBelowSMA}
	default:
		return models.Classification{Signal: models.SignalHold, Reason: ReasonConsolidating}
	}
}
