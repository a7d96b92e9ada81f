package models

// Signal is the trading suggestion derived from the latest enriched point
type Signal string

const (
	SignalStrongBuy Signal = "STRONG_BUY"
	SignalBuy       Signal = "BUY"
	SignalSell      Signal = "SELL"
	SignalHold      Signal = "HOLD"
)

// IsValid returns true for the four known signals
func (s Signal) IsValid() bool {
	switch s {
	case SignalStrongBuy, SignalBuy, SignalSell, SignalHold:
		return true
	}
	return false
}

// Classification pairs a signal with its human-readable rationale
type Classification struct {
	Signal Signal `json:"signal"`
	Reason string `json:"reason"`
}
