package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Push message types
const (
	MessageTypeConnection     = "connection"
	MessageTypeRealtimeUpdate = "REALTIME_UPDATE"
	MessageTypeTopPicks       = "TOP_PICKS"
)

// PriceTick is one synthesized price move for a ranked symbol
type PriceTick struct {
	Symbol string
	Price  decimal.Decimal
	Change decimal.Decimal
	Signal Signal
}

// RealtimeUpdate is pushed once per perturbed symbol on every tick
type RealtimeUpdate struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`
	Signal    Signal    `json:"signal"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRealtimeUpdate builds the push message for tick, rounding to two decimals
func NewRealtimeUpdate(tick PriceTick, now time.Time) RealtimeUpdate {
	return RealtimeUpdate{
		Type:      MessageTypeRealtimeUpdate,
		Symbol:    tick.Symbol,
		Price:     tick.Price.Round(2).InexactFloat64(),
		Change:    tick.Change.Round(2).InexactFloat64(),
		Signal:    tick.Signal,
		Timestamp: now.UTC(),
	}
}

// TopPicksMessage is the full ranking snapshot pushed after each tick
type TopPicksMessage struct {
	Type      string          `json:"type"`
	Data      []RankingRecord `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewTopPicksMessage(records []RankingRecord, now time.Time) TopPicksMessage {
	if records == nil {
		records = []RankingRecord{}
	}
	return TopPicksMessage{
		Type:      MessageTypeTopPicks,
		Data:      records,
		Timestamp: now.UTC(),
	}
}

// ConnectionAck is sent to a subscriber right after it connects
type ConnectionAck struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewConnectionAck() ConnectionAck {
	return ConnectionAck{
		Type:    MessageTypeConnection,
		Message: "WebSocket connection established.",
	}
}
