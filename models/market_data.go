package models

// OHLCV is one trading day of price data for a symbol.
// JSON names follow the chart contract consumed by the dashboard.
type OHLCV struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"Open"`
	High   float64 `json:"High"`
	Low    float64 `json:"Low"`
	Close  float64 `json:"Close"`
	Volume int64   `json:"Volume"`
}

// EnrichedPoint is an OHLCV point with its trailing indicators.
// Signal is only set on the latest point of a series.
type EnrichedPoint struct {
	OHLCV
	SMA50  float64 `json:"SMA_50"`
	SMA200 float64 `json:"SMA_200"`
	RSI    float64 `json:"RSI"`
	MACD   float64 `json:"MACD"`
	Signal Signal  `json:"AI_Suggestion,omitempty"`
}

// Closes extracts closing prices in order
func Closes(series []OHLCV) []float64 {
	closes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Close
	}
	return closes
}

// Latest returns the last point of an enriched series, or nil if empty
func Latest(series []EnrichedPoint) *EnrichedPoint {
	if len(series) == 0 {
		return nil
	}
	return &series[len(series)-1]
}
