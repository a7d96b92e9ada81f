// Package indicators enriches daily price series with trailing technical
// indicators and classifies the latest point into a trading signal.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"stock-pulse/models"
)

// Indicator windows
const (
	SMAShortWindow = 50
	SMALongWindow  = 200
	RSIPeriod      = 14
	MACDFast       = 12
	MACDSlow       = 26
)

// RSI proxy bounds
const (
	rsiNeutral = 50.0
	rsiFloor   = 10.0
	rsiCeiling = 90.0
)

// SMA returns the mean of the last window closes. With fewer than window
// closes it returns the most recent close, or 0 for an empty slice. It reads
// the same rolling series as Enrich, so both agree to the bit.
func SMA(closes []float64, window int) float64 {
	n := len(closes)
	if n == 0 {
		return 0
	}
	if window <= 0 || n < window {
		return closes[n-1]
	}
	return trailingSMA(closes, window)[n-1]
}

// RSI is a momentum proxy driven by the most recent single-period change
// scaled against the current close, clamped to [10, 90]. It is 50 until
// period closes are available. This is not Wilder's RSI.
func RSI(closes []float64, period int) float64 {
	n := len(closes)
	if n == 0 || n < period {
		return rsiNeutral
	}
	lastChange := 0.0
	if n >= 2 {
		lastChange = closes[n-1] - closes[n-2]
	}
	return rsiProxy(lastChange, closes[n-1])
}

func rsiProxy(lastChange, close float64) float64 {
	v := rsiNeutral + lastChange*10/close*100
	if math.IsNaN(v) {
		return rsiNeutral
	}
	return clamp(v, rsiFloor, rsiCeiling)
}

// MACD is (SMA12 - SMA26) / close * 100, or 0 with fewer than 26 closes.
func MACD(closes []float64) float64 {
	n := len(closes)
	if n < MACDSlow {
		return 0
	}
	return macdProxy(SMA(closes, MACDFast), SMA(closes, MACDSlow), closes[n-1])
}

func macdProxy(fast, slow, close float64) float64 {
	if close == 0 {
		return 0
	}
	return (fast - slow) / close * 100
}

// Enrich computes indicators for every point of a chronologically ascending
// series using only points [0..i] for index i, then attaches the signal to
// the final point. The output has the same length as the input.
func Enrich(series []models.OHLCV) []models.EnrichedPoint {
	if len(series) == 0 {
		return []models.EnrichedPoint{}
	}

	closes := models.Closes(series)
	sma50 := trailingSMA(closes, SMAShortWindow)
	sma200 := trailingSMA(closes, SMALongWindow)
	sma12 := trailingSMA(closes, MACDFast)
	sma26 := trailingSMA(closes, MACDSlow)

	out := make([]models.EnrichedPoint, len(series))
	for i, p := range series {
		ep := models.EnrichedPoint{
			OHLCV:  p,
			SMA50:  sma50[i],
			SMA200: sma200[i],
			RSI:    rsiAt(closes, i),
			MACD:   macdAt(closes, sma12, sma26, i),
		}

		// Only the moving averages carry forward; RSI and MACD do not.
		if i > 0 {
			if ep.SMA50 == 0 {
				ep.SMA50 = out[i-1].SMA50
			}
			if ep.SMA200 == 0 {
				ep.SMA200 = out[i-1].SMA200
			}
		}
		out[i] = ep
	}

	last := &out[len(out)-1]
	last.Signal = Classify(*last).Signal
	return out
}

// trailingSMA returns SMA(closes[:i+1], window) for every i. Each value
// depends only on closes[:i+1], so a prefix yields the same numbers.
func trailingSMA(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	warmup := min(window-1, len(closes))
	for i := 0; i < warmup; i++ {
		out[i] = closes[i]
	}
	if len(closes) < window {
		return out
	}

	rolling := talib.Sma(closes, window)
	copy(out[window-1:], rolling[window-1:])
	return out
}

func rsiAt(closes []float64, i int) float64 {
	if i+1 < RSIPeriod {
		return rsiNeutral
	}
	lastChange := 0.0
	if i >= 1 {
		lastChange = closes[i] - closes[i-1]
	}
	return rsiProxy(lastChange, closes[i])
}

func macdAt(closes, sma12, sma26 []float64, i int) float64 {
	if i+1 < MACDSlow {
		return 0
	}
	return macdProxy(sma12[i], sma26[i], closes[i])
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
