// Package mocks provides HTTP mock servers for the market data providers used in E2E tests.
package mocks

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Bar is one daily bar served by the mock
type Bar struct {
	Date   string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// MockServer serves EOD Historical Data and Alpha Vantage daily series
// from configurable per-symbol bars.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	bars        map[string][]Bar // key: provider symbol, e.g. TCS.NSE
	rateLimited map[string]bool
	statusCodes map[string]int

	requestLog []RequestLog
}

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Symbol string
}

// NewMockServer creates a new mock server with no series configured.
func NewMockServer() *MockServer {
	m := &MockServer{
		bars:        make(map[string][]Bar),
		rateLimited: make(map[string]bool),
		statusCodes: make(map[string]int),
	}
	m.server = httptest.NewServer(m)
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetBars configures the series returned for a provider symbol.
func (m *MockServer) SetBars(symbol string, bars []Bar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bars[symbol] = bars
}

// SetRateLimited makes every request for symbol answer with the provider's
// throttling payload.
func (m *MockServer) SetRateLimited(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited[symbol] = true
}

// SetStatus makes every request for symbol fail with status.
func (m *MockServer) SetStatus(symbol string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCodes[symbol] = status
}

// Requests returns a copy of the request log.
func (m *MockServer) Requests() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RequestLog, len(m.requestLog))
	copy(out, m.requestLog)
	return out
}

// RequestCount returns how many requests were made for symbol.
func (m *MockServer) RequestCount(symbol string) int {
	n := 0
	for _, r := range m.Requests() {
		if r.Symbol == symbol {
			n++
		}
	}
	return n
}

// ServeHTTP implements http.Handler. /query is Alpha Vantage, anything else
// is an EOD path ending in the provider symbol.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	alpha := r.URL.Path == "/query"
	symbol := r.URL.Query().Get("symbol")
	if !alpha {
		symbol = r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	}

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{Method: r.Method, Path: r.URL.Path, Symbol: symbol})
	bars := m.bars[symbol]
	limited := m.rateLimited[symbol]
	status := m.statusCodes[symbol]
	m.mu.Unlock()

	if status != 0 {
		http.Error(w, fmt.Sprintf("mock failure for %s", symbol), status)
		return
	}

	if alpha {
		m.serveAlphaVantage(w, bars, limited)
		return
	}
	m.serveEOD(w, bars, limited)
}

func (m *MockServer) serveEOD(w http.ResponseWriter, bars []Bar, limited bool) {
	if limited {
		http.Error(w, "You exceeded your daily API requests limit", http.StatusTooManyRequests)
		return
	}

	out := make([]map[string]any, 0, len(bars))
	for _, b := range bars {
		out = append(out, map[string]any{
			"date":           b.Date,
			"open":           b.Open,
			"high":           b.High,
			"low":            b.Low,
			"close":          b.Close,
			"adjusted_close": b.Close,
			"volume":         b.Volume,
		})
	}
	writeJSON(w, out)
}

func (m *MockServer) serveAlphaVantage(w http.ResponseWriter, bars []Bar, limited bool) {
	if limited {
		writeJSON(w, map[string]string{
			"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute.",
		})
		return
	}
	if len(bars) == 0 {
		writeJSON(w, map[string]string{"Error Message": "Invalid API call."})
		return
	}

	series := make(map[string]map[string]string, len(bars))
	for _, b := range bars {
		series[b.Date] = map[string]string{
			"1. open":   fmt.Sprintf("%.4f", b.Open),
			"2. high":   fmt.Sprintf("%.4f", b.High),
			"3. low":    fmt.Sprintf("%.4f", b.Low),
			"4. close":  fmt.Sprintf("%.4f", b.Close),
			"5. volume": fmt.Sprintf("%d", b.Volume),
		}
	}
	writeJSON(w, map[string]any{
		"Meta Data":           map[string]string{"1. Information": "Daily Prices"},
		"Time Series (Daily)": series,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// TrendingBars returns n consecutive daily bars rising from start by step,
// each closing above its open.
func TrendingBars(n int, start, step float64) []Bar {
	bars := make([]Bar, n)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		closePrice := start + float64(i)*step
		bars[i] = Bar{
			Date:   day.AddDate(0, 0, i).Format("2006-01-02"),
			Open:   closePrice - step/2,
			High:   closePrice + step,
			Low:    closePrice - step,
			Close:  closePrice,
			Volume: int64(100000 + i*1000),
		}
	}
	return bars
}
