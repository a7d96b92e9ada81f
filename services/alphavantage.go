package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stock-pulse/models"
	"stock-pulse/observability"
)

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	opts       ProviderOptions
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string, opts ProviderOptions) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://www.alphavantage.co/query",
		opts:       opts,
	}
}

func (s *AlphaVantageService) Name() string     { return "av" }
func (s *AlphaVantageService) Function() string { return "TIME_SERIES_DAILY" }

// dailyBar is one day of a TIME_SERIES_DAILY response
type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// FetchDailySeries returns the symbol's full daily history, oldest first
func (s *AlphaVantageService) FetchDailySeries(ctx context.Context, symbol string) ([]models.OHLCV, error) {
	params := url.Values{}
	params.Set("function", s.Function())
	params.Set("symbol", providerSymbol(symbol, s.opts.Exchange))
	params.Set("outputsize", "full")
	params.Set("apikey", s.apiKey)
	endpoint := s.baseURL + "?" + params.Encode()

	return fetchSeries(ctx, s.Name(), s.Function(), BreakerAlphaVantage, s.opts,
		func() ([]byte, error) {
			return doGet(ctx, s.httpClient, s.Name(), endpoint)
		},
		func(body []byte) ([]models.OHLCV, error) {
			return s.parseDaily(symbol, body)
		})
}

// parseDaily classifies the payload. Alpha Vantage answers 200 for rate
// limits and bad symbols, so the body decides.
func (s *AlphaVantageService) parseDaily(symbol string, body []byte) ([]models.OHLCV, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &decodeError{provider: s.Name(), err: err}
	}

	if note := stringField(payload, "Note"); isRateLimitMessage(note) {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, note)
	}
	if info := stringField(payload, "Information"); isRateLimitMessage(info) {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, info)
	}
	if msg := stringField(payload, "Error Message"); msg != "" {
		return nil, &ProviderError{Provider: s.Name(), Message: msg}
	}

	var series map[string]dailyBar
	for key, raw := range payload {
		if !strings.Contains(key, "Time Series") {
			continue
		}
		if err := json.Unmarshal(raw, &series); err != nil {
			return nil, &decodeError{provider: s.Name(), err: err}
		}
		break
	}

	points := normalizeAlphaVantage(series)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return points, nil
}

func normalizeAlphaVantage(series map[string]dailyBar) []models.OHLCV {
	points := make([]models.OHLCV, 0, len(series))
	for date, bar := range series {
		closePrice, err := strconv.ParseFloat(bar.Close, 64)
		if err != nil {
			observability.Debug("skipping unparsable alpha vantage bar", "date", date, "error", err)
			continue
		}
		open, _ := strconv.ParseFloat(bar.Open, 64)
		high, _ := strconv.ParseFloat(bar.High, 64)
		low, _ := strconv.ParseFloat(bar.Low, 64)
		volume, _ := strconv.ParseFloat(bar.Volume, 64)

		points = append(points, models.OHLCV{
			Date:   date,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePrice,
			Volume: int64(volume),
		})
	}
	return points
}

func stringField(payload map[string]json.RawMessage, key string) string {
	raw, ok := payload[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "calls per minute") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "requests per day")
}
