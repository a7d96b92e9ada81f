package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"stock-pulse/models"
)

// EODService fetches daily end-of-day bars from EOD Historical Data
type EODService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	opts       ProviderOptions
}

// NewEODService creates a new EODService instance
func NewEODService(apiKey string, opts ProviderOptions) *EODService {
	return &EODService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://eodhistoricaldata.com/api/eod",
		opts:       opts,
	}
}

func (s *EODService) Name() string     { return "eod" }
func (s *EODService) Function() string { return "daily" }

// eodBar is one element of the EOD daily response array
type eodBar struct {
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        float64 `json:"volume"`
}

// FetchDailySeries returns the symbol's daily history, oldest first.
// An empty array, or a JSON body that is not an array, is ErrNotFound.
func (s *EODService) FetchDailySeries(ctx context.Context, symbol string) ([]models.OHLCV, error) {
	params := url.Values{}
	params.Set("api_token", s.apiKey)
	params.Set("fmt", "json")
	params.Set("period", "d")
	endpoint := fmt.Sprintf("%s/%s?%s", s.baseURL, url.PathEscape(providerSymbol(symbol, s.opts.Exchange)), params.Encode())

	return fetchSeries(ctx, s.Name(), s.Function(), BreakerEOD, s.opts,
		func() ([]byte, error) {
			return doGet(ctx, s.httpClient, s.Name(), endpoint)
		},
		func(body []byte) ([]models.OHLCV, error) {
			var raw json.RawMessage
			if err := json.Unmarshal(body, &raw); err != nil {
				return nil, &decodeError{provider: s.Name(), err: err}
			}
			// Unknown tickers come back as a 200 with an error object.
			if !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
			}
			var bars []eodBar
			if err := json.Unmarshal(raw, &bars); err != nil {
				return nil, &decodeError{provider: s.Name(), err: err}
			}
			points := normalizeEOD(bars)
			if len(points) == 0 {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
			}
			return points, nil
		})
}

func normalizeEOD(bars []eodBar) []models.OHLCV {
	points := make([]models.OHLCV, 0, len(bars))
	for _, b := range bars {
		if b.Date == "" {
			continue
		}
		points = append(points, models.OHLCV{
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return points
}
