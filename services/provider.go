package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"stock-pulse/config"
	"stock-pulse/models"
	"stock-pulse/observability"
)

// MarketDataProvider fetches a symbol's full daily OHLCV history from one
// upstream source. Name and Function form the first two segments of the
// cache key.
type MarketDataProvider interface {
	Name() string
	Function() string
	FetchDailySeries(ctx context.Context, symbol string) ([]models.OHLCV, error)
}

// maxErrorBody bounds how much of a non-2xx body is kept in a ProviderError
const maxErrorBody = 512

// NewProvider builds the provider selected by MARKET_DATA_PROVIDER
func NewProvider(cfg *config.Config) (MarketDataProvider, error) {
	opts := ProviderOptions{
		Exchange:     cfg.MarketData.Exchange,
		HistoryLimit: cfg.MarketData.HistoryLimit,
		Retry: RetryConfig{
			MaxRetries:     cfg.MarketData.MaxRetries,
			InitialBackoff: time.Duration(cfg.MarketData.RetryBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.MarketData.RetryMaxBackoff) * time.Millisecond,
		},
		Breakers: GetGlobalRegistry(),
	}

	switch cfg.MarketData.Provider {
	case config.ProviderEOD:
		if cfg.EOD.APIKey == "" {
			observability.Warn("EOD_API_KEY not set, provider calls will be rejected upstream")
		}
		svc := NewEODService(cfg.EOD.APIKey, opts)
		svc.baseURL = strings.TrimRight(cfg.EOD.BaseURL, "/")
		return svc, nil
	case config.ProviderAlphaVantage:
		if cfg.AlphaVantage.APIKey == "" {
			observability.Warn("ALPHA_VANTAGE_API_KEY not set, provider calls will be rejected upstream")
		}
		svc := NewAlphaVantageService(cfg.AlphaVantage.APIKey, opts)
		svc.baseURL = cfg.AlphaVantage.BaseURL
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.MarketData.Provider)
	}
}

// ProviderOptions are the settings shared by every provider client
type ProviderOptions struct {
	Exchange     string
	HistoryLimit int // 0 keeps the full history
	Retry        RetryConfig
	Breakers     *CircuitBreakerRegistry
}

// DefaultProviderOptions targets NSE with the default retry policy
func DefaultProviderOptions() ProviderOptions {
	return ProviderOptions{
		Exchange: "NSE",
		Retry:    DefaultRetryConfig,
		Breakers: GetGlobalRegistry(),
	}
}

// providerSymbol appends the exchange suffix, e.g. RELIANCE.NSE
func providerSymbol(symbol, exchange string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if exchange == "" {
		return symbol
	}
	return symbol + "." + exchange
}

// fetchSeries runs one provider request through the circuit breaker, retry
// and metrics. get returns the raw body of a 2xx response; parse turns it
// into unsorted points.
func fetchSeries(
	ctx context.Context,
	name, function, breaker string,
	opts ProviderOptions,
	get func() ([]byte, error),
	parse func([]byte) ([]models.OHLCV, error),
) ([]models.OHLCV, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(name, function)
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(name, function)

	points, err := WithCircuitBreaker(ctx, opts.Breakers, breaker, func() ([]models.OHLCV, error) {
		var points []models.OHLCV
		err := WithRetry(ctx, opts.Retry, func() error {
			body, err := get()
			if err != nil {
				return err
			}
			points, err = parse(body)
			return err
		})
		return points, err
	})
	if err != nil {
		metrics.RecordExternalAPIError(name, function, errorType(err))
		return nil, err
	}

	return sortAndTrim(points, opts.HistoryLimit), nil
}

// doGet issues a GET and returns the body of a 2xx response. Any other
// status becomes a *ProviderError carrying the body text.
func doGet(ctx context.Context, client *http.Client, provider, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", provider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Message: msg}
	}

	return body, nil
}

// sortAndTrim orders points by date ascending, keeps the last point seen for
// each date and, when limit > 0, only the most recent limit points.
func sortAndTrim(points []models.OHLCV, limit int) []models.OHLCV {
	if len(points) == 0 {
		return points
	}

	byDate := make(map[string]int, len(points))
	out := make([]models.OHLCV, 0, len(points))
	for _, p := range points {
		if i, ok := byDate[p.Date]; ok {
			out[i] = p
			continue
		}
		byDate[p.Date] = len(out)
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
