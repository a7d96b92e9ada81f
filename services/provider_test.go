package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"stock-pulse/config"
	"stock-pulse/models"
)

// testOptions disables backoff and isolates breaker state per test
func testOptions() ProviderOptions {
	return ProviderOptions{
		Exchange: "NSE",
		Retry: RetryConfig{
			MaxRetries:     1,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
		Breakers: NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig),
	}
}

func TestSortAndTrim(t *testing.T) {
	points := []models.OHLCV{
		{Date: "2024-07-03", Close: 3},
		{Date: "2024-07-01", Close: 1},
		{Date: "2024-07-02", Close: 2},
		{Date: "2024-07-01", Close: 11},
	}

	got := sortAndTrim(points, 0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3 after de-duplication", len(got))
	}
	wantDates := []string{"2024-07-01", "2024-07-02", "2024-07-03"}
	for i, d := range wantDates {
		if got[i].Date != d {
			t.Errorf("got[%d].Date = %s, want %s", i, got[i].Date, d)
		}
	}
	if got[0].Close != 11 {
		t.Errorf("duplicate date kept Close = %v, want the last one seen (11)", got[0].Close)
	}

	trimmed := sortAndTrim(points, 2)
	if len(trimmed) != 2 || trimmed[0].Date != "2024-07-02" || trimmed[1].Date != "2024-07-03" {
		t.Errorf("sortAndTrim(limit=2) = %+v, want the two most recent days", trimmed)
	}

	if got := sortAndTrim(nil, 5); len(got) != 0 {
		t.Errorf("sortAndTrim(nil) = %+v, want empty", got)
	}
}

func TestProviderSymbol(t *testing.T) {
	tests := []struct {
		symbol, exchange, want string
	}{
		{"reliance", "NSE", "RELIANCE.NSE"},
		{" TCS ", "NSE", "TCS.NSE"},
		{"IBM", "", "IBM"},
	}
	for _, tt := range tests {
		if got := providerSymbol(tt.symbol, tt.exchange); got != tt.want {
			t.Errorf("providerSymbol(%q, %q) = %q, want %q", tt.symbol, tt.exchange, got, tt.want)
		}
	}
}

func TestNewProvider(t *testing.T) {
	cfg := config.NewTestConfig()

	cfg.MarketData.Provider = config.ProviderEOD
	p, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider(eod) error = %v", err)
	}
	if p.Name() != "eod" || p.Function() != "daily" {
		t.Errorf("eod provider = %s:%s, want eod:daily", p.Name(), p.Function())
	}

	cfg.MarketData.Provider = config.ProviderAlphaVantage
	p, err = NewProvider(cfg)
	if err != nil {
		t.Fatalf("NewProvider(alphavantage) error = %v", err)
	}
	if p.Name() != "av" || p.Function() != "TIME_SERIES_DAILY" {
		t.Errorf("alphavantage provider = %s:%s, want av:TIME_SERIES_DAILY", p.Name(), p.Function())
	}
	if svc := p.(*AlphaVantageService); svc.baseURL != cfg.AlphaVantage.BaseURL {
		t.Errorf("baseURL = %s, want %s", svc.baseURL, cfg.AlphaVantage.BaseURL)
	}

	cfg.MarketData.Provider = "yahoo"
	if _, err := NewProvider(cfg); err == nil {
		t.Error("NewProvider(yahoo) should fail")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("wrapped: %w", ErrRateLimited), true},
		{fmt.Errorf("wrapped: %w", ErrNotFound), true},
		{fmt.Errorf("wrapped: %w", ErrProviderUnavailable), true},
		{&ProviderError{Provider: "eod", StatusCode: 500, Message: "boom"}, false},
		{errors.New("dial tcp: connection refused"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrRateLimited, "rate_limited"},
		{ErrNotFound, "not_found"},
		{ErrProviderUnavailable, "unavailable"},
		{fmt.Errorf("failed: %w", &ProviderError{Provider: "av", Message: "bad"}), "provider"},
		{errors.New("EOF"), "transport"},
	}
	for _, tt := range tests {
		if got := errorType(tt.err); got != tt.want {
			t.Errorf("errorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestProviderError_Error(t *testing.T) {
	withStatus := &ProviderError{Provider: "eod", StatusCode: 404, Message: "Ticker Not Found."}
	if got := withStatus.Error(); got != "eod: status 404: Ticker Not Found." {
		t.Errorf("Error() = %q", got)
	}
	payload := &ProviderError{Provider: "av", Message: "Invalid API call."}
	if got := payload.Error(); got != "av: Invalid API call." {
		t.Errorf("Error() = %q", got)
	}
}
