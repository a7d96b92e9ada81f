package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestAlphaVantage(t *testing.T, body string) *AlphaVantageService {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "TIME_SERIES_DAILY" || q.Get("outputsize") != "full" || q.Get("apikey") != "test-key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	svc := NewAlphaVantageService("test-key", testOptions())
	svc.baseURL = server.URL
	return svc
}

func TestNewAlphaVantageService(t *testing.T) {
	service := NewAlphaVantageService("test-api-key", DefaultProviderOptions())
	if service == nil {
		t.Fatal("NewAlphaVantageService should not return nil")
	}
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %v, want 'test-api-key'", service.apiKey)
	}
	if service.baseURL != "https://www.alphavantage.co/query" {
		t.Errorf("baseURL = %v, want 'https://www.alphavantage.co/query'", service.baseURL)
	}
}

func TestAlphaVantageService_FetchDailySeries(t *testing.T) {
	var gotSymbol string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		w.Write([]byte(`{
			"Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "RELIANCE.NSE"},
			"Time Series (Daily)": {
				"2024-07-02": {"1. open": "3000.00", "2. high": "3020.00", "3. low": "2990.00", "4. close": "3010.50", "5. volume": "1500000"},
				"2024-07-01": {"1. open": "2950.00", "2. high": "3005.00", "3. low": "2940.00", "4. close": "2999.90", "5. volume": "1200000"},
				"2024-06-28": {"1. open": "2900.00", "2. high": "2960.00", "3. low": "2890.00", "4. close": "2945.00", "5. volume": "900000"}
			}
		}`))
	}))
	defer server.Close()

	svc := NewAlphaVantageService("test-key", testOptions())
	svc.baseURL = server.URL

	points, err := svc.FetchDailySeries(context.Background(), "reliance")
	if err != nil {
		t.Fatalf("FetchDailySeries() error = %v", err)
	}
	if gotSymbol != "RELIANCE.NSE" {
		t.Errorf("symbol = %s, want RELIANCE.NSE", gotSymbol)
	}
	if len(points) != 3 {
		t.Fatalf("len = %d, want 3", len(points))
	}
	if points[0].Date != "2024-06-28" || points[2].Date != "2024-07-02" {
		t.Errorf("points not sorted ascending: %+v", points)
	}
	last := points[2]
	if last.Open != 3000 || last.High != 3020 || last.Low != 2990 || last.Close != 3010.5 || last.Volume != 1500000 {
		t.Errorf("normalized point = %+v", last)
	}
}

func TestAlphaVantageService_PayloadClassification(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "note rate limit",
			body:    `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute and 500 calls per day."}`,
			wantErr: ErrRateLimited,
		},
		{
			name:    "information rate limit",
			body:    `{"Information": "We have detected your API key and our standard API rate limit is 25 requests per day."}`,
			wantErr: ErrRateLimited,
		},
		{
			name:    "missing series",
			body:    `{"Meta Data": {"2. Symbol": "NOPE.NSE"}}`,
			wantErr: ErrNotFound,
		},
		{
			name:    "empty series",
			body:    `{"Time Series (Daily)": {}}`,
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAlphaVantage(t, tt.body)
			points, err := svc.FetchDailySeries(context.Background(), "TCS")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if points != nil {
				t.Errorf("expected nil points, got %+v", points)
			}
		})
	}
}

func TestAlphaVantageService_ErrorMessage(t *testing.T) {
	svc := newTestAlphaVantage(t, `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`)

	_, err := svc.FetchDailySeries(context.Background(), "BAD")
	var perr *ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ProviderError, got %v", err)
	}
	if perr.Provider != "av" || perr.StatusCode != 0 {
		t.Errorf("ProviderError = %+v", perr)
	}
}

func TestAlphaVantageService_SkipsUnparsableBars(t *testing.T) {
	svc := newTestAlphaVantage(t, `{
		"Time Series (Daily)": {
			"2024-07-02": {"1. open": "1", "2. high": "1", "3. low": "1", "4. close": "n/a", "5. volume": "1"},
			"2024-07-01": {"1. open": "1", "2. high": "2", "3. low": "1", "4. close": "1.5", "5. volume": "10"}
		}
	}`)

	points, err := svc.FetchDailySeries(context.Background(), "TCS")
	if err != nil {
		t.Fatalf("FetchDailySeries() error = %v", err)
	}
	if len(points) != 1 || points[0].Date != "2024-07-01" {
		t.Errorf("points = %+v, want only 2024-07-01", points)
	}
}

func TestIsRateLimitMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Our standard API call frequency is 5 calls per minute", true},
		{"standard API rate limit is 25 requests per day", true},
		{"This is a premium endpoint", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isRateLimitMessage(tt.msg); got != tt.want {
			t.Errorf("isRateLimitMessage(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
