package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors that callers treat as "skip this symbol for now"
var (
	ErrRateLimited         = errors.New("market data provider rate limit reached")
	ErrNotFound            = errors.New("no time series data for symbol")
	ErrProviderUnavailable = errors.New("market data provider unavailable")
)

// ProviderError is a non-2xx response or an explicit error payload from a
// market data provider
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when the provider answered 200 with an error body
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Unwrap maps HTTP 429 onto ErrRateLimited
func (e *ProviderError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// IsTransient reports whether err means no data is available right now
// rather than a failure worth surfacing.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProviderUnavailable)
}

// errorType labels err for the external API error metric
func errorType(err error) string {
	var perr *ProviderError
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	case errors.As(err, &perr):
		return "provider"
	default:
		return "transport"
	}
}
