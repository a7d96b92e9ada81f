package services

// BreakerStatusProvider exposes circuit breaker state to the health endpoint
type BreakerStatusProvider interface {
	Status() map[string]CircuitBreakerStatus
}

var (
	_ MarketDataProvider    = (*EODService)(nil)
	_ MarketDataProvider    = (*AlphaVantageService)(nil)
	_ BreakerStatusProvider = (*CircuitBreakerRegistry)(nil)
)
