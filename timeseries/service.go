// Package timeseries serves enriched daily series, fetching from the market
// data provider only on a cache miss.
package timeseries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"stock-pulse/cache"
	"stock-pulse/config"
	"stock-pulse/indicators"
	"stock-pulse/models"
	"stock-pulse/observability"
	"stock-pulse/services"
)

// Cache is the subset of cache.Store the service needs
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

var _ Cache = (*cache.Store)(nil)

// Options controls freshness and pacing of provider calls
type Options struct {
	TTL       time.Duration // lifetime of a cached series
	CallDelay time.Duration // wait before every cache-miss fetch
	Timeout   time.Duration // bound on one provider call
}

// OptionsFromConfig reads the cache TTL, call delay and provider timeout
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TTL:       cfg.CacheTTL(),
		CallDelay: cfg.CallDelay(),
		Timeout:   cfg.ProviderTimeout(),
	}
}

// Service returns enriched series from the cache or the provider
type Service struct {
	provider services.MarketDataProvider
	cache    Cache
	opts     Options
	group    singleflight.Group
}

// NewService creates a Service. A zero TTL falls back to cache.DefaultTTL.
func NewService(provider services.MarketDataProvider, c Cache, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	return &Service{
		provider: provider,
		cache:    c,
		opts:     opts,
	}
}

// CacheKey returns provider:function:SYMBOL
func (s *Service) CacheKey(symbol string) string {
	return fmt.Sprintf("%s:%s:%s", s.provider.Name(), s.provider.Function(), strings.ToUpper(strings.TrimSpace(symbol)))
}

// GetEnrichedSeries returns the enriched daily series for symbol. It returns
// (nil, nil) when no data is available right now: the provider is rate
// limited, has no series, is unavailable, or timed out. Any other failure is
// returned as an error. Concurrent misses for one symbol share a fetch.
func (s *Service) GetEnrichedSeries(ctx context.Context, symbol string) ([]models.EnrichedPoint, error) {
	key := s.CacheKey(symbol)

	var cached []models.EnrichedPoint
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	// The shared fetch outlives a cancelled caller so other waiters still
	// get its result.
	ch := s.group.DoChan(key, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), symbol, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		points, _ := res.Val.([]models.EnrichedPoint)
		return points, nil
	}
}

func (s *Service) load(ctx context.Context, symbol, key string) ([]models.EnrichedPoint, error) {
	log := observability.WithSymbol(symbol)

	// A flight that finished while this one waited may have filled the cache.
	var cached []models.EnrichedPoint
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	if err := sleep(ctx, s.opts.CallDelay); err != nil {
		return nil, err
	}

	fetchCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	series, err := s.provider.FetchDailySeries(fetchCtx, symbol)
	if err != nil {
		switch {
		case services.IsTransient(err):
			log.Warn("no series available from provider", "provider", s.provider.Name(), "reason", err)
			return nil, nil
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			log.Warn("provider call timed out", "provider", s.provider.Name(), "timeout", s.opts.Timeout)
			return nil, nil
		default:
			return nil, fmt.Errorf("failed to fetch %s from %s: %w", symbol, s.provider.Name(), err)
		}
	}
	if len(series) == 0 {
		log.Warn("provider returned an empty series", "provider", s.provider.Name())
		return nil, nil
	}

	enriched := indicators.Enrich(series)

	if err := s.cache.Set(ctx, key, enriched, s.opts.TTL); err != nil {
		log.Error("failed to cache enriched series", "key", key, "error", err)
	}

	return enriched, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
