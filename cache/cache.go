// Package cache stores enriched time series as JSON under a TTL, backed by
// Redis when reachable at startup and by an in-process map otherwise.
package cache

import (
	"context"
	"encoding/json"
	"reflect"
	"time"

	"stock-pulse/observability"
)

// DefaultTTL is the lifetime of a batch-fetched series
const DefaultTTL = 12 * time.Hour

// Backend is a byte-level key/value store with per-key expiry
type Backend interface {
	Name() string
	// Get returns the stored bytes and whether the key was present and unexpired
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key; ttl <= 0 keeps it until overwritten
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// Store is the JSON-encoding cache used by the rest of the service
type Store struct {
	backend Backend
	metrics *observability.Metrics
}

// NewStore wraps a backend
func NewStore(backend Backend) *Store {
	return &Store{
		backend: backend,
		metrics: observability.GetMetrics(),
	}
}

// New selects the backend once: Redis when redisURL is set and answers PING,
// the in-process map otherwise. A failed Redis connection is never retried.
func New(ctx context.Context, redisURL string) *Store {
	log := observability.WithComponent("cache")

	if redisURL == "" {
		log.Warn("REDIS_URL not set, using in-memory cache")
		return NewStore(NewMemoryBackend())
	}

	backend, err := NewRedisBackend(ctx, redisURL)
	if err != nil {
		log.Error("failed to connect to redis, falling back to in-memory cache", "error", err)
		observability.GetMetrics().RecordCacheFallback()
		return NewStore(NewMemoryBackend())
	}

	log.Info("connected to redis")
	return NewStore(backend)
}

// Backend returns the name of the active backend
func (s *Store) Backend() string {
	return s.backend.Name()
}

// Get decodes the value stored under key into dest and reports whether it
// did. Missing or expired keys, backend read failures and corrupt values
// are all misses.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if key == "" {
		return false
	}

	name := s.backend.Name()
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		observability.Warn("cache read failed", "backend", name, "key", key, "error", err)
		s.metrics.RecordCacheLookup(name, "error")
		return false
	}
	if !ok {
		s.metrics.RecordCacheLookup(name, "miss")
		return false
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		observability.Warn("failed to decode cached value", "backend", name, "key", key, "error", err)
		s.metrics.RecordCacheLookup(name, "error")
		return false
	}

	s.metrics.RecordCacheLookup(name, "hit")
	return true
}

// Set encodes value as JSON and stores it under key for ttl. An empty key or
// a nil value is ignored.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" || isNil(value) {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	name := s.backend.Name()
	if err := s.backend.Set(ctx, key, raw, ttl); err != nil {
		s.metrics.RecordCacheWrite(name, "error")
		return err
	}
	s.metrics.RecordCacheWrite(name, "ok")
	return nil
}

// Close releases the backend
func (s *Store) Close() error {
	return s.backend.Close()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
