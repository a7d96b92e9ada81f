package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"stock-pulse/models"
)

type series []models.EnrichedPoint

func sampleSeries() series {
	return series{
		{OHLCV: models.OHLCV{Date: "2024-07-01", Open: 2900, Close: 2950.5, Volume: 1200000}, SMA50: 2950.5, SMA200: 2950.5, RSI: 50},
		{OHLCV: models.OHLCV{Date: "2024-07-02", Open: 2950, Close: 3001.25, Volume: 900000}, SMA50: 3001.25, SMA200: 3001.25, RSI: 50, Signal: models.SignalHold},
	}
}

// failingBackend returns err from every call
type failingBackend struct{ err error }

func (f failingBackend) Name() string { return "failing" }
func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.err
}
func (f failingBackend) Set(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingBackend) Close() error                                             { return nil }

func TestStore_SetGetRoundTrip(t *testing.T) {
	store := NewStore(NewMemoryBackend())
	ctx := context.Background()

	if err := store.Set(ctx, "eod:daily:RELIANCE", sampleSeries(), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var got series
	if !store.Get(ctx, "eod:daily:RELIANCE", &got) {
		t.Fatal("Get() = miss, want hit")
	}
	if len(got) != 2 || got[1].Close != 3001.25 || got[1].Signal != models.SignalHold {
		t.Errorf("Get() = %+v, want the stored series", got)
	}
}

func TestStore_ExpiresAfterTTL(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	ctx := context.Background()

	store.Set(ctx, "k", sampleSeries(), 50*time.Millisecond)

	var got series
	if !store.Get(ctx, "k", &got) {
		t.Fatal("Get() immediately after Set() = miss, want hit")
	}

	time.Sleep(150 * time.Millisecond)

	if store.Get(ctx, "k", &got) {
		t.Error("Get() after TTL = hit, want miss")
	}
	if backend.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after the expiry timer fired", backend.Len())
	}
}

func TestStore_MissingKey(t *testing.T) {
	store := NewStore(NewMemoryBackend())

	var got series
	if store.Get(context.Background(), "av:TIME_SERIES_DAILY:NOPE", &got) {
		t.Error("Get() on missing key = hit, want miss")
	}
	if store.Get(context.Background(), "", &got) {
		t.Error("Get() on empty key = hit, want miss")
	}
}

func TestStore_CorruptValueIsMiss(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	ctx := context.Background()

	backend.Set(ctx, "eod:daily:TCS", []byte("{not json"), time.Minute)

	var got series
	if store.Get(ctx, "eod:daily:TCS", &got) {
		t.Error("Get() on corrupt value = hit, want miss")
	}
}

func TestStore_SetIgnoresEmptyKeyAndNilValue(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewStore(backend)
	ctx := context.Background()

	var nilSeries series
	var nilPtr *models.OHLCV

	for _, tc := range []struct {
		key   string
		value any
	}{
		{"", sampleSeries()},
		{"k", nil},
		{"k", nilSeries},
		{"k", nilPtr},
	} {
		if err := store.Set(ctx, tc.key, tc.value, time.Minute); err != nil {
			t.Errorf("Set(%q, %v) error = %v, want nil", tc.key, tc.value, err)
		}
	}

	if backend.Len() != 0 {
		t.Errorf("Len() = %d, want 0", backend.Len())
	}
}

func TestStore_BackendErrors(t *testing.T) {
	store := NewStore(failingBackend{err: errors.New("connection reset")})
	ctx := context.Background()

	var got series
	if store.Get(ctx, "k", &got) {
		t.Error("Get() with failing backend = hit, want miss")
	}
	if err := store.Set(ctx, "k", sampleSeries(), time.Minute); err == nil {
		t.Error("Set() with failing backend should return the error")
	}
}

func TestNew_WithoutRedisURL(t *testing.T) {
	store := New(context.Background(), "")
	defer store.Close()

	if store.Backend() != "memory" {
		t.Errorf("Backend() = %q, want memory", store.Backend())
	}
}

func TestNew_FallsBackWhenRedisUnreachable(t *testing.T) {
	for _, url := range []string{"redis://127.0.0.1:1/0", "not-a-redis-url"} {
		t.Run(url, func(t *testing.T) {
			ctx := context.Background()
			store := New(ctx, url)
			defer store.Close()

			if store.Backend() != "memory" {
				t.Fatalf("Backend() = %q, want memory fallback", store.Backend())
			}

			if err := store.Set(ctx, "eod:daily:INFY", sampleSeries(), time.Minute); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			var got series
			if !store.Get(ctx, "eod:daily:INFY", &got) || len(got) != 2 {
				t.Errorf("fallback round trip failed, got %+v", got)
			}
		})
	}
}

func TestRedisBackend_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping redis integration test")
	}

	ctx := context.Background()
	backend, err := NewRedisBackend(ctx, url)
	if err != nil {
		t.Fatalf("NewRedisBackend() error = %v", err)
	}
	defer backend.Close()

	store := NewStore(backend)
	key := "test:daily:" + time.Now().Format("150405.000000")

	if err := store.Set(ctx, key, sampleSeries(), time.Second); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	var got series
	if !store.Get(ctx, key, &got) {
		t.Fatal("Get() = miss, want hit")
	}

	time.Sleep(1500 * time.Millisecond)
	if store.Get(ctx, key, &got) {
		t.Error("Get() after TTL = hit, want miss")
	}
}
