package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps values in a map and deletes each key with a timer
// when its TTL elapses.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
	timer     *time.Timer
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryBackend) Name() string {
	return "memory"
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	// The timer may not have fired yet.
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.removeLocked(key, e)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}

	e := &memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
		e.timer = time.AfterFunc(ttl, func() { m.expire(key, e) })
	}
	m.entries[key] = e
	return nil
}

// expire removes key only if it still holds e, so an overwrite is not
// deleted by the previous value's timer.
func (m *MemoryBackend) expire(key string, e *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[key] == e {
		delete(m.entries, key)
	}
}

func (m *MemoryBackend) removeLocked(key string, e *memoryEntry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(m.entries, key)
}

// Len returns the number of stored keys, including expired keys whose
// timer has not fired.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops all pending expiry timers and drops every entry
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, e := range m.entries {
		m.removeLocked(key, e)
	}
	return nil
}
