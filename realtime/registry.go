// Package realtime pushes simulated intraday price moves and ranking
// snapshots to connected WebSocket subscribers.
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"

	"stock-pulse/observability"
)

// Subscriber is one connected push channel
type Subscriber interface {
	ID() string
	IsOpen() bool
	Send(msg []byte) error
}

// Registry tracks connected subscribers and fans messages out to them
type Registry struct {
	mu             sync.RWMutex
	subs           map[string]Subscriber
	onFirstConnect func()
	metrics        *observability.Metrics
}

// NewRegistry creates a Registry. onFirstConnect runs, outside the registry
// lock, whenever a subscriber joins an empty registry.
func NewRegistry(onFirstConnect func()) *Registry {
	return &Registry{
		subs:           make(map[string]Subscriber),
		onFirstConnect: onFirstConnect,
		metrics:        observability.GetMetrics(),
	}
}

// OnConnect adds sub to the set
func (r *Registry) OnConnect(sub Subscriber) {
	r.mu.Lock()
	first := len(r.subs) == 0
	r.subs[sub.ID()] = sub
	n := len(r.subs)
	r.mu.Unlock()

	r.metrics.SetSubscribers(n)
	observability.Debug("subscriber connected", "subscriber", sub.ID(), "subscribers", n)

	if first && r.onFirstConnect != nil {
		r.onFirstConnect()
	}
}

// OnDisconnect removes sub from the set whatever its state
func (r *Registry) OnDisconnect(sub Subscriber) {
	r.mu.Lock()
	delete(r.subs, sub.ID())
	n := len(r.subs)
	r.mu.Unlock()

	r.metrics.SetSubscribers(n)
	observability.Debug("subscriber disconnected", "subscriber", sub.ID(), "subscribers", n)
}

// Count returns the number of connected subscribers
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Broadcast encodes msg once and sends it to every open subscriber. Send
// failures are logged and skipped; only an encoding failure is returned.
func (r *Registry) Broadcast(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode broadcast: %w", err)
	}

	r.mu.RLock()
	subs := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.RUnlock()

	for _, s := range subs {
		if !s.IsOpen() {
			continue
		}
		if err := s.Send(payload); err != nil {
			observability.Debug("dropping message for subscriber", "subscriber", s.ID(), "error", err)
		}
	}
	return nil
}
