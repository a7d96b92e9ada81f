package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// MockSubscriber records every payload it is sent
type MockSubscriber struct {
	id      string
	closed  atomic.Bool
	sendErr error

	mu   sync.Mutex
	sent [][]byte
}

func newMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{id: id}
}

func (m *MockSubscriber) ID() string   { return m.id }
func (m *MockSubscriber) IsOpen() bool { return !m.closed.Load() }

func (m *MockSubscriber) Send(msg []byte) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MockSubscriber) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, b := range m.sent {
		out[i] = string(b)
	}
	return out
}

func TestRegistry_FirstConnectCallback(t *testing.T) {
	var calls atomic.Int32
	reg := NewRegistry(func() { calls.Add(1) })

	a, b := newMockSubscriber("a"), newMockSubscriber("b")
	reg.OnConnect(a)
	reg.OnConnect(b)

	if calls.Load() != 1 {
		t.Errorf("onFirstConnect called %d times, want 1", calls.Load())
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	reg.OnDisconnect(a)
	reg.OnDisconnect(b)
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}

	reg.OnConnect(a)
	if calls.Load() != 2 {
		t.Errorf("reconnect into an empty registry should call onFirstConnect again, got %d calls", calls.Load())
	}
}

func TestRegistry_NilCallback(t *testing.T) {
	reg := NewRegistry(nil)
	reg.OnConnect(newMockSubscriber("a"))
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_DisconnectUnknownIsHarmless(t *testing.T) {
	reg := NewRegistry(nil)
	reg.OnDisconnect(newMockSubscriber("ghost"))
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
}

func TestRegistry_Broadcast(t *testing.T) {
	reg := NewRegistry(nil)

	open := newMockSubscriber("open")
	closed := newMockSubscriber("closed")
	closed.closed.Store(true)
	failing := newMockSubscriber("failing")
	failing.sendErr = errors.New("broken pipe")

	reg.OnConnect(open)
	reg.OnConnect(closed)
	reg.OnConnect(failing)

	if err := reg.Broadcast(map[string]string{"type": "TOP_PICKS"}); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	if got := open.Messages(); len(got) != 1 || got[0] != `{"type":"TOP_PICKS"}` {
		t.Errorf("open subscriber got %v", got)
	}
	if got := closed.Messages(); len(got) != 0 {
		t.Errorf("closed subscriber got %v, want nothing", got)
	}
	if reg.Count() != 3 {
		t.Errorf("Broadcast should not remove subscribers, Count() = %d", reg.Count())
	}
}

func TestRegistry_BroadcastEncodingError(t *testing.T) {
	reg := NewRegistry(nil)
	sub := newMockSubscriber("a")
	reg.OnConnect(sub)

	if err := reg.Broadcast(make(chan int)); err == nil {
		t.Error("Broadcast() of an unencodable value should fail")
	}
	if len(sub.Messages()) != 0 {
		t.Error("nothing should be sent when encoding fails")
	}
}
