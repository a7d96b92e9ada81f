package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"stock-pulse/models"
	"stock-pulse/observability"
)

const (
	sendQueueSize = 64
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
)

var (
	errSubscriberClosed = errors.New("subscriber closed")
	errSendQueueFull    = errors.New("send queue full")
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsSubscriber is a WebSocket connection with a buffered outbound queue
// drained by its own writer goroutine
type wsSubscriber struct {
	id        string
	conn      *websocket.Conn
	out       chan []byte
	done      chan struct{}
	open      atomic.Bool
	closeOnce sync.Once
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	s := &wsSubscriber{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	s.open.Store(true)
	return s
}

func (s *wsSubscriber) ID() string   { return s.id }
func (s *wsSubscriber) IsOpen() bool { return s.open.Load() }

// Send queues msg without blocking. A full queue drops the message.
func (s *wsSubscriber) Send(msg []byte) error {
	if !s.IsOpen() {
		return errSubscriberClosed
	}
	select {
	case <-s.done:
		return errSubscriberClosed
	case s.out <- msg:
		return nil
	default:
		return errSendQueueFull
	}
}

func (s *wsSubscriber) close() {
	s.closeOnce.Do(func() {
		s.open.Store(false)
		close(s.done)
		s.conn.Close()
	})
}

func (s *wsSubscriber) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}
		case <-ping.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop discards inbound frames and returns when the peer goes away
func (s *wsSubscriber) readLoop() {
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				observability.Debug("websocket read failed", "subscriber", s.id, "error", err)
			}
			return
		}
	}
}

// WSHandler upgrades the request, acknowledges the connection and keeps the
// subscriber registered until the peer disconnects.
func WSHandler(reg *Registry) http.HandlerFunc {
	ack, _ := json.Marshal(models.NewConnectionAck())

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			observability.Warn("websocket upgrade failed", "error", err)
			return
		}

		sub := newWSSubscriber(conn)
		go sub.writeLoop()

		sub.Send(ack)
		reg.OnConnect(sub)

		sub.readLoop()

		sub.close()
		reg.OnDisconnect(sub)
	}
}
