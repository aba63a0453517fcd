package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/moneyflow/internal/api/handlers"
	"github.com/wonny/moneyflow/internal/contracts"
	"github.com/wonny/moneyflow/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	sendBuffer = 4
)

// StreamMessage is the frame sent to dashboard subscribers
type StreamMessage struct {
	Type string                  `json:"type"` // "dashboard"
	Data *handlers.DashboardView `json:"data"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans published dashboards out to WebSocket subscribers
// ⭐ SSOT: /ws/dashboard 구독자 관리는 여기서만
type Hub struct {
	upgrader websocket.Upgrader
	logger   *logger.Logger

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	latest      []byte
	closed      bool
}

// NewHub creates a new dashboard stream hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:      log.WithField("module", "api.stream"),
		subscribers: make(map[*subscriber]struct{}),
	}
}

// Publish sends a dashboard to every subscriber and keeps it for new ones.
// Subscribers that cannot keep up are dropped.
func (h *Hub) Publish(d *contracts.Dashboard) {
	if d == nil {
		return
	}

	view := handlers.NewDashboardView(d)
	msg, err := json.Marshal(StreamMessage{Type: "dashboard", Data: &view})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode dashboard")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.latest = msg
	for s := range h.subscribers {
		select {
		case s.send <- msg:
		default:
			h.logger.Warn("Slow subscriber dropped")
			h.removeLocked(s)
		}
	}

	h.logger.WithField("subscribers", len(h.subscribers)).Debug("Dashboard published")
}

// Subscribers returns the number of connected subscribers
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ServeHTTP upgrades the request and streams dashboards until the peer leaves
// GET /ws/dashboard
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.subscribers[s] = struct{}{}
	if h.latest != nil {
		s.send <- h.latest
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.logger.WithFields(map[string]interface{}{
		"remote":      r.RemoteAddr,
		"subscribers": count,
	}).Info("Dashboard subscriber connected")

	go h.writeLoop(s)
	h.readLoop(s)
}

// Close disconnects all subscribers
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subscribers {
		h.removeLocked(s)
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *subscriber) {
	if _, ok := h.subscribers[s]; !ok {
		return
	}
	delete(h.subscribers, s)
	close(s.send)
}

// readLoop discards client frames; it only tracks liveness
func (h *Hub) readLoop(s *subscriber) {
	defer func() {
		h.remove(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ contracts.DashboardPublisher = (*Hub)(nil)
