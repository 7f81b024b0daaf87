package handlers

import (
	"net/http"
	"sync"
	"time"

	"solana-gif-portal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	clientBuffer = 16
)

// Event is one message pushed to websocket clients
type Event struct {
	ID        string      `json:"id"`
	Kind      string      `json:"kind"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// EventHub fans portal events out to every connected websocket client.
// It implements services.EventSink.
type EventHub struct {
	upgrader websocket.Upgrader
	snapshot func() Event

	mu      sync.RWMutex
	clients map[chan Event]struct{}
}

// NewEventHub creates a hub. snapshot, when set, produces the event sent to
// each client right after it connects.
func NewEventHub(snapshot func() Event) *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		snapshot: snapshot,
		clients:  make(map[chan Event]struct{}),
	}
}

// NewEvent stamps payload with an id and time
func NewEvent(kind string, payload interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Kind:      kind,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publish implements services.EventSink. Slow clients miss events rather
// than block the publisher.
func (h *EventHub) Publish(kind string, payload interface{}) {
	ev := NewEvent(kind, payload)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client <- ev:
		default:
		}
	}
}

// Clients returns the number of connected clients
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *EventHub) register() chan Event {
	client := make(chan Event, clientBuffer)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

func (h *EventHub) unregister(client chan Event) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

// Serve handles GET /ws
func (h *EventHub) Serve(c *gin.Context) {
	log := logger.GetLogger().WithContext(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := h.register()
	defer h.unregister(client)
	log.Debug("WebSocket client connected", zap.Int("clients", h.Clients()))

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	if h.snapshot != nil {
		if err := writeEvent(conn, h.snapshot()); err != nil {
			return
		}
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Debug("WebSocket client disconnected")
			return
		case ev := <-client:
			if err := writeEvent(conn, ev); err != nil {
				log.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and signals when the peer goes away
func (h *EventHub) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, ev Event) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(ev)
}
