package http

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"churnsight/logger"
)

// Event types pushed to dashboard clients.
const (
	EventPrediction = "prediction"
	EventAnalysis   = "analysis"
)

// liveEvent is the wire format for dashboard pushes.
type liveEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub fans prediction and analysis events out to connected dashboard
// clients. Adapted request flow: register/unregister via channels, broadcast
// dropped when the queue is full.
type Hub struct {
	clients    map[*liveClient]bool
	broadcast  chan []byte
	register   chan *liveClient
	unregister chan *liveClient
	mu         sync.Mutex
	upgrader   websocket.Upgrader
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

var liveHub = NewHub()

// NewHub creates an idle hub; call Run in a goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*liveClient]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Run processes hub events for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast pushes one event to every connected client. Events are dropped
// when the queue is full rather than blocking a request handler.
func (h *Hub) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(liveEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		logger.L.Warn("failed to marshal live event", zap.Error(err))
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		logger.L.Warn("live event queue full, dropping event", zap.String("type", eventType))
	}
}

// HandleWebSocket upgrades the connection and attaches it to the hub.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &liveClient{conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages; the feed is one-way. It exists to
// detect disconnects.
func (c *liveClient) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
