package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"auction_go/internal/domain"
	"auction_go/internal/infra"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = 54 * time.Second
	sendBuffer  = 64
	hubBacklog  = 256
	maxReadSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub pushes every live view to the connected dashboards.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	metrics    *infra.Metrics
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub(metrics *infra.Metrics) *Hub {
	if metrics == nil {
		metrics = &infra.Metrics{}
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, hubBacklog),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.IncrementClients()
			slog.Info("WebSocket client connected", slog.String("client_id", c.id), slog.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				h.drop(c)
				slog.Info("WebSocket client disconnected", slog.String("client_id", c.id), slog.Int("total", len(h.clients)))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer
					slog.Warn("WebSocket client too slow, disconnecting", slog.String("client_id", c.id))
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with the lock held.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.metrics.DecrementClients()
}

// Broadcast queues view for every client. It never blocks; on a full backlog the view
// is skipped since the next one supersedes it.
func (h *Hub) Broadcast(view domain.Auction) {
	msg, err := json.Marshal(view)
	if err != nil {
		slog.Error("WebSocket marshal failed", slog.Any("error", err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		slog.Warn("WebSocket broadcast backlog full, update skipped", slog.Int64("auction_id", view.AuctionID))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one dashboard connection. Dashboards only listen; inbound frames are discarded.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxReadSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("WebSocket read error", slog.String("client_id", c.id), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and sends the current view before any update.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		id:   uuid.NewString(),
	}

	if initial, err := json.Marshal(s.live.Read()); err == nil {
		c.send <- initial
	}

	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
