package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/seenimoa/stockai/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced on the HTTP routes only
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	sendBuffer = 16
)

// WebSocket message types.
const (
	MsgMarketStatus = "market_status"
	MsgPing         = "ping"
	MsgPong         = "pong"
	MsgRefresh      = "refresh"
	MsgError        = "error"
)

// WSMessage is a message sent over WebSocket connections.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ── Hub ──

// WSHub tracks market-feed clients and fans broadcasts out to them.
// A client whose buffer is full is dropped.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{}

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// WSClient represents a single WebSocket connection. The hub owns send;
// replies to the client's own requests go through reply.
type WSClient struct {
	hub   *WSHub
	send  chan WSMessage
	reply chan WSMessage
}

// NewWSHub creates a new WebSocket hub. m may be nil.
func NewWSHub(m *metrics.Metrics, log zerolog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]struct{}),
		broadcast:  make(chan WSMessage, 16),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
		metrics:    m,
		log:        log,
	}
}

// Run is the hub event loop. It returns when ctx is cancelled, closing every
// client's send channel.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.gauge()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.gauge()

		case c := <-h.unregister:
			h.drop(c)

		case msg := <-h.broadcast:
			var slow []*WSClient
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.RUnlock()
			for _, c := range slow {
				h.log.Debug().Msg("dropping slow websocket client")
				h.drop(c)
			}
		}
	}
}

// Broadcast queues msg for every client. It drops msg when the queue is
// full.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub. It reports false once the hub has
// stopped.
func (h *WSHub) Register(client *WSClient) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *WSHub) drop(c *WSClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.gauge()
}

func (h *WSHub) gauge() {
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(h.ClientCount()))
	}
}

// ── Market feed ──

// pushMarketStatus broadcasts the market status every interval while at
// least one client is connected.
func (s *Server) pushMarketStatus(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultWSInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.wsHub.ClientCount() == 0 {
				continue
			}
			if msg, ok := s.marketMessage(ctx); ok {
				s.wsHub.Broadcast(msg)
			}
		}
	}
}

// marketMessage fetches the market status through the cache.
func (s *Server) marketMessage(ctx context.Context) (WSMessage, bool) {
	status, err := s.facade.MarketStatus(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("market status for websocket failed")
		return WSMessage{}, false
	}
	return WSMessage{Type: MsgMarketStatus, Data: status}, true
}

// ── Connections ──

// handleWebSocket upgrades the connection, sends the current market status
// and then relays hub broadcasts until the peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &WSClient{
		hub:   s.wsHub,
		send:  make(chan WSMessage, sendBuffer),
		reply: make(chan WSMessage, sendBuffer),
	}
	if !s.wsHub.Register(client) {
		conn.Close()
		return
	}

	if msg, ok := s.marketMessage(r.Context()); ok {
		client.trySend(msg)
	}

	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump handles client messages until the connection fails.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			client.trySend(WSMessage{Type: MsgError, Data: "invalid message"})
			continue
		}

		switch msg.Type {
		case MsgPing:
			client.trySend(WSMessage{Type: MsgPong})
		case MsgRefresh:
			ctx, cancel := context.WithTimeout(context.Background(), dataRouteTimeout)
			if out, ok := s.marketMessage(ctx); ok {
				client.trySend(out)
			}
			cancel()
		}
	}
}

// trySend queues a reply unless the buffer is full.
func (c *WSClient) trySend(msg WSMessage) {
	select {
	case c.reply <- msg:
	default:
	}
}

// wsWritePump writes queued messages and keeps the connection alive with
// pings.
func (s *Server) wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case msg := <-client.reply:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
