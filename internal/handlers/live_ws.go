package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/debugops/debugops/internal/incidents"
)

const (
	liveSendBuffer   = 64
	liveWriteWait    = 10 * time.Second
	livePongWait     = 60 * time.Second
	livePingPeriod   = (livePongWait * 9) / 10
	liveMaxReadBytes = 4096
	liveMessageHello = "hello"
)

// LiveHello is the first message a live-feed client receives
type LiveHello struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Clients int    `json:"clients"`
}

// LiveHub fans store changes out to dashboard websocket clients.
// Each client has a bounded queue; a client that falls behind is disconnected
// instead of slowing down the publisher.
type LiveHub struct {
	upgrader websocket.Upgrader
	version  string

	mu      sync.Mutex
	clients map[*liveClient]struct{}
	closed  bool

	dropped atomic.Int64
	wg      sync.WaitGroup
}

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewLiveHub creates a new live-feed hub
func NewLiveHub(version string) *LiveHub {
	return &LiveHub{
		upgrader: websocket.Upgrader{
			// CORS and JWT middleware run before the upgrade
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		version: version,
		clients: make(map[*liveClient]struct{}),
	}
}

// SetupRoutes configures WebSocket routes
func (h *LiveHub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/live", h.HandleWebSocket)
}

// Handle queues c for every connected client. It never blocks, so it can be
// registered directly as a store subscriber.
func (h *LiveHub) Handle(c incidents.Change) {
	data, err := json.Marshal(c)
	if err != nil {
		zap.S().Warnf("Failed to encode live change for incident %s: %v", c.IncidentID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.dropped.Add(1)
			h.removeLocked(client)
			zap.S().Warnf("Dropping slow live-feed client")
		}
	}
}

// Clients returns the number of connected clients
func (h *LiveHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Dropped returns how many clients were disconnected for falling behind
func (h *LiveHub) Dropped() int64 {
	return h.dropped.Load()
}

// HandleWebSocket upgrades the request and streams changes until the client
// goes away or the hub is closed
func (h *LiveHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnf("Failed to upgrade live WebSocket: %v", err)
		return
	}

	client := &liveClient{conn: conn, send: make(chan []byte, liveSendBuffer)}
	n, ok := h.register(client)
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(liveWriteWait))
		conn.Close()
		return
	}
	zap.S().Debugf("Live client connected from %s (%d connected)", r.RemoteAddr, n)

	go func() {
		defer h.wg.Done()
		h.writePump(client)
	}()

	h.readPump(client)
	h.unregister(client)
	zap.S().Debugf("Live client %s disconnected", r.RemoteAddr)
}

// readPump discards client messages and keeps the pong deadline fresh
func (h *LiveHub) readPump(c *liveClient) {
	c.conn.SetReadLimit(liveMaxReadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				zap.S().Debugf("Live WebSocket read error: %v", err)
			}
			return
		}
	}
}

// writePump owns all writes to the connection and closes it on exit
func (h *LiveHub) writePump(c *liveClient) {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// register adds c with the hello message already queued and accounts for its
// writer. It fails once the hub is closed.
func (h *LiveHub) register(c *liveClient) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)

	hello, _ := json.Marshal(LiveHello{Type: liveMessageHello, Version: h.version, Clients: n})
	c.send <- hello
	h.wg.Add(1)
	return n, true
}

func (h *LiveHub) unregister(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// removeLocked closes the client's queue once; its writer then sends a close
// frame and shuts the connection
func (h *LiveHub) removeLocked(c *liveClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client, refuses new ones and waits for the writers
// to finish
func (h *LiveHub) Close() {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// Run blocks until ctx is done, then closes the hub
func (h *LiveHub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.Close()
	return nil
}
