package api

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	// Snapshots queued per client before it is considered too slow
	clientBuffer = 16
)

type client struct {
	conn *websocket.Conn
	send chan *metrics.Snapshot
}

// Hub pushes every recorded snapshot to the connected websocket clients.
// It is a metrics.Collector. Record only queues; each client has its own
// writer goroutine, and a client whose queue is full is disconnected.
type Hub struct {
	upgrader websocket.Upgrader
	log      logger.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub accepts same-origin websocket connections, plus any origin listed
// in allowedOrigins.
func NewHub(log logger.Logger, allowedOrigins ...string) *Hub {
	h := &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(allowedOrigins, origin) || sameHost(r)
		}
	}
	return h
}

func sameHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (h *Hub) handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	cl := &client{
		conn: conn,
		send: make(chan *metrics.Snapshot, clientBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Debug().Int("clients", count).Msg("WebSocket client connected")

	go h.writePump(cl)

	// Drain until the peer goes away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(cl)
}

// writePump owns all writes to the connection
func (h *Hub) writePump(cl *client) {
	defer cl.conn.Close()

	for snapshot := range cl.send {
		_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(snapshot); err != nil {
			h.log.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.drop(cl)
			return
		}
	}

	_ = cl.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
		time.Now().Add(time.Second))
}

// drop unregisters cl and ends its writer. Safe to call more than once.
func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropLocked(cl)
}

func (h *Hub) dropLocked(cl *client) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)

	h.log.Debug().Int("clients", len(h.clients)).Msg("WebSocket client disconnected")
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Record(_ context.Context, snapshot *metrics.Snapshot) error {
	if snapshot == nil {
		return errors.New().New(metrics.ErrInvalidMetrics)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.clients {
		select {
		case cl.send <- snapshot:
		default:
			h.log.Warn().Msg("WebSocket client too slow, disconnecting")
			h.dropLocked(cl)
		}
	}

	return nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for cl := range h.clients {
		h.dropLocked(cl)
	}

	return nil
}
