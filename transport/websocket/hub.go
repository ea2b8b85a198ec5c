package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modremote/spawn-relay/relay/registry"
	"github.com/modremote/spawn-relay/relay/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Per-connection outbound buffer. A peer that falls this far behind
	// is treated as dead.
	sendBufferSize = 256
)

var (
	// ErrConnClosed reports a send on a connection whose write path is
	// already torn down.
	ErrConnClosed = errors.New("websocket connection closed")

	// ErrSendBufferFull reports a peer too slow to drain its buffer.
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Access is gated by token possession, not origin
		return true
	},
}

// CatalogReader provides the document pushed to a client on connect.
type CatalogReader interface {
	Read(ctx context.Context) (json.RawMessage, error)
}

// Client is one registered duplex connection. It implements
// registry.Conn with a buffered send channel drained by a single writer
// goroutine, so concurrent relay and broadcast writes to the same peer
// are never interleaved.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	done  chan struct{}
	token string

	closeOnce sync.Once
}

// Hub accepts duplex connections, binds them to session tokens in the
// connection registry, and performs the initial catalog push.
type Hub struct {
	registry *registry.Registry
	catalog  CatalogReader

	mu     sync.Mutex
	closed bool
}

// NewHub creates a hub over the given registry and catalog source.
func NewHub(reg *registry.Registry, catalog CatalogReader) *Hub {
	return &Hub{
		registry: reg,
		catalog:  catalog,
	}
}

// ServeWS upgrades an accepted handshake and registers the connection
// under token. The caller has already validated the token; the hub owns
// everything after the upgrade.
//
// If another connection is registered under the same token it is
// displaced and closed: last-registered wins.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, token string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		done:  make(chan struct{}),
		token: token,
	}

	if prior := h.registry.Register(token, client); prior != nil {
		// Replacement policy: the newer connection wins and the old one
		// is closed here, not by the registry.
		prior.Close()
		log.Printf("Session %s reconnected, previous connection closed", token)
	}

	go client.writePump()
	go client.readPump()

	h.pushCatalog(r.Context(), client)
}

// Shutdown stops accepting new connections and closes every registered
// one. In-flight writes get their usual write deadline to drain.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	for token, conn := range h.registry.Snapshot() {
		h.registry.Unregister(token, conn)
		conn.Close()
	}
}

// pushCatalog sends the one-shot state push a client receives on
// connect. A catalog read failure skips the push but keeps the
// connection; the client will catch up on the next broadcast.
func (h *Hub) pushCatalog(ctx context.Context, client *Client) {
	doc, err := h.catalog.Read(ctx)
	if err != nil {
		log.Printf("Initial catalog push skipped for session %s: %v", client.token, err)
		return
	}

	data, err := json.Marshal(service.NewUpdateMessage(doc))
	if err != nil {
		log.Printf("Failed to marshal initial catalog push: %v", err)
		return
	}

	if err := client.Send(data); err != nil {
		log.Printf("Initial catalog push to session %s failed: %v", client.token, err)
	}
}

// Send queues one message for delivery to the peer. It fails when the
// connection is closed or the peer has fallen too far behind; it never
// blocks on the peer's socket.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close tears down the connection. Safe to call from any goroutine and
// more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
	return nil
}

// readPump consumes frames from the peer until close or error. Inbound
// payloads are discarded; the read loop exists to detect disconnection
// and keep the pong handler serviced.
func (c *Client) readPump() {
	defer func() {
		// Unregister with this exact instance so a stale handle can
		// never evict a newer connection under the same token.
		c.hub.registry.Unregister(c.token, c)
		c.Close()
		log.Printf("Session %s disconnected", c.token)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error on session %s: %v", c.token, err)
			}
			break
		}
	}
}

// writePump is the single writer for this connection. All relay and
// broadcast traffic funnels through the send channel, preserving
// per-connection message order.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
