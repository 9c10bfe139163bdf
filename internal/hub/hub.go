// Package hub tracks the application instances currently attached to the
// agent over websocket. Notifications, control replies and lifecycle claims
// all go through it.
package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Client struct {
	ID     string
	Origin string
	WS     *websocket.Conn
	// bounded outbound queue (backpressure: frames are dropped when full)
	Out chan []byte

	mu     sync.Mutex
	closed bool
}

// close shuts the outbound queue exactly once, releasing the write loop.
func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Out)
	}
	c.mu.Unlock()
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
}

func (h *Hub) Remove(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}

// Detach removes the client and closes its outbound queue, so the write
// loop exits even when no further frame would ever reach the client. Safe
// to call after Remove or a second time.
func (h *Hub) Detach(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	return c, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	return n
}

// FindByOrigin returns any attached client whose origin matches exactly.
func (h *Hub) FindByOrigin(origin string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.Origin == origin {
			return c, true
		}
	}
	return nil, false
}

// Send queues one frame for one client. false means the frame was dropped:
// either the client's outbound queue was full or the client has detached.
func (h *Hub) Send(c *Client, frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Out <- frame:
		return true
	default:
		return false
	}
}

// Broadcast queues the frame for every attached client and returns how many
// accepted it.
func (h *Hub) Broadcast(frame []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if h.Send(c, frame) {
			sent++
		}
	}
	return sent
}

// WriteLoop drains a client's outbound queue onto its websocket until the
// queue closes or a write fails.
func (h *Hub) WriteLoop(c *Client, writeTimeout time.Duration, onClose func()) {
	defer func() {
		_ = c.WS.Close()
		if onClose != nil {
			onClose()
		}
	}()
	for frame := range c.Out {
		_ = c.WS.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WS.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}
