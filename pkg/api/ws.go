package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamexport/slacksnap/pkg/export"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const writeWait = 5 * time.Second

// wsClient is one connected progress listener. The mutex serializes
// writes: gorilla/websocket allows only one concurrent writer per
// connection, and events can arrive from more than one export run.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// send writes one event, holding the client's write lock.
func (c *wsClient) send(ev export.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

// ProgressHub broadcasts export progress events to connected WebSocket
// clients. It implements export.Reporter, so it plugs directly into the
// aggregator. A client that cannot keep up is dropped.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[*wsClient]bool
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: make(map[*wsClient]bool),
	}
}

// HandleWS upgrades the request and registers the connection. The read
// loop exists only to notice the peer closing.
func (h *ProgressHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	client := &wsClient{conn: conn}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	go func() {
		defer h.drop(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Report implements export.Reporter by fanning the event out to every
// connected client.
func (h *ProgressHub) Report(ev export.Event) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.send(ev); err != nil {
			h.drop(client)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ProgressHub) drop(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		client.conn.Close()
	}
	h.mu.Unlock()
}
