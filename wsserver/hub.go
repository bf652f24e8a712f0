// Package wsserver broadcasts fused navigation state to any number of
// live websocket subscribers - a dashboard, a map overlay - alongside the
// append-only file sinks package report writes. The Server/Hub split
// mirrors the teacher's own web.Server/web.Hub usage; the Hub
// implementation itself was authored fresh, since no hub.go/serveWs source
// exists anywhere in the retrieval corpus for the Server that references
// it, only the calling convention (NewHub, Hub.Run, Hub.Broadcast,
// serveWs(hub, w, r)).
package wsserver

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected clients and fans broadcast messages out to all of
// them. Run must be started in its own goroutine before any client
// connects.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, sendBuffer),
	}
}

// Run drives the hub's registration/broadcast loop. It never returns.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends payload to every connected client. Slow clients that
// can't keep up are dropped rather than allowed to block the broadcast.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("wsserver: broadcast channel full, dropping frame")
	}
}

func serveWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("wsserver: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	hub.register <- c

	go c.writePump()
	go c.readPump(hub)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump only exists to notice disconnects and drain unsolicited client
// messages; the protocol here is broadcast-only.
func (c *client) readPump(hub *Hub) {
	defer func() {
		hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
