// Package ws pushes cabinet state snapshots to connected status-page viewers.
package ws

import (
	"log"

	"github.com/gorilla/websocket"
)

// Hub fans state snapshots out to every connected viewer. All membership
// changes and broadcasts go through Run's select loop, so no locking.
type Hub struct {
	viewers    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
}

func NewHub() *Hub {
	return &Hub{
		viewers:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.viewers[conn] = true
			log.Printf("[WS] viewer joined (%d connected)", len(h.viewers))

		case conn := <-h.unregister:
			if _, ok := h.viewers[conn]; ok {
				delete(h.viewers, conn)
				conn.Close()
				log.Printf("[WS] viewer left (%d connected)", len(h.viewers))
			}

		case msg := <-h.broadcast:
			for conn := range h.viewers {
				conn.WriteMessage(websocket.TextMessage, msg)
			}
		}
	}
}

func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.register <- conn
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}
