package main

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/ledworks/cabinetctl/internal/cabinet"
	"github.com/ledworks/cabinetctl/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // status page is same-host; no cross-origin concern for a mock
	},
}

// serveStateWS streams state snapshots to a status-page viewer. The current
// snapshot is sent on connect so the page renders without waiting for the
// next command.
func serveStateWS(hub *ws.Hub, state *cabinet.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		if buf, err := json.Marshal(state.Snapshot()); err == nil {
			conn.WriteMessage(websocket.TextMessage, buf)
		}
		hub.Register(conn)
		defer hub.Unregister(conn)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
