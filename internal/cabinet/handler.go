package cabinet

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledworks/cabinetctl/internal/config"
	"github.com/ledworks/cabinetctl/internal/ws"
)

// Handler serves the cabinet HTTP surface: trace/legacy commands, state
// reads and the embedded status page.
type Handler struct {
	cfg   *config.Config
	state *State
	hub   *ws.Hub
	relay *Relay
}

func NewHandler(cfg *config.Config, state *State, hub *ws.Hub) *Handler {
	h := &Handler{cfg: cfg, state: state, hub: hub}
	if cfg.ModbusAddr != "" {
		h.relay = NewRelay(cfg.ModbusAddr)
	}
	return h
}

// Mount registers the cabinet routes on r.
func (h *Handler) Mount(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.POST("/trace", h.Trace)
		api.POST("/led", h.Led) // legacy clients
		api.GET("/state", h.GetState)
	}
	r.GET("/", h.StatusPage)
}

// Trace = POST /api/trace
func (h *Handler) Trace(c *gin.Context) {
	var cmd TraceCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.state.ApplyTrace(cmd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.applied(snap)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Led = POST /api/led, the pre-trace command shape.
func (h *Handler) Led(c *gin.Context) {
	var cmd LegacyCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := h.state.ApplyLegacy(cmd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.applied(snap)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GetState = GET /api/state
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Snapshot())
}

// applied pushes the new snapshot to status-page viewers and, when a real
// strip controller is configured, relays the power state to it. The mock
// state stays authoritative: relay failures are logged, not returned.
func (h *Handler) applied(snap Snapshot) {
	if h.hub != nil {
		if buf, err := json.Marshal(snap); err == nil {
			h.hub.Broadcast(buf)
		}
	}
	if h.relay != nil {
		go func() {
			if err := h.relay.SetPower(snap.On); err != nil {
				log.Printf("[relay] modbus write failed: %v", err)
			}
		}()
	}
}

// StatusPage = GET /, a small live view of the virtual strip.
func (h *Handler) StatusPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(statusPageHTML))
}

const statusPageHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Cabinet Endpoint</title>
  <style>
    body { margin:0; font-family: system-ui, Arial, sans-serif; background:#0b1220; color:#d1d5db; }
    .wrap { max-width:600px; margin:0 auto; padding:16px; }
    .card { background:#111827; border:1px solid #1f2937; border-radius:12px; padding:16px; }
    .led { width:160px; height:160px; border-radius:50%; border:6px solid #222; margin:12px auto; background:#000; }
    .info { color:#9ca3af; text-align:center; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="card">
      <h1>Cabinet Endpoint</h1>
      <div class="led" id="led"></div>
      <div class="info" id="info"></div>
    </div>
  </div>
  <script>
    function render(s) {
      var led = document.getElementById('led');
      var info = document.getElementById('info');
      led.style.background = s.on ? s.color : '#000000';
      info.textContent = s.cabinet_id + ' | on=' + s.on + ' | color=' + s.color +
        ' | row=' + (s.row == null ? '-' : s.row) + ' | col=' + (s.col == null ? '-' : s.col) +
        ' | ts=' + s.ts;
    }
    fetch('/api/state').then(function(r){ return r.json(); }).then(render);
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    var sock = new WebSocket(proto + location.host + '/ws');
    sock.onmessage = function(ev) { render(JSON.parse(ev.data)); };
  </script>
</body>
</html>
`
