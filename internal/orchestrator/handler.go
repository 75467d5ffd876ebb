package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ledworks/cabinetctl/internal/config"
	"github.com/ledworks/cabinetctl/internal/registry"
)

// Handler serves the orchestrator HTTP surface: cabinet registration and
// trace forwarding.
type Handler struct {
	cfg    *config.Config
	reg    *registry.Registry
	client *Client
}

func NewHandler(cfg *config.Config, reg *registry.Registry, client *Client) *Handler {
	return &Handler{cfg: cfg, reg: reg, client: client}
}

// Mount registers the orchestrator routes on r.
func (h *Handler) Mount(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.POST("/cabinets", h.Register)
		api.GET("/cabinets", h.List)
		api.DELETE("/cabinets/:id", h.Deregister)
		api.POST("/trace", h.ForwardTrace)
	}
}

type registerRequest struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type traceRequest struct {
	Cabinet string          `json:"cabinet"`
	Command json.RawMessage `json:"command"`
}

// Register adds a cabinet after probing its state endpoint
//
// @Summary      Register a cabinet
// @Description  Probes the endpoint's state to confirm reachability and cache its dimensions
// @Tags         cabinets
// @Accept       json
// @Produce      json
// @Param        body body object true "cabinet id and base URL"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Failure      502 {object} map[string]string
// @Router       /cabinets [post]
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.URL = strings.TrimRight(strings.TrimSpace(req.URL), "/")
	if req.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	if _, ok := h.reg.Lookup(req.ID); ok {
		c.JSON(http.StatusConflict, gin.H{"error": registry.ErrDuplicate.Error()})
		return
	}

	snap, err := h.client.FetchState(c.Request.Context(), req.URL)
	if err != nil {
		log.Printf("[registry] probe of %s (%s) failed: %v", req.ID, req.URL, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	entry := registry.Entry{
		ID:     req.ID,
		URL:    req.URL,
		RowLen: snap.RowLen,
		ColLen: snap.ColLen,
	}
	if err := h.reg.Add(entry); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[registry] persist failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist registry"})
		return
	}
	log.Printf("[registry] registered %s -> %s (%dx%d)", entry.ID, entry.URL, entry.RowLen, entry.ColLen)
	c.JSON(http.StatusOK, gin.H{"ok": true, "cabinet": entry})
}

// List returns the registered cabinets in registration order
//
// @Summary      List cabinets
// @Tags         cabinets
// @Produce      json
// @Success      200 {object} map[string]interface{}
// @Router       /cabinets [get]
func (h *Handler) List(c *gin.Context) {
	items := h.reg.List()
	if items == nil {
		items = []registry.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Deregister removes a cabinet
//
// @Summary      Deregister a cabinet
// @Tags         cabinets
// @Produce      json
// @Param        id path string true "cabinet id"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} map[string]string
// @Router       /cabinets/{id} [delete]
func (h *Handler) Deregister(c *gin.Context) {
	id := c.Param("id")
	if err := h.reg.Remove(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Printf("[registry] persist failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist registry"})
		return
	}
	log.Printf("[registry] deregistered %s", id)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ForwardTrace relays a trace command to the named cabinet
//
// @Summary      Forward a trace command
// @Description  Looks up the cabinet and forwards the command body unchanged; the endpoint validates it
// @Tags         trace
// @Accept       json
// @Produce      json
// @Param        body body object true "cabinet id and trace command"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Failure      502 {object} map[string]string
// @Router       /trace [post]
func (h *Handler) ForwardTrace(c *gin.Context) {
	var req traceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Cabinet) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cabinet is required"})
		return
	}
	if len(req.Command) == 0 || string(req.Command) == "null" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
		return
	}

	if err := h.Forward(c.Request.Context(), req.Cabinet, req.Command); err != nil {
		status, msg := classifyForwardError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Forward looks up cabinetID and sends the raw command to its endpoint.
// Shared by the HTTP handler and the MQTT listener.
func (h *Handler) Forward(ctx context.Context, cabinetID string, command []byte) error {
	entry, ok := h.reg.Lookup(cabinetID)
	if !ok {
		return registry.ErrNotFound
	}
	return h.client.SendTrace(ctx, entry.URL, command)
}

func classifyForwardError(err error) (int, string) {
	if errors.Is(err, registry.ErrNotFound) {
		return http.StatusNotFound, err.Error()
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return http.StatusBadGateway, re.Error()
	}
	return http.StatusBadGateway, err.Error()
}
