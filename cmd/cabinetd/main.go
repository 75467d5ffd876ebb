package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/ledworks/cabinetctl/internal/cabinet"
	"github.com/ledworks/cabinetctl/internal/config"
	"github.com/ledworks/cabinetctl/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found")
	}

	cfg := config.LoadCabinet()
	if cfg.RowLen <= 0 || cfg.ColLen <= 0 {
		log.Fatalf("[startup] ROW_LEN/COL_LEN must be positive (got %dx%d)", cfg.RowLen, cfg.ColLen)
	}

	// WS hub for status-page viewers
	hub := ws.NewHub()
	go hub.Run()

	state := cabinet.NewState(cfg.CabinetID, cfg.RowLen, cfg.ColLen)
	handler := cabinet.NewHandler(cfg, state, hub)

	// Gin
	r := gin.New()
	gin.SetMode(gin.ReleaseMode)
	r.Use(gin.Recovery(), config.RequestIDMiddleware(), config.LoggerMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/ws", serveStateWS(hub, state))

	handler.Mount(r)

	srv := config.NewHTTPServer(cfg, r)
	log.Printf("[startup] cabinet %s (%dx%d) listening on %s", cfg.CabinetID, cfg.RowLen, cfg.ColLen, srv.Addr)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
