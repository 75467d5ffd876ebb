package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	mqttsvc "github.com/ledworks/cabinetctl/cmd/orchestratord/mqtt"
	_ "github.com/ledworks/cabinetctl/docs"
	"github.com/ledworks/cabinetctl/internal/config"
	"github.com/ledworks/cabinetctl/internal/orchestrator"
	"github.com/ledworks/cabinetctl/internal/registry"
)

// @title        LED Cabinet Orchestrator API
// @version      1.0
// @description  Registers cabinet endpoints and forwards trace commands to them.
// @BasePath     /api
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found")
	}

	// ctx for shutting the MQTT listener down with the process
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadOrchestrator()

	reg, err := registry.New(registry.NewStore(cfg.RegistryFile))
	if err != nil {
		log.Fatalf("[startup] registry load failed: %v", err)
	}

	client := orchestrator.NewClient(cfg)
	handler := orchestrator.NewHandler(cfg, reg, client)

	// ---------- Start MQTT listener (background) ----------
	if cfg.MQTTBroker != "" {
		listener := mqttsvc.NewListener(cfg.MQTTBroker, cfg.SiteCode, handler)
		go func() {
			log.Printf("[startup] starting MQTT listener on %s", cfg.MQTTBroker)
			if err := listener.Start(ctx); err != nil {
				log.Printf("[fatal] mqtt listener error: %v", err)
			}
		}()
	}
	// -----------------------------------------------------

	// Gin
	r := gin.New()
	gin.SetMode(gin.ReleaseMode)
	r.Use(gin.Recovery(), config.RequestIDMiddleware(), config.LoggerMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	handler.Mount(r)

	srv := config.NewHTTPServer(cfg, r)
	log.Printf("[startup] orchestrator listening on %s (registry=%s)", srv.Addr, cfg.RegistryFile)

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
