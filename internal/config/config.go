package config

import (
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Config holds the environment settings for both daemons. Each binary
// uses its own loader so defaults (listen address in particular) differ.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// cabinetd
	CabinetID  string
	RowLen     int
	ColLen     int
	ModbusAddr string

	// orchestratord
	RegistryFile string
	SiteCode     string
	MQTTBroker   string
	CabinetUser  string
	CabinetPass  string
}

// LoadCabinet reads the environment for the cabinet endpoint daemon.
func LoadCabinet() *Config {
	return &Config{
		Addr:         getenv("ADDR", "0.0.0.0:5001"),
		ReadTimeout:  durEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout: durEnv("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:  durEnv("IDLE_TIMEOUT", 120*time.Second),

		CabinetID:  getenv("CABINET_ID", "cab-01"),
		RowLen:     intEnv("ROW_LEN", 8),
		ColLen:     intEnv("COL_LEN", 8),
		ModbusAddr: os.Getenv("MODBUS_ADDR"),
	}
}

// LoadOrchestrator reads the environment for the orchestrator daemon.
func LoadOrchestrator() *Config {
	return &Config{
		Addr:         getenv("ADDR", "0.0.0.0:5000"),
		ReadTimeout:  durEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout: durEnv("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:  durEnv("IDLE_TIMEOUT", 120*time.Second),

		RegistryFile: getenv("REGISTRY_FILE", "cabinets.json"),
		SiteCode:     os.Getenv("SITE_CODE"),
		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		CabinetUser:  os.Getenv("CABINET_USER"),
		CabinetPass:  os.Getenv("CABINET_PASS"),
	}
}

// NewHTTPServer returns an http.Server with sane timeouts for either daemon.
func NewHTTPServer(cfg *Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// ---------- Middlewares ----------

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set("request_id", reqID)
		c.Writer.Header().Set("X-Request-Id", reqID)
		c.Next()
	}
}

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		d := time.Since(start)
		reqID, _ := c.Get("request_id")
		log.Printf("%s %s %d %s rid=%v", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), d, reqID)
	}
}

// ---------- Transport ----------

// NewHTTPTransport is the shared outbound transport for orchestrator ->
// cabinet calls.
func NewHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		MaxIdleConns:        512,
		MaxIdleConnsPerHost: 256,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// ---------- helpers ----------

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
