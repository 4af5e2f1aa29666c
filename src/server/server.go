package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pricelink/src/broadcast"
	"pricelink/src/helpers"
	"pricelink/src/interfaces"
	"pricelink/src/logger"
	"pricelink/src/models"
	"pricelink/src/prices"
	"pricelink/src/ratelimit"
	"pricelink/src/validation"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	engine *gin.Engine

	Limiter     *ratelimit.Limiter
	Resolver    interfaces.IPlanResolver
	Prices      *prices.Service
	Broadcaster *broadcast.Broadcaster
	DB          interfaces.IDatabase

	httpSrv   *http.Server
	startedAt time.Time
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(
	cfg *models.MConfig,
	limiter *ratelimit.Limiter,
	resolver interfaces.IPlanResolver,
	priceSvc *prices.Service,
	broadcaster *broadcast.Broadcaster,
	db interfaces.IDatabase,
	log *logger.Logger,
) *APIServer {
	// Set Gin mode
	if strings.ToUpper(cfg.LogLevel) != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:      cfg,
		Logger:      log,
		engine:      gin.Default(),
		Limiter:     limiter,
		Resolver:    resolver,
		Prices:      priceSvc,
		Broadcaster: broadcaster,
		DB:          db,
		startedAt:   time.Now(),
	}

	s.engine.Use(corsMiddleware())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	// Public endpoints
	s.engine.GET("/v1/ping", s.getPing)
	s.engine.GET("/v1/symbols", s.getSymbols)
	s.engine.GET("/v1/fiats", s.getFiats)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Key-scoped endpoints
	authed := s.engine.Group("/", s.apiKeyAuth())
	authed.GET("/v1/prices", s.getPrices)
	authed.GET("/v1/stream/prices", s.streamPrices)
	authed.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}
	return s.httpSrv.ListenAndServe()
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getPrices(c *gin.Context) {
	plan := planFromContext(c)

	symbolsCsv := c.DefaultQuery("symbols", strings.Join(s.Config.Stream.DefaultSymbols, ","))
	fiat := c.DefaultQuery("fiat", s.Config.Stream.DefaultFiat)

	list := validation.NormalizeSymbolsCSV(symbolsCsv)
	if len(list) > plan.MaxSymbols {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": fmt.Sprintf("too many symbols, max %d for plan %s", plan.MaxSymbols, plan.Name),
		})
		return
	}

	r, err := s.Prices.GetPrices(c.Request.Context(), list, fiat)
	if err != nil {
		status := http.StatusInternalServerError
		if helpers.IsUpstream(err) {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"ok":    false,
			"error": "upstream price source unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"fiat":   r.Fiat,
		"ts":     r.Ts,
		"source": r.Source,
		"prices": r.Prices,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"ts": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getSymbols(c *gin.Context) {
	symbols, err := s.DB.ListSymbols()
	if err != nil {
		s.Logger.Error("Failed to list symbols: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "symbols": symbols})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getFiats(c *gin.Context) {
	fiats, err := s.DB.ListFiats()
	if err != nil {
		s.Logger.Error("Failed to list fiats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "storage error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "fiats": fiats})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.Broadcaster.ActiveConnections(),
		"uptime_sec":  int64(time.Since(s.startedAt).Seconds()),
	})
}
