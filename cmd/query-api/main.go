package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brandsite/internal/analytics"
	"brandsite/internal/ch"
	"brandsite/internal/config"
	"brandsite/internal/handlers"
	"brandsite/internal/httpx"
	"brandsite/internal/logging"
)

func main() {
	logger := logging.New("query-api", "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New("query-api", cfg.LogLevel)
	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET is required for the query API")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ch.New(ctx, cfg.ClickHouseDSN)
	if err != nil {
		logger.Error("clickhouse", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	svc := analytics.NewService(client, clockwork.NewRealClock(), cfg.Location, cfg.Tracking.QueryTimeout)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewHTTPMetrics("query_api").Handler())
	router.Use(httpx.CORSMiddleware(cfg.CORSAllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("", httpx.RequireAdmin(cfg.JWTSecret, logger))
	handlers.NewAnalytics(svc, logger).Register(admin)

	server := &http.Server{
		Addr:    cfg.QueryAddr,
		Handler: router,
	}

	go func() {
		logger.Info("starting query API", "addr", cfg.QueryAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("query api failed", "error", err)
			os.Exit(1)
		}
	}()

	waitForSignal()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
