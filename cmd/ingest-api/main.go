package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"brandsite/internal/ch"
	"brandsite/internal/config"
	"brandsite/internal/handlers"
	"brandsite/internal/httpx"
	ikafka "brandsite/internal/kafka"
	"brandsite/internal/logging"
	"brandsite/internal/offer"
	"brandsite/internal/pg"
	"brandsite/internal/ratelimit"
	"brandsite/internal/sink"
	"brandsite/internal/tracker"
)

const sweepInterval = time.Minute

func main() {
	logger := logging.New("ingest-api", "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New("ingest-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := clockwork.NewRealClock()

	limiter, closeLimiter, err := newLimiter(ctx, cfg, clock, logger)
	if err != nil {
		logger.Error("rate limiter", "error", err)
		os.Exit(1)
	}
	defer closeLimiter()

	sender, closeSender, err := newSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("telemetry sink", "sink", cfg.TelemetrySink, "error", err)
		os.Exit(1)
	}

	db, err := pg.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("ensure postgres schema", "error", err)
		os.Exit(1)
	}

	metrics := tracker.NewMetrics(prometheus.DefaultRegisterer)
	dispatcher := tracker.NewDispatcher(sink.NewRecorder(sender, clock), cfg.Tracking.WriteTimeout, logger, metrics)
	registry := tracker.NewRegistry(tracker.Deps{
		Clock:      clock,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		Settings:   cfg.Tracking,
		Logger:     logger,
		Metrics:    metrics,
	}, cfg.Tracking.SessionIdleTimeout)
	go registry.Run(ctx, sweepInterval)

	sessions := handlers.NewSessions(registry, cfg.CookieSecret, cfg.CookieSecure, cfg.BotUserAgents)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpx.NewHTTPMetrics("ingest_api").Handler())
	router.Use(httpx.CORSMiddleware(cfg.CORSAllowOrigins))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.NewTrack(sessions).Register(router)
	handlers.NewOffers(handlers.OffersConfig{
		Offers:    db,
		Leads:     db,
		Validator: offer.NewLeadValidator(cfg.PhoneRegion),
		Sessions:  sessions,
		Clock:     clock,
		Tick:      cfg.Tracking.OfferTickInterval,
		Timeout:   cfg.Tracking.QueryTimeout,
		Logger:    logger,
	}).Register(router)

	server := &http.Server{
		Addr:    cfg.IngestAddr,
		Handler: router,
	}

	go func() {
		logger.Info("starting ingest API", "addr", cfg.IngestAddr, "sink", cfg.TelemetrySink)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ingest server failed", "error", err)
			os.Exit(1)
		}
	}()

	graceful(server, logger)
	cancel()
	registry.Close()
	dispatcher.Wait()
	if err := closeSender(); err != nil {
		logger.Error("flush telemetry", "error", err)
	}
	logger.Info("ingest API stopped")
}

func newLimiter(ctx context.Context, cfg config.Config, clock clockwork.Clock, logger *slog.Logger) (ratelimit.Limiter, func(), error) {
	if cfg.RateLimitBackend != config.LimiterRedis {
		return ratelimit.NewMemory(clock), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup, limiter will fail open", "error", err)
	}
	return ratelimit.NewRedis(client, clock, logger), func() { _ = client.Close() }, nil
}

// newSender returns the telemetry sink and a function that flushes and
// releases it.
func newSender(ctx context.Context, cfg config.Config, logger *slog.Logger) (sink.Sender, func() error, error) {
	if cfg.TelemetrySink == config.SinkKafka {
		pub := ikafka.NewPublisher(ikafka.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicTelemetry))
		return pub, pub.Close, nil
	}
	client, err := ch.New(ctx, cfg.ClickHouseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := client.EnsureSchema(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	batched := sink.NewBatched(client, cfg.BatchSize, cfg.BatchInterval, logger)
	closeFn := func() error {
		flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := batched.Close(flushCtx)
		return errors.Join(err, client.Close())
	}
	return batched, closeFn, nil
}

func graceful(server *http.Server, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down ingest API")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
