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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brandsite/internal/ch"
	"brandsite/internal/config"
	ikafka "brandsite/internal/kafka"
	"brandsite/internal/logging"
	"brandsite/internal/sink"
)

var (
	msgsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_msgs_consumed_total",
		Help: "Total telemetry messages consumed",
	})
	decodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loader_decode_errors_total",
		Help: "Telemetry messages that could not be decoded",
	})
	consumerLag = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loader_consumer_lag",
		Help: "Current consumer lag reported by kafka-go",
	})
)

func main() {
	logger := logging.New("loader", "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger = logging.New("loader", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ch.New(ctx, cfg.ClickHouseDSN)
	if err != nil {
		logger.Error("clickhouse", "error", err)
		os.Exit(1)
	}
	defer client.Close()
	if err := client.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	reader := ikafka.NewReader(cfg.KafkaBrokers, cfg.KafkaTopicTelemetry, "loader-group")
	defer reader.Close()

	batched := sink.NewBatched(client, cfg.BatchSize, cfg.BatchInterval, logger)

	go serveMetrics(cfg.LoaderMetricsAddr, logger)
	go handleSignals(cancel)

	logger.Info("loader consuming", "topic", cfg.KafkaTopicTelemetry)
	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("read telemetry message", "error", err)
			time.Sleep(time.Second)
			continue
		}
		msgsConsumed.Inc()
		consumerLag.Set(float64(reader.Stats().Lag))

		env, err := ikafka.Decode(m)
		if err != nil {
			decodeErrors.Inc()
			logger.Warn("skip telemetry message", "offset", m.Offset, "error", err)
			continue
		}
		if err := batched.Send(ctx, env); err != nil {
			logger.Error("batch insert failed", "error", err)
		}
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := batched.Close(flushCtx); err != nil {
		logger.Error("final flush", "error", err)
	}
	logger.Info("loader shutdown complete")
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("loader metrics server failed", "error", err)
		os.Exit(1)
	}
}

func handleSignals(cancel context.CancelFunc) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch
	cancel()
}
