package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"brandsite/internal/model"
)

// Recorder persists telemetry rows. UpdatePageView replaces the row with the
// same id when the revision is newer.
type Recorder interface {
	InsertPageView(ctx context.Context, pv model.PageView) error
	UpdatePageView(ctx context.Context, pv model.PageView) error
	InsertButtonClick(ctx context.Context, click model.ButtonClick) error
	InsertFunnelEvent(ctx context.Context, evt model.FunnelEvent) error
}

// Metrics are the tracker's Prometheus collectors.
type Metrics struct {
	Writes      *prometheus.CounterVec
	RateLimited *prometheus.CounterVec
	Sessions    prometheus.Gauge
}

// NewMetrics registers the tracker collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_writes_total",
			Help: "Telemetry writes by operation and outcome",
		}, []string{"op", "status"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_rate_limited_total",
			Help: "Telemetry calls dropped by the rate limiter",
		}, []string{"kind"}),
		Sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_sessions",
			Help: "Browser sessions with live tracker state",
		}),
	}
}

// Dispatcher runs telemetry writes in the background. A failed write is
// logged and counted; it is never retried and never reported to the caller.
type Dispatcher struct {
	recorder Recorder
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	wg       sync.WaitGroup
}

// NewDispatcher creates a dispatcher bounding every write by timeout.
func NewDispatcher(recorder Recorder, timeout time.Duration, logger *slog.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{recorder: recorder, timeout: timeout, logger: logger, metrics: metrics}
}

// Wait blocks until every dispatched write has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) insertPageView(pv model.PageView) {
	d.run(model.KindPageViewInsert, func(ctx context.Context) error {
		return d.recorder.InsertPageView(ctx, pv)
	})
}

func (d *Dispatcher) updatePageView(pv model.PageView) {
	d.run(model.KindPageViewUpdate, func(ctx context.Context) error {
		return d.recorder.UpdatePageView(ctx, pv)
	})
}

func (d *Dispatcher) insertButtonClick(click model.ButtonClick) {
	d.run(model.KindButtonClick, func(ctx context.Context) error {
		return d.recorder.InsertButtonClick(ctx, click)
	})
}

func (d *Dispatcher) insertFunnelEvent(evt model.FunnelEvent) {
	d.run(model.KindFunnelEvent, func(ctx context.Context) error {
		return d.recorder.InsertFunnelEvent(ctx, evt)
	})
}

func (d *Dispatcher) run(op string, write func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := write(ctx); err != nil {
			d.metrics.Writes.WithLabelValues(op, "error").Inc()
			d.logger.Warn("telemetry write failed", "op", op, "error", err)
			return
		}
		d.metrics.Writes.WithLabelValues(op, "ok").Inc()
	}()
}
