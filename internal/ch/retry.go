package ch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"brandsite/internal/model"
)

var (
	batchSizeHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_batch_size",
		Help:    "Histogram of ClickHouse batch sizes",
		Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
	})
	insertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "telemetry_insert_duration_seconds",
		Help:    "Duration of ClickHouse insert operations",
		Buckets: prometheus.DefBuckets,
	})
	insertErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telemetry_insert_errors_total",
		Help: "Total ClickHouse insert failures",
	})
)

// Inserter writes a batch of envelopes.
type Inserter interface {
	InsertBatch(ctx context.Context, envelopes []model.Envelope) error
}

const maxAttempts = 5

var (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	attemptTimeout = 30 * time.Second
)

// InsertWithRetry writes each table's rows as its own unit and retries a
// failed unit with exponential backoff until it succeeds, attempts run out,
// or ctx is done. Units that committed are never resent, so a failure on one
// table cannot duplicate rows in another.
func InsertWithRetry(ctx context.Context, ins Inserter, envelopes []model.Envelope) error {
	var errs []error
	for _, group := range splitByTable(envelopes) {
		if err := insertGroup(ctx, ins, group); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tableOf(group[0]), err))
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}

func insertGroup(ctx context.Context, ins Inserter, envelopes []model.Envelope) error {
	backoff := initialBackoff
	start := time.Now()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		insertCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		err := ins.InsertBatch(insertCtx, envelopes)
		cancel()
		if err == nil {
			insertDuration.Observe(time.Since(start).Seconds())
			batchSizeHistogram.Observe(float64(len(envelopes)))
			return nil
		}
		insertErrors.Inc()
		if attempt == maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return nil
}
