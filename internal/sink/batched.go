package sink

import (
	"context"
	"log/slog"
	"time"

	"brandsite/internal/ch"
	"brandsite/internal/model"
	"brandsite/pkg/batcher"
)

// Batched buffers envelopes and writes them to ClickHouse in batches.
type Batched struct {
	batch *batcher.Batcher[model.Envelope]
}

// NewBatched flushes to ins every size envelopes or every interval.
func NewBatched(ins ch.Inserter, size int, interval time.Duration, logger *slog.Logger) *Batched {
	flush := func(ctx context.Context, envs []model.Envelope) error {
		return ch.InsertWithRetry(ctx, ins, envs)
	}
	onError := func(err error, n int) {
		logger.Error("telemetry batch dropped", "size", n, "error", err)
	}
	return &Batched{batch: batcher.New[model.Envelope](size, interval, flush, onError)}
}

// Send queues env. It returns an error only when a size-triggered flush fails
// or the sink is closed.
func (b *Batched) Send(ctx context.Context, env model.Envelope) error {
	return b.batch.Add(ctx, env)
}

// Pending reports how many envelopes are buffered.
func (b *Batched) Pending() int {
	return b.batch.Len()
}

// Close flushes what is left and stops the ticker.
func (b *Batched) Close(ctx context.Context) error {
	return b.batch.Close(ctx)
}
