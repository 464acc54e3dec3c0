package batcher

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FlushFunc writes one batch.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

// ErrorFunc is told about a background flush that failed; the batch is
// dropped.
type ErrorFunc func(err error, size int)

// Batcher collects items and flushes them based on size or time thresholds.
type Batcher[T any] struct {
	mu       sync.Mutex
	buffer   []T
	maxSize  int
	interval time.Duration
	flushFn  FlushFunc[T]
	onError  ErrorFunc
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("batcher: closed")

// New creates a new batcher instance. onError may be nil.
func New[T any](maxSize int, interval time.Duration, flushFn FlushFunc[T], onError ErrorFunc) *Batcher[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Batcher[T]{
		maxSize:  maxSize,
		interval: interval,
		flushFn:  flushFn,
		onError:  onError,
		ctx:      ctx,
		cancel:   cancel,
	}
	b.wg.Add(1)
	go b.loop()
	return b
}

// Add queues an item for batching. If the size threshold is met it flushes
// immediately on the caller's goroutine.
func (b *Batcher[T]) Add(ctx context.Context, item T) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.buffer = append(b.buffer, item)
	var batch []T
	if len(b.buffer) >= b.maxSize {
		batch = b.detach()
	}
	b.mu.Unlock()
	return b.runFlush(ctx, batch)
}

// Len reports how many items are waiting.
func (b *Batcher[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Flush forces a flush of the accumulated items.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.detach()
	b.mu.Unlock()
	return b.runFlush(ctx, batch)
}

// Close stops the background ticker and flushes remaining items.
func (b *Batcher[T]) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return b.Flush(ctx)
}

func (b *Batcher[T]) loop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			batch := b.detach()
			b.mu.Unlock()
			if err := b.runFlush(b.ctx, batch); err != nil && b.onError != nil {
				b.onError(err, len(batch))
			}
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *Batcher[T]) detach() []T {
	if len(b.buffer) == 0 {
		return nil
	}
	batch := make([]T, len(b.buffer))
	copy(batch, b.buffer)
	b.buffer = b.buffer[:0]
	return batch
}

func (b *Batcher[T]) runFlush(ctx context.Context, batch []T) error {
	if len(batch) == 0 {
		return nil
	}
	if b.flushFn == nil {
		return errors.New("batcher: no flush function configured")
	}
	return b.flushFn(ctx, batch)
}
