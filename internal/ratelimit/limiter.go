package ratelimit

import (
	"context"
	"time"
)

// Rule bounds how many requests a key may make inside a sliding window.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter gates requests per key. Rejections are not errors: a caller that is
// refused simply skips the work.
type Limiter interface {
	CanRequest(ctx context.Context, key string, rule Rule) bool
	Clear(ctx context.Context, key string)
	ClearAll(ctx context.Context)
}
