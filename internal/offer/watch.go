package offer

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Watch emits the card for o immediately and then on every interval until
// ctx is done. The ticker is stopped on return.
func Watch(ctx context.Context, clock clockwork.Clock, o Offer, interval time.Duration, emit func(Card, error)) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	emit(BuildCard(o, clock.Now()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			emit(BuildCard(o, clock.Now()))
		}
	}
}
