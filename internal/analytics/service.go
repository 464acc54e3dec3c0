package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"brandsite/internal/model"
)

// Source reads raw telemetry rows created at or after since. A nil since
// means no lower bound.
type Source interface {
	PageViews(ctx context.Context, since *time.Time) ([]model.PageView, error)
	ButtonClicks(ctx context.Context, since *time.Time) ([]model.ButtonClick, error)
	FunnelEvents(ctx context.Context, since *time.Time) ([]model.FunnelEvent, error)
}

// Service loads snapshots from a Source.
type Service struct {
	source  Source
	clock   clockwork.Clock
	loc     *time.Location
	timeout time.Duration
}

// NewService creates a service resolving "today" in loc and bounding each
// load by timeout.
func NewService(source Source, clock clockwork.Clock, loc *time.Location, timeout time.Duration) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{source: source, clock: clock, loc: loc, timeout: timeout}
}

// Load reads the three tables concurrently and folds them. The reads are not
// a consistent snapshot of each other.
func (s *Service) Load(ctx context.Context, w Window) (Snapshot, error) {
	now := s.clock.Now()
	since := w.Since(now, s.loc)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		views  []model.PageView
		clicks []model.ButtonClick
		events []model.FunnelEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if views, err = s.source.PageViews(gctx, since); err != nil {
			return fmt.Errorf("load page views: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if clicks, err = s.source.ButtonClicks(gctx, since); err != nil {
			return fmt.Errorf("load button clicks: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if events, err = s.source.FunnelEvents(gctx, since); err != nil {
			return fmt.Errorf("load funnel events: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	snap := Aggregate(views, clicks, events)
	snap.Window = w
	snap.Since = since
	snap.GeneratedAt = now.UTC()
	return snap, nil
}
