package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"brandsite/internal/model"
)

type stubSource struct {
	mu     sync.Mutex
	since  []*time.Time
	views  []model.PageView
	clicks []model.ButtonClick
	err    error
	block  bool
}

func (s *stubSource) record(since *time.Time) {
	s.mu.Lock()
	s.since = append(s.since, since)
	s.mu.Unlock()
}

func (s *stubSource) PageViews(ctx context.Context, since *time.Time) ([]model.PageView, error) {
	s.record(since)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.views, nil
}

func (s *stubSource) ButtonClicks(_ context.Context, since *time.Time) ([]model.ButtonClick, error) {
	s.record(since)
	return s.clicks, s.err
}

func (s *stubSource) FunnelEvents(_ context.Context, since *time.Time) ([]model.FunnelEvent, error) {
	s.record(since)
	return nil, nil
}

func TestWindowSince(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	now := time.Date(2025, 1, 10, 3, 30, 0, 0, time.UTC) // 22:30 on Jan 9 in New York

	today := Today.Since(now, loc)
	require.NotNil(t, today)
	require.True(t, today.Equal(time.Date(2025, 1, 9, 5, 0, 0, 0, time.UTC)))

	require.True(t, Week.Since(now, loc).Equal(now.Add(-7*24*time.Hour)))
	require.True(t, Month.Since(now, loc).Equal(now.Add(-30*24*time.Hour)))
	require.Nil(t, All.Since(now, loc))
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("Month")
	require.NoError(t, err)
	require.Equal(t, Month, w)

	w, err = ParseWindow("")
	require.NoError(t, err)
	require.Equal(t, Week, w)

	_, err = ParseWindow("year")
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestServiceLoadAppliesWindow(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	src := &stubSource{views: []model.PageView{{SessionID: "a", PagePath: "/"}}}
	svc := NewService(src, clockwork.NewFakeClockAt(now), time.UTC, time.Second)

	snap, err := svc.Load(context.Background(), Week)
	require.NoError(t, err)
	require.Equal(t, Week, snap.Window)
	require.Equal(t, 1, snap.TotalPageViews)
	require.True(t, snap.Since.Equal(now.Add(-7*24*time.Hour)))
	require.Len(t, src.since, 3)
	for _, s := range src.since {
		require.True(t, s.Equal(*snap.Since))
	}

	snap, err = svc.Load(context.Background(), All)
	require.NoError(t, err)
	require.Nil(t, snap.Since)
}

func TestServiceLoadPropagatesErrors(t *testing.T) {
	src := &stubSource{err: errors.New("clickhouse down")}
	svc := NewService(src, nil, time.UTC, time.Second)

	_, err := svc.Load(context.Background(), All)
	require.ErrorContains(t, err, "load button clicks")
}

func TestServiceLoadTimesOut(t *testing.T) {
	src := &stubSource{block: true}
	svc := NewService(src, nil, time.UTC, 20*time.Millisecond)

	start := time.Now()
	_, err := svc.Load(context.Background(), All)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), time.Second)
}
