package ch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"brandsite/internal/model"
)

type flakyInserter struct {
	failures int
	calls    int
}

func (f *flakyInserter) InsertBatch(context.Context, []model.Envelope) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection reset")
	}
	return nil
}

// tableInserter commits each table on its own, like Client.InsertBatch, and
// fails funnel_events a set number of times.
type tableInserter struct {
	funnelFailures int
	committed      map[string]int
	calls          int
}

func (f *tableInserter) InsertBatch(_ context.Context, envs []model.Envelope) error {
	f.calls++
	if f.committed == nil {
		f.committed = make(map[string]int)
	}
	for _, group := range splitByTable(envs) {
		table := tableOf(group[0])
		if table == tableFunnelEvents && f.funnelFailures > 0 {
			f.funnelFailures--
			return errors.New("funnel_events: too many parts")
		}
		f.committed[table] += len(group)
	}
	return nil
}

func shortBackoff(t *testing.T) {
	t.Helper()
	prev := initialBackoff
	initialBackoff = time.Millisecond
	t.Cleanup(func() { initialBackoff = prev })
}

func click() model.Envelope {
	return model.Envelope{Kind: model.KindButtonClick, ButtonClick: &model.ButtonClick{SessionID: "s", ButtonName: "Buy", ButtonType: model.ButtonPurchase}}
}

func funnel() model.Envelope {
	return model.Envelope{Kind: model.KindFunnelEvent, FunnelEvent: &model.FunnelEvent{SessionID: "s", EventName: "offer_viewed"}}
}

func pageView() model.Envelope {
	return model.Envelope{Kind: model.KindPageViewInsert, PageView: &model.PageView{ID: "pv", SessionID: "s", Revision: 1}}
}

func TestInsertWithRetryRecovers(t *testing.T) {
	shortBackoff(t)
	ins := &flakyInserter{failures: 2}
	require.NoError(t, InsertWithRetry(context.Background(), ins, []model.Envelope{click()}))
	require.Equal(t, 3, ins.calls)
}

func TestInsertWithRetryGivesUp(t *testing.T) {
	shortBackoff(t)
	ins := &flakyInserter{failures: 10}
	err := InsertWithRetry(context.Background(), ins, []model.Envelope{click()})
	require.ErrorContains(t, err, "button_clicks")
	require.Equal(t, maxAttempts, ins.calls)
}

func TestInsertWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ins := &flakyInserter{failures: 10}
	require.ErrorIs(t, InsertWithRetry(ctx, ins, []model.Envelope{click(), funnel()}), context.Canceled)
	require.Equal(t, 1, ins.calls)
}

func TestInsertWithRetryDoesNotResendCommittedTables(t *testing.T) {
	shortBackoff(t)
	ins := &tableInserter{funnelFailures: 1}
	batch := []model.Envelope{pageView(), click(), funnel(), funnel()}

	require.NoError(t, InsertWithRetry(context.Background(), ins, batch))
	require.Equal(t, map[string]int{
		tablePageViews:    1,
		tableButtonClicks: 1,
		tableFunnelEvents: 2,
	}, ins.committed)
	require.Equal(t, 4, ins.calls)
}

func TestSplitByTableKeepsOrder(t *testing.T) {
	update := pageView()
	update.Kind = model.KindPageViewUpdate
	update.PageView = &model.PageView{ID: "pv", SessionID: "s", Revision: 2}

	groups := splitByTable([]model.Envelope{click(), pageView(), {Kind: "unknown"}, update, funnel()})
	require.Len(t, groups, 3)
	require.Equal(t, tableButtonClicks, tableOf(groups[0][0]))
	require.Len(t, groups[1], 2)
	require.Equal(t, uint32(1), groups[1][0].PageView.Revision)
	require.Equal(t, uint32(2), groups[1][1].PageView.Revision)
	require.Equal(t, tableFunnelEvents, tableOf(groups[2][0]))
}

func TestSinceClause(t *testing.T) {
	where, args := sinceClause(nil)
	require.Empty(t, where)
	require.Nil(t, args)

	loc := time.FixedZone("EST", -5*3600)
	since := time.Date(2025, 1, 9, 0, 0, 0, 0, loc)
	where, args = sinceClause(&since)
	require.Equal(t, " WHERE created_at >= ?", where)
	require.Equal(t, []any{since.UTC()}, args)
}

func TestRowsMatchColumnOrder(t *testing.T) {
	src := "ads"
	pv := model.PageView{
		ID: "pv-1", SessionID: "s", PagePath: "/", ScrollDepth: 140, TimeOnPage: 12,
		PagesInSession: 2, UTM: model.UTM{Source: &src}, Revision: 3,
	}
	row := pageViewRow(pv)
	require.Len(t, row, 18)
	require.Equal(t, &src, row[6])
	require.Equal(t, uint8(100), row[11])
	require.Equal(t, uint32(12), row[12])
	require.Equal(t, uint32(2), row[14])
	require.Equal(t, uint32(3), row[17])

	evt := funnelEventRow(model.FunnelEvent{EventName: "offer_viewed"})
	require.Equal(t, "{}", evt[3])
	evt = funnelEventRow(model.FunnelEvent{EventName: "offer_viewed", EventData: json.RawMessage(`{"a":1}`)})
	require.Equal(t, `{"a":1}`, evt[3])

	click := buttonClickRow(model.ButtonClick{ButtonType: model.ButtonPurchase})
	require.Equal(t, "purchase", click[3])
}
