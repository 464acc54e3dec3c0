//go:build e2e

package ch

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"brandsite/internal/analytics"
	"brandsite/internal/model"
)

var _ analytics.Source = (*Client)(nil)

func TestRevisionsCollapseToLatest(t *testing.T) {
	dsn := os.Getenv("CLICKHOUSE_DSN")
	if dsn == "" {
		t.Skip("CLICKHOUSE_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := New(ctx, dsn)
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.EnsureSchema(ctx))

	since := time.Now().UTC().Add(-time.Second)
	sid := "e2e-" + uuid.NewString()
	pv := model.PageView{
		ID: uuid.NewString(), SessionID: sid, PagePath: "/offers", DeviceType: model.DeviceDesktop,
		PagesInSession: 1, CreatedAt: time.Now().UTC().Truncate(time.Millisecond), Revision: 1,
	}
	final := pv
	final.ScrollDepth, final.TimeOnPage, final.Revision = 80, 42, 3

	require.NoError(t, InsertWithRetry(ctx, client, []model.Envelope{
		{Kind: model.KindPageViewInsert, PageView: &pv},
		{Kind: model.KindPageViewUpdate, PageView: &final},
		{Kind: model.KindButtonClick, ButtonClick: &model.ButtonClick{SessionID: sid, PagePath: "/offers", ButtonName: "Buy", ButtonType: model.ButtonPurchase, CreatedAt: pv.CreatedAt}},
		{Kind: model.KindFunnelEvent, FunnelEvent: &model.FunnelEvent{SessionID: sid, PagePath: "/offers", EventName: "offer_viewed", CreatedAt: pv.CreatedAt}},
	}))

	views, err := client.PageViews(ctx, &since)
	require.NoError(t, err)
	var found []model.PageView
	for _, v := range views {
		if v.SessionID == sid {
			found = append(found, v)
		}
	}
	require.Len(t, found, 1)
	require.Equal(t, 80, found[0].ScrollDepth)
	require.Equal(t, 42, found[0].TimeOnPage)

	clicks, err := client.ButtonClicks(ctx, &since)
	require.NoError(t, err)
	require.NotEmpty(t, clicks)

	events, err := client.FunnelEvents(ctx, &since)
	require.NoError(t, err)
	require.NotEmpty(t, events)
}
