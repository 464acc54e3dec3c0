package ch

import (
	"context"
	"fmt"

	"brandsite/internal/model"
)

const (
	insertPageView = `
INSERT INTO page_views (
	id, session_id, page_path, user_agent, device_type, referrer,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content,
	scroll_depth, time_on_page, is_returning, pages_in_session, is_bounce,
	created_at, revision
) VALUES (
	?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
)`
	insertButtonClick = `
INSERT INTO button_clicks (session_id, page_path, button_name, button_type, created_at)
VALUES (?, ?, ?, ?, ?)`
	insertFunnelEvent = `
INSERT INTO funnel_events (session_id, page_path, event_name, event_data, created_at)
VALUES (?, ?, ?, ?, ?)`
)

// InsertBatch writes a batch of telemetry envelopes, one prepared statement
// per table. Page-view inserts and updates are both appended as revisions.
func (c *Client) InsertBatch(ctx context.Context, envelopes []model.Envelope) error {
	var views, clicks, events [][]any
	for _, env := range envelopes {
		switch {
		case env.PageView != nil:
			views = append(views, pageViewRow(*env.PageView))
		case env.ButtonClick != nil:
			clicks = append(clicks, buttonClickRow(*env.ButtonClick))
		case env.FunnelEvent != nil:
			events = append(events, funnelEventRow(*env.FunnelEvent))
		}
	}
	if err := c.insertRows(ctx, insertPageView, views); err != nil {
		return fmt.Errorf("insert page_views: %w", err)
	}
	if err := c.insertRows(ctx, insertButtonClick, clicks); err != nil {
		return fmt.Errorf("insert button_clicks: %w", err)
	}
	if err := c.insertRows(ctx, insertFunnelEvent, events); err != nil {
		return fmt.Errorf("insert funnel_events: %w", err)
	}
	return nil
}

const (
	tablePageViews    = "page_views"
	tableButtonClicks = "button_clicks"
	tableFunnelEvents = "funnel_events"
)

func tableOf(env model.Envelope) string {
	switch {
	case env.PageView != nil:
		return tablePageViews
	case env.ButtonClick != nil:
		return tableButtonClicks
	case env.FunnelEvent != nil:
		return tableFunnelEvents
	default:
		return ""
	}
}

// splitByTable groups envelopes by destination table, keeping arrival order
// inside each group. Envelopes without a payload are dropped.
func splitByTable(envelopes []model.Envelope) [][]model.Envelope {
	var order []string
	groups := make(map[string][]model.Envelope)
	for _, env := range envelopes {
		table := tableOf(env)
		if table == "" {
			continue
		}
		if _, ok := groups[table]; !ok {
			order = append(order, table)
		}
		groups[table] = append(groups[table], env)
	}
	out := make([][]model.Envelope, 0, len(order))
	for _, table := range order {
		out = append(out, groups[table])
	}
	return out
}

func (c *Client) insertRows(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func pageViewRow(pv model.PageView) []any {
	return []any{
		pv.ID,
		pv.SessionID,
		pv.PagePath,
		pv.UserAgent,
		pv.DeviceType,
		pv.Referrer,
		pv.UTM.Source,
		pv.UTM.Medium,
		pv.UTM.Campaign,
		pv.UTM.Term,
		pv.UTM.Content,
		uint8(clamp(pv.ScrollDepth, 0, 100)),
		uint32(max(pv.TimeOnPage, 0)),
		pv.IsReturning,
		uint32(max(pv.PagesInSession, 0)),
		pv.IsBounce,
		pv.CreatedAt,
		pv.Revision,
	}
}

func buttonClickRow(c model.ButtonClick) []any {
	return []any{c.SessionID, c.PagePath, c.ButtonName, string(c.ButtonType), c.CreatedAt}
}

func funnelEventRow(e model.FunnelEvent) []any {
	data := string(e.EventData)
	if data == "" {
		data = "{}"
	}
	return []any{e.SessionID, e.PagePath, e.EventName, data, e.CreatedAt}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
