package ch

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"brandsite/internal/model"
)

// sinceClause returns the created_at filter for a window lower bound.
func sinceClause(since *time.Time) (string, []any) {
	if since == nil {
		return "", nil
	}
	return " WHERE created_at >= ?", []any{since.UTC()}
}

// PageViews returns the latest revision of every page view created at or
// after since.
func (c *Client) PageViews(ctx context.Context, since *time.Time) ([]model.PageView, error) {
	where, args := sinceClause(since)
	rows, err := c.db.QueryContext(ctx, `
SELECT id, session_id, page_path, user_agent, device_type, referrer,
	utm_source, utm_medium, utm_campaign, utm_term, utm_content,
	toInt64(scroll_depth), toInt64(time_on_page), is_returning,
	toInt64(pages_in_session), is_bounce, created_at, toInt64(revision)
FROM page_views FINAL`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PageView
	for rows.Next() {
		var (
			pv                                             model.PageView
			referrer, source, medium, campaign, term, cont sql.NullString
			scroll, onPage, pages, revision                int64
		)
		if err := rows.Scan(
			&pv.ID, &pv.SessionID, &pv.PagePath, &pv.UserAgent, &pv.DeviceType, &referrer,
			&source, &medium, &campaign, &term, &cont,
			&scroll, &onPage, &pv.IsReturning,
			&pages, &pv.IsBounce, &pv.CreatedAt, &revision,
		); err != nil {
			return nil, err
		}
		pv.Referrer = nullString(referrer)
		pv.UTM = model.UTM{
			Source:   nullString(source),
			Medium:   nullString(medium),
			Campaign: nullString(campaign),
			Term:     nullString(term),
			Content:  nullString(cont),
		}
		pv.ScrollDepth = int(scroll)
		pv.TimeOnPage = int(onPage)
		pv.PagesInSession = int(pages)
		pv.Revision = uint32(revision)
		out = append(out, pv)
	}
	return out, rows.Err()
}

// ButtonClicks returns clicks created at or after since.
func (c *Client) ButtonClicks(ctx context.Context, since *time.Time) ([]model.ButtonClick, error) {
	where, args := sinceClause(since)
	rows, err := c.db.QueryContext(ctx, `
SELECT session_id, page_path, button_name, button_type, created_at
FROM button_clicks`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ButtonClick
	for rows.Next() {
		var (
			click model.ButtonClick
			typ   string
		)
		if err := rows.Scan(&click.SessionID, &click.PagePath, &click.ButtonName, &typ, &click.CreatedAt); err != nil {
			return nil, err
		}
		click.ButtonType = model.ParseButtonType(typ)
		out = append(out, click)
	}
	return out, rows.Err()
}

// FunnelEvents returns funnel events created at or after since.
func (c *Client) FunnelEvents(ctx context.Context, since *time.Time) ([]model.FunnelEvent, error) {
	where, args := sinceClause(since)
	rows, err := c.db.QueryContext(ctx, `
SELECT session_id, page_path, event_name, event_data, created_at
FROM funnel_events`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FunnelEvent
	for rows.Next() {
		var (
			evt  model.FunnelEvent
			data string
		)
		if err := rows.Scan(&evt.SessionID, &evt.PagePath, &evt.EventName, &data, &evt.CreatedAt); err != nil {
			return nil, err
		}
		if data != "" && data != "{}" {
			evt.EventData = json.RawMessage(data)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// CountPageViews returns the number of distinct page views, useful for tests.
func (c *Client) CountPageViews(ctx context.Context) (int64, error) {
	row := c.db.QueryRowContext(ctx, `SELECT toInt64(count()) FROM page_views FINAL`)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
