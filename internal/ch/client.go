package ch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Client wraps a ClickHouse connection.
type Client struct {
	db *sql.DB
}

// New creates a ClickHouse client from a DSN.
func New(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close releases database resources.
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Ping ensures the database is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("clickhouse ping: %w", err)
	}
	return nil
}

// page_views keeps every revision of a row; FINAL collapses them to the
// highest revision per (created_at, id).
var schema = []string{`
CREATE TABLE IF NOT EXISTS page_views
(
  id               String,
  session_id       String,
  page_path        String,
  user_agent       String,
  device_type      LowCardinality(String),
  referrer         Nullable(String),
  utm_source       Nullable(String),
  utm_medium       Nullable(String),
  utm_campaign     Nullable(String),
  utm_term         Nullable(String),
  utm_content      Nullable(String),
  scroll_depth     UInt8,
  time_on_page     UInt32,
  is_returning     Bool,
  pages_in_session UInt32,
  is_bounce        Bool,
  created_at       DateTime64(3, 'UTC'),
  revision         UInt32
)
ENGINE = ReplacingMergeTree(revision)
PARTITION BY toYYYYMM(created_at)
ORDER BY (created_at, id)`, `
CREATE TABLE IF NOT EXISTS button_clicks
(
  session_id   String,
  page_path    String,
  button_name  String,
  button_type  LowCardinality(String),
  created_at   DateTime64(3, 'UTC')
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (created_at, session_id)`, `
CREATE TABLE IF NOT EXISTS funnel_events
(
  session_id   String,
  page_path    String,
  event_name   LowCardinality(String),
  event_data   String,
  created_at   DateTime64(3, 'UTC')
)
ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (created_at, event_name)`,
}

// EnsureSchema creates the telemetry tables if they do not exist.
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := c.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
