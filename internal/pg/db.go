package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the PostgreSQL pool holding offers and leads.
type DB struct {
	db *sql.DB
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS offers (
  id               TEXT PRIMARY KEY,
  title            TEXT NOT NULL,
  description      TEXT NOT NULL DEFAULT '',
  price            TEXT NOT NULL DEFAULT '',
  offer_url        TEXT NOT NULL DEFAULT '',
  sales_start_date TIMESTAMPTZ,
  sales_end_date   TIMESTAMPTZ,
  start_date       TIMESTAMPTZ,
  end_date         TIMESTAMPTZ
)`, `
CREATE TABLE IF NOT EXISTS leads (
  id         UUID PRIMARY KEY,
  offer_id   TEXT NOT NULL REFERENCES offers(id),
  email      TEXT NOT NULL,
  phone      TEXT NOT NULL,
  intent     TEXT NOT NULL,
  session_id TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`, `
CREATE INDEX IF NOT EXISTS leads_offer_id_idx ON leads (offer_id, created_at)`,
}

// EnsureSchema creates the offers and leads tables if they do not exist.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := d.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
