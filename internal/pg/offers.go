package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"brandsite/internal/offer"
)

// ErrNotFound is returned when no offer has the requested id.
var ErrNotFound = errors.New("not found")

// GetOffer loads one offer. Missing dates come back as nil.
func (d *DB) GetOffer(ctx context.Context, id string) (offer.Offer, error) {
	row := d.db.QueryRowContext(ctx, `
SELECT id, title, description, price, offer_url,
	sales_start_date, sales_end_date, start_date, end_date
FROM offers WHERE id = $1`, id)

	var (
		o                                offer.Offer
		salesStart, salesEnd, start, end sql.NullTime
	)
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Price, &o.OfferURL,
		&salesStart, &salesEnd, &start, &end)
	if errors.Is(err, sql.ErrNoRows) {
		return offer.Offer{}, ErrNotFound
	}
	if err != nil {
		return offer.Offer{}, fmt.Errorf("get offer %s: %w", id, err)
	}
	o.SalesStart = nullTime(salesStart)
	o.SalesEnd = nullTime(salesEnd)
	o.Start = nullTime(start)
	o.End = nullTime(end)
	return o, nil
}

// UpsertOffer inserts or replaces an offer. Used by seeding and tests.
func (d *DB) UpsertOffer(ctx context.Context, o offer.Offer) error {
	_, err := d.db.ExecContext(ctx, `
INSERT INTO offers (id, title, description, price, offer_url,
	sales_start_date, sales_end_date, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	offer_url = EXCLUDED.offer_url,
	sales_start_date = EXCLUDED.sales_start_date,
	sales_end_date = EXCLUDED.sales_end_date,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date`,
		o.ID, o.Title, o.Description, o.Price, o.OfferURL,
		timeArg(o.SalesStart), timeArg(o.SalesEnd), timeArg(o.Start), timeArg(o.End))
	if err != nil {
		return fmt.Errorf("upsert offer %s: %w", o.ID, err)
	}
	return nil
}

// InsertLead stores a lead.
func (d *DB) InsertLead(ctx context.Context, lead offer.Lead) error {
	_, err := d.db.ExecContext(ctx, `
INSERT INTO leads (id, offer_id, email, phone, intent, session_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		lead.ID, lead.OfferID, lead.Email, lead.Phone, lead.Intent, lead.SessionID, lead.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// CountLeads returns how many leads an offer has.
func (d *DB) CountLeads(ctx context.Context, offerID string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT count(*) FROM leads WHERE offer_id = $1`, offerID).Scan(&n)
	return n, err
}

func nullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func timeArg(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
