package offer

import (
	"errors"
	"time"
)

// State is the derived lifecycle state of an offer. It is never stored.
type State string

const (
	Presale State = "PRESALE"
	Open    State = "OPEN"
	Started State = "STARTED"
	SoldOut State = "SOLDOUT"
)

// ErrIndeterminate is returned with SoldOut when an offer lacks the dates its
// state depends on.
var ErrIndeterminate = errors.New("offer state indeterminate")

// Offer is a time-boxed sellable product. Price is a display string.
type Offer struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       string     `json:"price"`
	OfferURL    string     `json:"offer_url"`
	SalesStart  *time.Time `json:"sales_start_date"`
	SalesEnd    *time.Time `json:"sales_end_date"`
	Start       *time.Time `json:"start_date"`
	End         *time.Time `json:"end_date"`
}

// StateAt evaluates the offer at now. Checks run in order: before sales open
// is PRESALE, at or after sales close is SOLDOUT, at or after the start date
// is STARTED, otherwise OPEN. Missing dates fail safe to SOLDOUT.
func StateAt(o Offer, now time.Time) (State, error) {
	if o.SalesStart == nil || o.SalesEnd == nil || o.Start == nil {
		return SoldOut, ErrIndeterminate
	}
	switch {
	case now.Before(*o.SalesStart):
		return Presale, nil
	case !now.Before(*o.SalesEnd):
		return SoldOut, nil
	case !now.Before(*o.Start):
		return Started, nil
	default:
		return Open, nil
	}
}

// Purchasable reports whether checkout is offered in s.
func (s State) Purchasable() bool {
	return s == Open || s == Started
}

// Countdown is a non-negative duration split into calendar-free units.
type Countdown struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// CountdownTo splits target-now by integer division of whole milliseconds.
// A target in the past yields zero.
func CountdownTo(target, now time.Time) Countdown {
	ms := target.Sub(now).Milliseconds()
	if ms <= 0 {
		return Countdown{}
	}
	const (
		second = int64(1000)
		minute = 60 * second
		hour   = 60 * minute
		day    = 24 * hour
	)
	return Countdown{
		Days:    ms / day,
		Hours:   ms % day / hour,
		Minutes: ms % hour / minute,
		Seconds: ms % minute / second,
	}
}
