package offer

import (
	"time"
)

// Lead form intents.
const (
	IntentPresale = "presale"
	IntentNotify  = "notify"
)

const startedBanner = "This program is already underway. You can still join."

// LeadForm describes the lead capture form shown in PRESALE and SOLDOUT.
type LeadForm struct {
	Intent string `json:"intent"`
}

// Card is what the offer card renders at one instant.
type Card struct {
	OfferID     string     `json:"offerId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       string     `json:"price"`
	State       State      `json:"state"`
	Countdown   *Countdown `json:"countdown,omitempty"`
	CanPurchase bool       `json:"canPurchase"`
	Banner      string     `json:"banner,omitempty"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	LeadForm    *LeadForm  `json:"leadForm,omitempty"`
	Now         time.Time  `json:"now"`
}

// BuildCard derives the card for o at now. The error is ErrIndeterminate when
// the offer's dates are incomplete; the card is still the SOLDOUT card.
func BuildCard(o Offer, now time.Time) (Card, error) {
	state, err := StateAt(o, now)
	card := Card{
		OfferID:     o.ID,
		Title:       o.Title,
		Description: o.Description,
		Price:       o.Price,
		State:       state,
		CanPurchase: state.Purchasable(),
		Now:         now.UTC(),
	}
	switch state {
	case Presale:
		cd := CountdownTo(*o.SalesStart, now)
		card.Countdown = &cd
		card.LeadForm = &LeadForm{Intent: IntentPresale}
	case Open:
		card.StartDate = o.Start
		card.EndDate = o.End
	case Started:
		card.Banner = startedBanner
		card.EndDate = o.End
	case SoldOut:
		card.LeadForm = &LeadForm{Intent: IntentNotify}
	}
	return card, err
}

// LeadIntent returns the intent a lead submitted in state s is filed under.
// Leads are only collected while the form is shown.
func LeadIntent(s State) (string, bool) {
	switch s {
	case Presale:
		return IntentPresale, true
	case SoldOut:
		return IntentNotify, true
	default:
		return "", false
	}
}
