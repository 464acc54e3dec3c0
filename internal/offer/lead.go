package offer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
)

var (
	// ErrInvalidLead wraps every lead validation failure.
	ErrInvalidLead = errors.New("invalid lead")
	// ErrLeadsClosed is returned when the offer shows no lead form.
	ErrLeadsClosed = errors.New("offer is not collecting leads")
)

// LeadRequest is the lead form submission. Both fields are required.
type LeadRequest struct {
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Lead is a persisted lead.
type Lead struct {
	ID        string    `json:"id"`
	OfferID   string    `json:"offer_id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Intent    string    `json:"intent"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LeadStore persists leads.
type LeadStore interface {
	InsertLead(ctx context.Context, lead Lead) error
}

// LeadValidator checks and normalizes lead submissions. Phone numbers
// without a country prefix are read in the default region.
type LeadValidator struct {
	validate *validator.Validate
	region   string
}

// NewLeadValidator creates a validator for the given default region code.
func NewLeadValidator(region string) *LeadValidator {
	if region == "" {
		region = "US"
	}
	return &LeadValidator{validate: validator.New(), region: strings.ToUpper(region)}
}

// Normalize returns req with a lower-cased email and an E.164 phone number.
func (v *LeadValidator) Normalize(req LeadRequest) (LeadRequest, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if err := v.validate.Struct(req); err != nil {
		return LeadRequest{}, fmt.Errorf("%w: %v", ErrInvalidLead, err)
	}
	parsed, err := phonenumbers.Parse(req.Phone, v.region)
	if err != nil {
		return LeadRequest{}, fmt.Errorf("%w: phone: %v", ErrInvalidLead, err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return LeadRequest{}, fmt.Errorf("%w: phone number is not valid", ErrInvalidLead)
	}
	req.Phone = phonenumbers.Format(parsed, phonenumbers.E164)
	return req, nil
}

// NewLead validates req against the offer's state at now and builds the lead
// to persist.
func (v *LeadValidator) NewLead(o Offer, req LeadRequest, sessionID string, now time.Time) (Lead, error) {
	state, _ := StateAt(o, now)
	intent, ok := LeadIntent(state)
	if !ok {
		return Lead{}, ErrLeadsClosed
	}
	req, err := v.Normalize(req)
	if err != nil {
		return Lead{}, err
	}
	return Lead{
		ID:        uuid.NewString(),
		OfferID:   o.ID,
		Email:     req.Email,
		Phone:     req.Phone,
		Intent:    intent,
		SessionID: sessionID,
		CreatedAt: now.UTC(),
	}, nil
}
