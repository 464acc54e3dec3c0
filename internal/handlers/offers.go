package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"brandsite/internal/model"
	"brandsite/internal/offer"
	"brandsite/internal/pg"
	"brandsite/internal/pipeline"
)

// LeadSubmittedEvent is the funnel event fired for every stored lead.
const LeadSubmittedEvent = "offer_lead_submitted"

// OfferStore loads offers by id. Unknown ids return pg.ErrNotFound.
type OfferStore interface {
	GetOffer(ctx context.Context, id string) (offer.Offer, error)
}

// Offers serves the offer card, its live stream, checkout and lead capture.
type Offers struct {
	offers    OfferStore
	leads     offer.LeadStore
	validator *offer.LeadValidator
	sessions  *Sessions
	clock     clockwork.Clock
	tick      time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// OffersConfig groups the dependencies of the offer handlers.
type OffersConfig struct {
	Offers    OfferStore
	Leads     offer.LeadStore
	Validator *offer.LeadValidator
	Sessions  *Sessions
	Clock     clockwork.Clock
	Tick      time.Duration
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewOffers creates the offer handlers.
func NewOffers(cfg OffersConfig) *Offers {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Offers{
		offers:    cfg.Offers,
		leads:     cfg.Leads,
		validator: cfg.Validator,
		sessions:  cfg.Sessions,
		clock:     cfg.Clock,
		tick:      cfg.Tick,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
}

// Register mounts the offer routes on r.
func (h *Offers) Register(r gin.IRouter) {
	g := r.Group("/v1/offers/:id")
	g.GET("", h.card)
	g.GET("/stream", h.stream)
	g.GET("/checkout", h.checkout)
	g.POST("/leads", h.submitLead)
}

func (h *Offers) card(c *gin.Context) {
	o, ok := h.load(c)
	if !ok {
		return
	}
	card, err := offer.BuildCard(o, h.clock.Now())
	h.warnIndeterminate(o, err)
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, card)
}

// stream pushes a "card" event on every tick until the client goes away.
func (h *Offers) stream(c *gin.Context) {
	o, ok := h.load(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	cards := make(chan offer.Card)
	go offer.Watch(ctx, h.clock, o, h.tick, func(card offer.Card, err error) {
		h.warnIndeterminate(o, err)
		select {
		case cards <- card:
		case <-ctx.Done():
		}
	})

	c.Header("Cache-Control", "no-store")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case card := <-cards:
			c.SSEvent("card", card)
			return true
		}
	})
}

func (h *Offers) checkout(c *gin.Context) {
	o, ok := h.load(c)
	if !ok {
		return
	}
	state, err := offer.StateAt(o, h.clock.Now())
	h.warnIndeterminate(o, err)
	if !state.Purchasable() || o.OfferURL == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "offer is not purchasable", "state": state})
		return
	}
	if !h.sessions.IsBot(c) {
		path := pipeline.NormalizePath(c.DefaultQuery("from", "/offers/"+o.ID))
		h.sessions.Tab(c).TrackButtonClick(path, c.DefaultQuery("button", "checkout"), model.ButtonPurchase)
	}
	c.Redirect(http.StatusFound, o.OfferURL)
}

func (h *Offers) submitLead(c *gin.Context) {
	o, ok := h.load(c)
	if !ok {
		return
	}
	var req offer.LeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	tab := h.sessions.Tab(c)
	lead, err := h.validator.NewLead(o, req, tab.SessionID(), h.clock.Now())
	switch {
	case errors.Is(err, offer.ErrLeadsClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.leads.InsertLead(ctx, lead); err != nil {
		h.logger.Error("store lead", "offer_id", o.ID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not save lead", "retryable": true})
		return
	}

	data, _ := json.Marshal(map[string]string{"offer_id": o.ID, "intent": lead.Intent})
	tab.TrackFunnelEvent("/offers/"+o.ID, LeadSubmittedEvent, data)
	c.JSON(http.StatusCreated, gin.H{"id": lead.ID, "intent": lead.Intent})
}

func (h *Offers) load(c *gin.Context) (offer.Offer, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	o, err := h.offers.GetOffer(ctx, c.Param("id"))
	if errors.Is(err, pg.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer not found"})
		return offer.Offer{}, false
	}
	if err != nil {
		h.logger.Error("load offer", "offer_id", c.Param("id"), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "offer unavailable", "retryable": true})
		return offer.Offer{}, false
	}
	return o, true
}

func (h *Offers) warnIndeterminate(o offer.Offer, err error) {
	if err != nil {
		h.logger.Warn("offer dates incomplete, showing sold out", "offer_id", o.ID, "error", err)
	}
}
