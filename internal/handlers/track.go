package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"brandsite/internal/model"
	"brandsite/internal/pipeline"
	"brandsite/internal/tracker"
)

// Track serves the tracking beacons.
type Track struct {
	sessions *Sessions
}

// NewTrack creates the beacon handlers.
func NewTrack(sessions *Sessions) *Track {
	return &Track{sessions: sessions}
}

// Register mounts the beacon routes on r.
func (h *Track) Register(r gin.IRouter) {
	g := r.Group("/v1/track")
	g.POST("/pageview", h.pageView)
	g.POST("/scroll", h.scroll)
	g.POST("/leave", h.leave)
	g.POST("/click", h.click)
	g.POST("/funnel", h.funnel)
}

type leaveRequest struct {
	View tracker.ViewHandle `json:"view"`
}

func (h *Track) pageView(c *gin.Context) {
	if h.ignored(c) {
		return
	}
	var beacon model.PageViewBeacon
	if err := c.ShouldBindJSON(&beacon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	visit := pipeline.Enrich(beacon, c.GetHeader("User-Agent"))
	view := h.sessions.Tab(c).BeginView(visit)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "view": view})
}

func (h *Track) scroll(c *gin.Context) {
	if h.ignored(c) {
		return
	}
	var beacon model.ScrollBeacon
	if err := c.ShouldBindJSON(&beacon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scroll sample"})
		return
	}
	if tab, ok := h.sessions.Existing(c); ok {
		tab.Scroll(beacon)
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// leave accepts an empty body: unload beacons cannot always carry one.
func (h *Track) leave(c *gin.Context) {
	if h.ignored(c) {
		return
	}
	var req leaveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}
	if tab, ok := h.sessions.Existing(c); ok {
		if req.View != 0 {
			tab.EndView(req.View)
		} else {
			tab.EndCurrent()
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (h *Track) click(c *gin.Context) {
	if h.ignored(c) {
		return
	}
	var beacon model.ClickBeacon
	if err := c.ShouldBindJSON(&beacon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path and button_name are required"})
		return
	}
	tab := h.sessions.Tab(c)
	ok := tab.TrackButtonClick(pipeline.NormalizePath(beacon.Path), beacon.ButtonName, model.ParseButtonType(beacon.ButtonType))
	c.JSON(http.StatusAccepted, gin.H{"status": outcome(ok)})
}

func (h *Track) funnel(c *gin.Context) {
	if h.ignored(c) {
		return
	}
	var beacon model.FunnelBeacon
	if err := c.ShouldBindJSON(&beacon); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path and event_name are required"})
		return
	}
	tab := h.sessions.Tab(c)
	ok := tab.TrackFunnelEvent(pipeline.NormalizePath(beacon.Path), beacon.EventName, beacon.EventData)
	c.JSON(http.StatusAccepted, gin.H{"status": outcome(ok)})
}

func (h *Track) ignored(c *gin.Context) bool {
	if !h.sessions.IsBot(c) {
		return false
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "ignored"})
	return true
}

func outcome(accepted bool) string {
	if accepted {
		return "accepted"
	}
	return "dropped"
}
