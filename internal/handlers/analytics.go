package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"brandsite/internal/analytics"
)

// Loader produces an analytics snapshot for a window.
type Loader interface {
	Load(ctx context.Context, w analytics.Window) (analytics.Snapshot, error)
}

// Analytics serves the admin dashboard snapshot.
type Analytics struct {
	loader Loader
	logger *slog.Logger
}

// NewAnalytics creates the analytics handler.
func NewAnalytics(loader Loader, logger *slog.Logger) *Analytics {
	return &Analytics{loader: loader, logger: logger}
}

// Register mounts the analytics route on r.
func (h *Analytics) Register(r gin.IRouter) {
	r.GET("/v1/analytics", h.snapshot)
}

func (h *Analytics) snapshot(c *gin.Context) {
	window, err := analytics.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.loader.Load(c.Request.Context(), window)
	if err != nil {
		h.logger.Error("load analytics", "window", window, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analytics unavailable", "retryable": true})
		return
	}
	c.Header("Cache-Control", "private, max-age=30")
	c.JSON(http.StatusOK, snap)
}
