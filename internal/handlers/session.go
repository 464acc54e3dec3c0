package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"brandsite/internal/auth"
	"brandsite/internal/tracker"
	"brandsite/internal/util"
)

const (
	sessionCookie = "bs_sid"
	visitorCookie = "bs_vid"

	visitorMaxAge = 365 * 24 * 60 * 60
)

// Sessions maps signed browser cookies onto tracker tabs.
type Sessions struct {
	registry *tracker.Registry
	secret   string
	secure   bool
	bots     []string
	newID    func() string
}

// NewSessions creates the cookie layer. Cookies are signed with secret and
// marked Secure when secure is set.
func NewSessions(registry *tracker.Registry, secret string, secure bool, bots []string) *Sessions {
	return &Sessions{registry: registry, secret: secret, secure: secure, bots: bots, newID: uuid.NewString}
}

// IsBot reports whether the request comes from a crawler.
func (s *Sessions) IsBot(c *gin.Context) bool {
	return util.IsBot(c.GetHeader("User-Agent"), s.bots)
}

// Tab returns the caller's tab, creating the session and visitor cookies on
// first contact. A visitor cookie minted here is not passed to the tab, so
// the first page view of a new browser is not counted as returning.
func (s *Sessions) Tab(c *gin.Context) *tracker.Tab {
	sid, ok := s.read(c, sessionCookie)
	if !ok {
		sid = s.newID()
		s.write(c, sessionCookie, sid, 0)
	}
	vid, ok := s.read(c, visitorCookie)
	if !ok {
		s.write(c, visitorCookie, s.newID(), visitorMaxAge)
	}
	return s.registry.Tab(sid, vid)
}

// Existing returns the caller's tab without creating anything.
func (s *Sessions) Existing(c *gin.Context) (*tracker.Tab, bool) {
	sid, ok := s.read(c, sessionCookie)
	if !ok {
		return nil, false
	}
	return s.registry.Lookup(sid)
}

func (s *Sessions) read(c *gin.Context, name string) (string, bool) {
	raw, err := c.Cookie(name)
	if err != nil || raw == "" {
		return "", false
	}
	return auth.VerifyValue(s.secret, raw)
}

func (s *Sessions) write(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, auth.SignValue(s.secret, value), maxAge, "/", "", s.secure, true)
}
