package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"brandsite/internal/auth"
	"brandsite/internal/config"
	"brandsite/internal/logging"
	"brandsite/internal/model"
	"brandsite/internal/ratelimit"
	"brandsite/internal/sink"
	"brandsite/internal/tracker"
)

const testSecret = "test-cookie-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type captureSender struct {
	mu   sync.Mutex
	envs []model.Envelope
}

func (c *captureSender) Send(_ context.Context, env model.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
	return nil
}

func (c *captureSender) byKind(kind string) []model.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Envelope
	for _, env := range c.envs {
		if env.Kind == kind {
			out = append(out, env)
		}
	}
	return out
}

type harness struct {
	clock    *clockwork.FakeClock
	sent     *captureSender
	registry *tracker.Registry
	dispatch *tracker.Dispatcher
	sessions *Sessions
	router   *gin.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC))
	sent := &captureSender{}
	logger := logging.Discard()
	metrics := tracker.NewMetrics(prometheus.NewRegistry())
	dispatch := tracker.NewDispatcher(sink.NewRecorder(sent, clock), time.Second, logger, metrics)
	registry := tracker.NewRegistry(tracker.Deps{
		Clock:      clock,
		Limiter:    ratelimit.NewMemory(clock),
		Dispatcher: dispatch,
		Settings:   config.DefaultTracking(),
		Logger:     logger,
		Metrics:    metrics,
	}, 30*time.Minute)
	t.Cleanup(registry.Close)

	h := &harness{
		clock:    clock,
		sent:     sent,
		registry: registry,
		dispatch: dispatch,
		sessions: NewSessions(registry, testSecret, false, []string{"bot", "crawler"}),
		router:   gin.New(),
	}
	NewTrack(h.sessions).Register(h.router)
	return h
}

const mobileUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148"

func (h *harness) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return h.doAs(t, mobileUA, method, path, body, cookies...)
}

func (h *harness) doAs(t *testing.T, ua, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ua)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// waitFor blocks until at least n envelopes of kind have been sent.
func (h *harness) waitFor(t *testing.T, kind string, n int) []model.Envelope {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(h.sent.byKind(kind)) >= n
	}, 2*time.Second, 5*time.Millisecond)
	return h.sent.byKind(kind)
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func signed(name, value string) *http.Cookie {
	return &http.Cookie{Name: name, Value: auth.SignValue(testSecret, value)}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
