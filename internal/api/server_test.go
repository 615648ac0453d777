package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovetingyuan/bili-live/internal/cache"
	"github.com/lovetingyuan/bili-live/internal/checker"
	"github.com/lovetingyuan/bili-live/internal/config"
	"github.com/lovetingyuan/bili-live/internal/monitor"
)

type stubService struct{ checks int }

func (s *stubService) Check(context.Context) (monitor.LiveSet, error) {
	s.checks++
	return monitor.LiveSet{}, nil
}

func (s *stubService) Inspect(context.Context) (checker.State, error) {
	return checker.State{LiveUps: monitor.LiveSet{}}, nil
}

func (s *stubService) Notify(context.Context, string, string) error { return nil }

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T, cfg *config.Config) (http.Handler, *stubService) {
	t.Helper()
	svc := &stubService{}
	r := NewRouter(Deps{
		Service: svc,
		Store:   stubPinger{},
		Cache:   cache.New(true),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "ok") }),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, cfg)
	return r, svc
}

func testConfig() *config.Config {
	return &config.Config{
		SafeToken:         "s3cret",
		CORSAllowOrigins:  []string{"http://localhost:3000"},
		RateLimitEnabled:  false,
		RateLimitRequests: 60,
		RateLimitWindow:   time.Minute,
	}
}

func TestTokenGate(t *testing.T) {
	r, svc := newTestRouter(t, testConfig())

	tests := []struct {
		name   string
		target string
		header string
		status int
	}{
		{"missing", "/api/v1/check", "", http.StatusUnauthorized},
		{"wrong query", "/api/v1/check?token=nope", "", http.StatusUnauthorized},
		{"query", "/api/v1/check?token=s3cret", "", http.StatusOK},
		{"header", "/api/v1/check", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("X-Safe-Token", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, 2, svc.checks)
}

func TestEmptyTokenRejectsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.SafeToken = ""
	r, _ := newTestRouter(t, cfg)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inspect?token=", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	for _, path := range []string{"/", "/health", "/health/store", "/health/cache", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get("X-Process-Time"), path)
	}
}

func TestNotifyRouteRequiresPost(t *testing.T) {
	r, _ := newTestRouter(t, testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/notify/test?token=s3cret", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notify/test?token=s3cret", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := RateLimitMiddleware(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	require.Len(t, codes, 3)
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}
