// Package handler provides HTTP handlers for all API endpoints.
// Handlers delegate to the checker; no business logic lives here.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lovetingyuan/bili-live/internal/api/respond"
	"github.com/lovetingyuan/bili-live/internal/bili"
	"github.com/lovetingyuan/bili-live/internal/cache"
	"github.com/lovetingyuan/bili-live/internal/checker"
	"github.com/lovetingyuan/bili-live/internal/monitor"
	"github.com/lovetingyuan/bili-live/internal/notifications"
	"github.com/lovetingyuan/bili-live/internal/store"
)

// Service is the subset of *checker.Checker the handlers use.
type Service interface {
	Check(ctx context.Context) (monitor.LiveSet, error)
	Inspect(ctx context.Context) (checker.State, error)
	Notify(ctx context.Context, title, body string) error
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	svc    Service
	store  Pinger
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a Handler with shared dependencies.
func New(svc Service, st Pinger, c *cache.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, store: st, cache: c, logger: logger}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns service name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "bili-live",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckStore verifies the state store is reachable.
// @Summary Store health check
// @Description Verifies connectivity to the configured state store.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/store [get]
func (h *Handler) HealthCheckStore(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn("Store health check failed", "error", err)
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"store":     "disconnected",
			"error":     "State store check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"store":     "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Check runs a check cycle on demand.
// @Summary Run a check cycle
// @Description Fetches live status, persists changes and notifies about newly live streamers. Returns the live set, or null when no IDs are tracked.
// @Tags check
// @Produce json
// @Param token query string false "Shared secret (or X-Safe-Token header)"
// @Success 200 {object} map[string]monitor.LiveUp
// @Failure 401 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /check [get]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	live, err := h.svc.Check(r.Context())
	h.cache.Invalidate(cache.KeyInspect)
	if err != nil {
		h.writeCycleError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, live)
}

// Inspect returns the persisted state.
// @Summary Inspect stored state
// @Description Returns the stored live set and the raw tracked ID list.
// @Tags check
// @Produce json
// @Param token query string false "Shared secret (or X-Safe-Token header)"
// @Success 200 {object} checker.State
// @Success 304
// @Failure 401 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /inspect [get]
func (h *Handler) Inspect(w http.ResponseWriter, r *http.Request) {
	if data, etag, ok := h.cache.Get(cache.KeyInspect); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLInspect, true)
		return
	}

	st, err := h.svc.Inspect(r.Context())
	if err != nil {
		h.logger.Error("Inspect failed", "error", err)
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read state", err.Error())
		return
	}

	data, err := json.Marshal(st)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode state")
		return
	}

	etag := h.cache.Set(cache.KeyInspect, data, cache.TTLInspect)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, cache.TTLInspect, false)
}

// NotifyTest sends a test message through the configured channel.
// @Summary Send a test notification
// @Description Sends "test"/"success" through the configured push channel.
// @Tags notify
// @Produce json
// @Param token query string false "Shared secret (or X-Safe-Token header)"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} respond.ErrorResponse
// @Failure 502 {object} respond.ErrorResponse
// @Router /notify/test [post]
func (h *Handler) NotifyTest(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Notify(r.Context(), "test", "success"); err != nil {
		h.writeCycleError(w, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"success": true})
}

// writeCycleError maps the error taxonomy onto HTTP responses.
func (h *Handler) writeCycleError(w http.ResponseWriter, err error) {
	h.logger.Error("Request failed", "error", err)

	var (
		upErr     *bili.UpstreamError
		apiErr    *bili.APIError
		submitErr *notifications.SubmitError
		confErr   *notifications.ConfirmError
	)
	switch {
	case errors.As(err, &upErr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Live status API unreachable", err.Error())
	case errors.As(err, &apiErr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, "UPSTREAM_API_ERROR", "Live status API returned an error", err.Error())
	case errors.As(err, &submitErr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, "NOTIFY_SUBMIT_ERROR", "Push provider rejected the message", err.Error())
	case errors.As(err, &confErr):
		respond.WriteErrorDetail(w, http.StatusBadGateway, "NOTIFY_CONFIRM_ERROR", "Push delivery could not be confirmed", err.Error())
	case errors.Is(err, store.ErrConflict):
		respond.WriteErrorDetail(w, http.StatusConflict, "STATE_CONFLICT", "State changed during the cycle", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.WriteError(w, http.StatusServiceUnavailable, "CANCELLED", "Request cancelled")
	default:
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Check failed", err.Error())
	}
}
