package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lovetingyuan/bili-live/internal/api/respond"
	"github.com/lovetingyuan/bili-live/internal/bili"
	"github.com/lovetingyuan/bili-live/internal/cache"
	"github.com/lovetingyuan/bili-live/internal/checker"
	"github.com/lovetingyuan/bili-live/internal/monitor"
	"github.com/lovetingyuan/bili-live/internal/notifications"
	"github.com/lovetingyuan/bili-live/internal/store"
)

type fakeService struct {
	live     monitor.LiveSet
	state    checker.State
	err      error
	inspects int
	notified []string
}

func (f *fakeService) Check(context.Context) (monitor.LiveSet, error) {
	return f.live, f.err
}

func (f *fakeService) Inspect(context.Context) (checker.State, error) {
	f.inspects++
	return f.state, f.err
}

func (f *fakeService) Notify(_ context.Context, title, body string) error {
	f.notified = append(f.notified, title+"/"+body)
	return f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newHandler(svc Service, ping error) *Handler {
	return New(svc, fakePinger{err: ping}, cache.New(true), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) respond.ErrorResponse {
	t.Helper()
	var resp respond.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCheckReturnsLiveSet(t *testing.T) {
	svc := &fakeService{live: monitor.LiveSet{"1": {Name: "alice", Title: "hi", RoomID: 9}}}
	h := newHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/v1/check", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"1":{"uname":"alice","title":"hi","roomId":9}}`, rec.Body.String())
}

func TestCheckWithoutIDsReturnsNull(t *testing.T) {
	h := newHandler(&fakeService{}, nil)

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/v1/check", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestCheckErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", &bili.UpstreamError{Attempts: 3, Err: errors.New("timeout")}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"api", &bili.APIError{Code: -400, Message: "bad"}, http.StatusBadGateway, "UPSTREAM_API_ERROR"},
		{"submit", &notifications.SubmitError{Code: 40001, Message: "bad key"}, http.StatusBadGateway, "NOTIFY_SUBMIT_ERROR"},
		{"confirm", &notifications.ConfirmError{Reason: "wechat errcode 1"}, http.StatusBadGateway, "NOTIFY_CONFIRM_ERROR"},
		{"conflict", fmt.Errorf("persist: %w", store.ErrConflict), http.StatusConflict, "STATE_CONFLICT"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&fakeService{err: tt.err}, nil)

			rec := httptest.NewRecorder()
			h.Check(rec, httptest.NewRequest(http.MethodGet, "/api/v1/check", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error.Code)
		})
	}
}

func TestInspectCachesAndHonoursETag(t *testing.T) {
	svc := &fakeService{state: checker.State{
		LiveUps: monitor.LiveSet{"1": {Name: "alice", RoomID: 9}},
		UpIDs:   "1,2",
	}}
	h := newHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.Inspect(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inspect", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var st checker.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "1,2", st.UpIDs)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inspect", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	h.Inspect(rec, req)
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, 1, svc.inspects, "second request must be served from cache")

	// A check cycle drops the cached view.
	h.Check(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/check", nil))
	rec = httptest.NewRecorder()
	h.Inspect(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inspect", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, svc.inspects)
}

func TestInspectStoreFailure(t *testing.T) {
	h := newHandler(&fakeService{err: errors.New("disk gone")}, nil)

	rec := httptest.NewRecorder()
	h.Inspect(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inspect", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "STORE_ERROR", decodeError(t, rec).Error.Code)
}

func TestNotifyTestSendsFixedMessage(t *testing.T) {
	svc := &fakeService{}
	h := newHandler(svc, nil)

	rec := httptest.NewRecorder()
	h.NotifyTest(rec, httptest.NewRequest(http.MethodPost, "/api/v1/notify/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"test/success"}, svc.notified)
}

func TestHealthCheckStore(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(&fakeService{}, nil).HealthCheckStore(rec, httptest.NewRequest(http.MethodGet, "/health/store", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newHandler(&fakeService{}, errors.New("down")).HealthCheckStore(rec, httptest.NewRequest(http.MethodGet, "/health/store", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}
