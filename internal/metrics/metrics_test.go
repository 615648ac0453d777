package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prom.NewRegistry())

	r.Cycle("ok", 2*time.Second)
	r.Cycle("ok", time.Second)
	r.Cycle("error", time.Second)
	r.UpstreamAttempt("retry")
	r.LiveStreamers(3)
	r.Notification("sent")
	r.EventPublished("failed")

	assert.InDelta(t, 2, testutil.ToFloat64(r.cycles.WithLabelValues("ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.cycles.WithLabelValues("error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.upstreamAttempts.WithLabelValues("retry")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(r.liveStreamers), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.notifications.WithLabelValues("sent")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.events.WithLabelValues("failed")), 0)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.Cycle("ok", time.Second)
		r.UpstreamAttempt("ok")
		r.LiveStreamers(1)
		r.Notification("sent")
		r.EventPublished("ok")
	})
	assert.Nil(t, r.Registry())
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRecorder(nil)
	r.LiveStreamers(2)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bililive_live_streamers 2")
}
