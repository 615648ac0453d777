// Package metrics exposes check-cycle counters and gauges to Prometheus.
//
// A nil *Recorder is valid and records nothing, so components never need to
// guard their calls.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bililive"

// Recorder holds every metric the service reports.
type Recorder struct {
	reg              *prom.Registry
	cycles           *prom.CounterVec
	cycleDuration    prom.Histogram
	upstreamAttempts *prom.CounterVec
	liveStreamers    prom.Gauge
	notifications    *prom.CounterVec
	events           *prom.CounterVec
}

// NewRecorder constructs and registers metrics on reg, creating a fresh
// registry with process and Go collectors when reg is nil.
func NewRecorder(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		reg: reg,
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Check cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a check cycle, including backoff and settle delays",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		upstreamAttempts: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream status fetch attempts by result",
		}, []string{"result"}),
		liveStreamers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "live_streamers",
			Help:      "Streamers live as of the last successful cycle",
		}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Push notifications by result",
		}, []string{"result"}),
		events: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Transition events published by result",
		}, []string{"result"}),
	}
	reg.MustRegister(r.cycles, r.cycleDuration, r.upstreamAttempts, r.liveStreamers, r.notifications, r.events)
	return r
}

// Registry returns the registry metrics are registered on.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Cycle records the outcome and duration of one check cycle.
func (r *Recorder) Cycle(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(outcome).Inc()
	r.cycleDuration.Observe(d.Seconds())
}

// UpstreamAttempt records one fetch attempt result.
func (r *Recorder) UpstreamAttempt(result string) {
	if r == nil {
		return
	}
	r.upstreamAttempts.WithLabelValues(result).Inc()
}

// LiveStreamers sets the current live count.
func (r *Recorder) LiveStreamers(n int) {
	if r == nil {
		return
	}
	r.liveStreamers.Set(float64(n))
}

// Notification records a push notification result.
func (r *Recorder) Notification(result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(result).Inc()
}

// EventPublished records a transition event publish result.
func (r *Recorder) EventPublished(result string) {
	if r == nil {
		return
	}
	r.events.WithLabelValues(result).Inc()
}
