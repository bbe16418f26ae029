// Package metrics holds the Prometheus collectors for the registration
// workflow and the HTTP layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is nil-safe: every method is a no-op on a nil receiver.
type Metrics struct {
	DraftsSaved       prometheus.Counter
	Uploads           *prometheus.CounterVec
	Submissions       *prometheus.CounterVec
	RenderDuration    *prometheus.HistogramVec
	SequenceAllocated prometheus.Counter
	RequestLatency    *prometheus.HistogramVec
}

// New registers collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DraftsSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "eventpass_drafts_saved_total",
			Help: "Total number of draft saves",
		}),
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_photo_uploads_total",
			Help: "Photo uploads by outcome",
		}, []string{"outcome"}), // outcome: "ok", "rejected", "failed"
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "eventpass_submissions_total",
			Help: "Submission attempts by outcome",
		}, []string{"outcome"}), // outcome: "locked", "declined", "incomplete", "failed"
		RenderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventpass_render_duration_seconds",
			Help:    "Duration of pass rendering by output format",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"format"}),
		SequenceAllocated: f.NewCounter(prometheus.CounterOpts{
			Name: "eventpass_sequence_allocated_total",
			Help: "Sequence numbers handed out, including abandoned ones",
		}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventpass_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncrementDraftsSaved() {
	if m != nil {
		m.DraftsSaved.Inc()
	}
}

func (m *Metrics) IncrementUpload(outcome string) {
	if m != nil {
		m.Uploads.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementSequenceAllocated() {
	if m != nil {
		m.SequenceAllocated.Inc()
	}
}

func (m *Metrics) ObserveRender(format string, d time.Duration) {
	if m != nil {
		m.RenderDuration.WithLabelValues(format).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
	}
}
