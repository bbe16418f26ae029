package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCounters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementDraftsSaved()
	m.IncrementDraftsSaved()
	m.IncrementSubmission("locked")
	m.IncrementUpload("rejected")
	m.ObserveRender("pdf", 200*time.Millisecond)

	assert.Equal(t, 2.0, counterValue(t, m.DraftsSaved))
	assert.Equal(t, 1.0, counterValue(t, m.Submissions.WithLabelValues("locked")))
	assert.Equal(t, 0.0, counterValue(t, m.Submissions.WithLabelValues("declined")))
	assert.Equal(t, 1.0, counterValue(t, m.Uploads.WithLabelValues("rejected")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDraftsSaved()
		m.IncrementUpload("ok")
		m.IncrementSubmission("locked")
		m.IncrementSequenceAllocated()
		m.ObserveRender("html", time.Second)
		m.ObserveRequest("/registration", "200", time.Millisecond)
	})
}
