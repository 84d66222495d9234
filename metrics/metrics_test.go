package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	_, m := NewRegistry()

	m.RecordTransition("EMAIL", "APPROVED")
	m.RecordTransition("EMAIL", "APPROVED")
	m.RecordExecution("EMAIL", "success", 10*time.Millisecond)
	m.RecordQueue(2, 1, 3)
	m.RecordCheck("gmail", "healthy", time.Millisecond)
	m.RecordRestart("gmail", "started")
	m.SetRunning("gmail", true)
	m.RecordStep("COMPLETED")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ApprovalTransitions.WithLabelValues("EMAIL", "APPROVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ApprovalExecutions.WithLabelValues("EMAIL", "success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ApprovalQueueRuns.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WatcherRestarts.WithLabelValues("gmail", "started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WatcherUp.WithLabelValues("gmail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PlanStepTransitions.WithLabelValues("COMPLETED")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("EMAIL", "APPROVED")
		m.RecordExecution("EMAIL", "success", time.Second)
		m.RecordQueue(1, 1, 1)
		m.RecordCheck("w", "healthy", time.Second)
		m.RecordRestart("w", "started")
		m.SetRunning("w", false)
		m.RecordStep("FAILED")
	})
}

func TestHandlerFor(t *testing.T) {
	reg, m := NewRegistry()
	m.RecordRestart("gmail", "failed")

	recorder := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, strings.Contains(recorder.Body.String(), "fluxgate_watcher_restarts_total"))
}
