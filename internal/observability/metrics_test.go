package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRunAndTools(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.runTotal.WithLabelValues("completed"))

	RecordRun("completed", 150*time.Millisecond, 2)
	assert.Equal(t, before+1, testutil.ToFloat64(m.runTotal.WithLabelValues("completed")))

	errorsBefore := testutil.ToFloat64(m.toolErrorsTotal.WithLabelValues("metrics_test_tool"))
	RecordToolExecution("metrics_test_tool", time.Millisecond, true)
	RecordToolExecution("metrics_test_tool", time.Millisecond, false)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("metrics_test_tool", "success")))
	assert.Equal(t, errorsBefore+1, testutil.ToFloat64(m.toolErrorsTotal.WithLabelValues("metrics_test_tool")))
}

func TestQueueGauges(t *testing.T) {
	m := getMetrics()

	RecordQueueEnqueue("metrics-lane", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueSize.WithLabelValues("metrics-lane")))

	RecordQueueCompletion("metrics-lane", 10*time.Millisecond, "completed", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueSize.WithLabelValues("metrics-lane")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dequeueTotal.WithLabelValues("metrics-lane", "completed")))

	SetQueueSize("metrics-lane", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.queueSize.WithLabelValues("metrics-lane")))
}

func TestCompactionAndCooldown(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.compactionTotal.WithLabelValues("truncate", "overflow"))
	RecordCompaction("truncate", "overflow")
	assert.Equal(t, before+1, testutil.ToFloat64(m.compactionTotal.WithLabelValues("truncate", "overflow")))

	SetProviderCooldown("metrics-provider", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerCooldown.WithLabelValues("metrics-provider")))
	SetProviderCooldown("metrics-provider", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.providerCooldown.WithLabelValues("metrics-provider")))
}

func TestMetricsHandler(t *testing.T) {
	RecordOverflowRetry()
	RecordHookFailure("after_tool_call")

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "agentcore_overflow_retry_total")
	assert.Contains(t, string(body), "agentcore_hook_failures_total")
}
