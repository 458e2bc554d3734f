package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

func TestExporter_ExportMetrics_RecordsCountAndP95(t *testing.T) {
	exporter := NewExporter()
	requestType := "export_test_type"

	initial := testutil.ToFloat64(TrackedExecutionsTotal.WithLabelValues(requestType))

	err := exporter.ExportMetrics(context.Background(), models.ExecutionMetrics{
		RequestType:          requestType,
		TotalExecutions:      7,
		SuccessfulExecutions: 7,
		P95ExecutionTime:     250 * time.Millisecond,
	})
	require.NoError(t, err)

	after := testutil.ToFloat64(TrackedExecutionsTotal.WithLabelValues(requestType))
	assert.Equal(t, initial+7.0, after)
	assert.InDelta(t, 0.25, testutil.ToFloat64(TrackedP95Seconds.WithLabelValues(requestType)), 1e-9)
}

func TestExporter_ExportMetrics_ZeroP95DoesNotOverwriteGauge(t *testing.T) {
	exporter := NewExporter()
	requestType := "export_test_zero_p95"

	require.NoError(t, exporter.ExportMetrics(context.Background(), models.ExecutionMetrics{
		RequestType:      requestType,
		TotalExecutions:  1,
		P95ExecutionTime: 100 * time.Millisecond,
	}))
	require.NoError(t, exporter.ExportMetrics(context.Background(), models.ExecutionMetrics{
		RequestType:     requestType,
		TotalExecutions: 1,
	}))

	assert.InDelta(t, 0.1, testutil.ToFloat64(TrackedP95Seconds.WithLabelValues(requestType)), 1e-9)
}
