package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		if scope.Scope.Name != RefreshMetricsMeterName {
			continue
		}
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewRefreshMetrics(t *testing.T) {
	t.Parallel()

	t.Run("returns nil when provider is nil", func(t *testing.T) {
		t.Parallel()

		metrics, err := NewRefreshMetrics(nil)
		require.NoError(t, err)
		assert.Nil(t, metrics)
	})

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		t.Parallel()

		var metrics *RefreshMetrics
		metrics.RecordRefresh(context.Background(), "workspace", time.Second, 3, 1)
	})
}

func TestRefreshMetrics_RecordRefresh(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := NewRefreshMetrics(mp)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	ctx := context.Background()
	metrics.RecordRefresh(ctx, "workspace", 200*time.Millisecond, 4, 0)
	metrics.RecordRefresh(ctx, "workspace", 2*time.Second, 1, 2)
	metrics.RecordRefresh(ctx, "compare-v1", time.Second, 0, 0)

	got := collect(t, reader)

	duration, ok := got["syncstate_refresh_duration_seconds"]
	require.True(t, ok)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total uint64
	for _, dp := range hist.DataPoints {
		total += dp.Count
		_, hasSuccess := dp.Attributes.Value(attribute.Key("success"))
		assert.True(t, hasSuccess)
	}
	assert.Equal(t, uint64(3), total)
	assert.Len(t, hist.DataPoints, 3)

	changed, ok := got["syncstate_refresh_changed_nodes_total"]
	require.True(t, ok)
	sum, ok := changed.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)

	failed, ok := got["syncstate_refresh_failed_roots_total"]
	require.True(t, ok)
	failedSum, ok := failed.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failedSum.DataPoints, 1)
	assert.Equal(t, int64(2), failedSum.DataPoints[0].Value)
}
