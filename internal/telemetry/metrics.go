package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RefreshMetricsMeterName is the name of the meter holding refresh metrics
const RefreshMetricsMeterName = "github.com/stacklok/syncstate/refresh"

// RefreshMetrics holds the instruments recorded around subscriber refreshes
type RefreshMetrics struct {
	duration     metric.Float64Histogram
	changedNodes metric.Int64Counter
	failedRoots  metric.Int64Counter
}

// NewRefreshMetrics creates the refresh instruments. A nil provider yields nil
// metrics, and every Record method is a no-op on nil.
func NewRefreshMetrics(provider metric.MeterProvider) (*RefreshMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RefreshMetricsMeterName)

	duration, err := meter.Float64Histogram(
		"syncstate_refresh_duration_seconds",
		metric.WithDescription("Duration of subscriber refreshes in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	changedNodes, err := meter.Int64Counter(
		"syncstate_refresh_changed_nodes_total",
		metric.WithDescription("Number of nodes reported changed by refreshes"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, err
	}

	failedRoots, err := meter.Int64Counter(
		"syncstate_refresh_failed_roots_total",
		metric.WithDescription("Number of refresh roots whose backend request failed"),
		metric.WithUnit("{root}"),
	)
	if err != nil {
		return nil, err
	}

	return &RefreshMetrics{
		duration:     duration,
		changedNodes: changedNodes,
		failedRoots:  failedRoots,
	}, nil
}

// RecordRefresh records one finished refresh of a subscriber
func (m *RefreshMetrics) RecordRefresh(
	ctx context.Context,
	subscriberID string,
	duration time.Duration,
	changed, failedRoots int,
) {
	if m == nil {
		return
	}

	success := failedRoots == 0
	attrs := metric.WithAttributes(
		attribute.String("subscriber", subscriberID),
		attribute.Bool("success", success),
	)
	m.duration.Record(ctx, duration.Seconds(), attrs)

	subscriber := metric.WithAttributes(attribute.String("subscriber", subscriberID))
	if changed > 0 {
		m.changedNodes.Add(ctx, int64(changed), subscriber)
	}
	if failedRoots > 0 {
		m.failedRoots.Add(ctx, int64(failedRoots), subscriber)
	}
}
