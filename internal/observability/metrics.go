// Package observability provides metrics for the job-control client.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds all client metrics:
// - Latency: control operation round-trip time
// - Traffic: operations and heartbeats
// - Errors: dispatch and heartbeat failures
// - Saturation: channels currently held open
type Metrics struct {
	meter metric.Meter

	// Channel lifecycle (Traffic, Saturation)
	ChannelAcquisitions metric.Int64Counter
	ChannelReleases     metric.Int64Counter
	ChannelsActive      metric.Int64UpDownCounter

	// Control operations (Latency, Errors)
	OperationDuration metric.Float64Histogram
	DispatchErrors    metric.Int64Counter
	StreamingEntered  metric.Int64Counter

	// Heartbeat reporter (Traffic, Errors)
	HeartbeatsSent    metric.Int64Counter
	HeartbeatFailures metric.Int64Counter
	HeartbeatsSkipped metric.Int64Counter
}

// NewMetrics creates and registers all metrics with a Prometheus exporter.
func NewMetrics(ctx context.Context) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter("jobclient")
	m := &Metrics{meter: meter}

	m.ChannelAcquisitions, err = meter.Int64Counter(
		"control_channel_acquisitions_total",
		metric.WithDescription("Total control channels acquired from the provider"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ChannelReleases, err = meter.Int64Counter(
		"control_channel_releases_total",
		metric.WithDescription("Total control channels released"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ChannelsActive, err = meter.Int64UpDownCounter(
		"control_channels_active",
		metric.WithDescription("Control channels currently held open (saturation)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.OperationDuration, err = meter.Float64Histogram(
		"control_operation_duration_seconds",
		metric.WithDescription("Control operation latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DispatchErrors, err = meter.Int64Counter(
		"control_dispatch_errors_total",
		metric.WithDescription("Total control operations that failed"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StreamingEntered, err = meter.Int64Counter(
		"streaming_mode_entered_total",
		metric.WithDescription("Total clients that latched into streaming-query mode"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HeartbeatsSent, err = meter.Int64Counter(
		"heartbeats_sent_total",
		metric.WithDescription("Total client heartbeats reported"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HeartbeatFailures, err = meter.Int64Counter(
		"heartbeat_failures_total",
		metric.WithDescription("Total heartbeats that failed after retries"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HeartbeatsSkipped, err = meter.Int64Counter(
		"heartbeats_skipped_total",
		metric.WithDescription("Total heartbeats skipped because the circuit was open"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.Handler(), nil
}

// RecordChannelAcquired records one channel being handed out.
func (m *Metrics) RecordChannelAcquired(ctx context.Context) {
	m.ChannelAcquisitions.Add(ctx, 1)
	m.ChannelsActive.Add(ctx, 1)
}

// RecordChannelReleased records one channel being given back.
func (m *Metrics) RecordChannelReleased(ctx context.Context) {
	m.ChannelReleases.Add(ctx, 1)
	m.ChannelsActive.Add(ctx, -1)
}

// RecordDispatchError records a failed control operation.
func (m *Metrics) RecordDispatchError(ctx context.Context, op string) {
	m.DispatchErrors.Add(ctx, 1, metric.WithAttributes(opAttr(op)))
}

// RecordOperation records a settled control operation with its
// duration, tagged by operation and outcome.
func (m *Metrics) RecordOperation(ctx context.Context, op string, success bool, durationSeconds float64) {
	m.OperationDuration.Record(ctx, durationSeconds,
		metric.WithAttributes(opAttr(op), successAttr(success)))
}

// RecordStreamingModeEntered records a client latching into
// streaming-query mode.
func (m *Metrics) RecordStreamingModeEntered(ctx context.Context) {
	m.StreamingEntered.Add(ctx, 1)
}

// RecordHeartbeatSent records a successful heartbeat report.
func (m *Metrics) RecordHeartbeatSent(ctx context.Context) {
	m.HeartbeatsSent.Add(ctx, 1)
}

// RecordHeartbeatFailed records a heartbeat that failed after retries.
func (m *Metrics) RecordHeartbeatFailed(ctx context.Context) {
	m.HeartbeatFailures.Add(ctx, 1)
}

// RecordHeartbeatSkipped records a heartbeat skipped by an open circuit.
func (m *Metrics) RecordHeartbeatSkipped(ctx context.Context) {
	m.HeartbeatsSkipped.Add(ctx, 1)
}
