package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type Metrics struct {
	HTTPRequests       metric.Int64Counter
	HTTPDuration       metric.Float64Histogram
	GenerationCalls    metric.Int64Counter
	GenerationDuration metric.Float64Histogram
	RegenerationBusy   metric.Int64Counter
	StaleDiscards      metric.Int64Counter
	DraftSessions      metric.Int64UpDownCounter
	ActiveConnections  metric.Int64UpDownCounter
}

func Setup(serviceName string) (*Metrics, http.Handler, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"cg_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"cg_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.GenerationCalls, err = meter.Int64Counter(
		"cg_generation_calls_total",
		metric.WithDescription("Total number of calls to the generation service"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram(
		"cg_generation_duration_seconds",
		metric.WithDescription("Generation service call duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RegenerationBusy, err = meter.Int64Counter(
		"cg_regeneration_busy_total",
		metric.WithDescription("Regeneration requests rejected because one was already in flight"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.StaleDiscards, err = meter.Int64Counter(
		"cg_stale_responses_discarded_total",
		metric.WithDescription("Generation responses discarded because a newer request superseded them"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.DraftSessions, err = meter.Int64UpDownCounter(
		"cg_draft_sessions",
		metric.WithDescription("Number of live draft editing sessions"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"cg_websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.Handler()
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordGenerationCall(ctx context.Context, kind string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	labels := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)

	m.GenerationCalls.Add(ctx, 1, labels)
	m.GenerationDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordBusyRejection(ctx context.Context, op string) {
	m.RegenerationBusy.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) RecordStaleDiscard(ctx context.Context, op string) {
	m.StaleDiscards.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *Metrics) IncrementSessions(ctx context.Context) {
	m.DraftSessions.Add(ctx, 1)
}

func (m *Metrics) DecrementSessions(ctx context.Context) {
	m.DraftSessions.Add(ctx, -1)
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	m.ActiveConnections.Add(ctx, -1)
}
