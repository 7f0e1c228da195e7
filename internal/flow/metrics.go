package flow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	invocations metric.Int64Counter
	duration    metric.Float64Histogram
}

func newMetrics(meter metric.Meter) *metrics {
	m := &metrics{}
	// Instrument creation only fails on invalid names; a nil instrument
	// falls back to a no-op below.
	m.invocations, _ = meter.Int64Counter("fleet.flow.invocations",
		metric.WithDescription("Flow invocations by outcome"))
	m.duration, _ = meter.Float64Histogram("fleet.flow.duration",
		metric.WithDescription("Flow invocation duration"),
		metric.WithUnit("s"))
	return m
}

func (m *metrics) record(ctx context.Context, inv *Invocation) {
	outcome := "succeeded"
	if kind := KindOf(inv.Err); kind != "" {
		outcome = string(kind)
	}
	attrs := metric.WithAttributes(
		attribute.String("flow", inv.Flow),
		attribute.String("outcome", outcome),
	)
	if m.invocations != nil {
		m.invocations.Add(ctx, 1, attrs)
	}
	if m.duration != nil {
		m.duration.Record(ctx, inv.Duration().Seconds(), attrs)
	}
}
