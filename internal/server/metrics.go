package server

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type serverMetrics struct {
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
	sessions metric.Int64UpDownCounter
}

func newServerMetrics() *serverMetrics {
	meter := otel.Meter("github.com/voicemark/sidecar/server")
	m := &serverMetrics{}
	m.calls, _ = meter.Int64Counter("voicemark.transcription.calls",
		metric.WithDescription("Completed transcription engine calls"))
	m.errors, _ = meter.Int64Counter("voicemark.transcription.errors",
		metric.WithDescription("Failed transcription engine calls"))
	m.duration, _ = meter.Float64Histogram("voicemark.transcription.duration",
		metric.WithDescription("Transcription engine call duration"),
		metric.WithUnit("s"))
	m.sessions, _ = meter.Int64UpDownCounter("voicemark.stream.sessions",
		metric.WithDescription("Active streaming sessions"))
	return m
}

func (m *serverMetrics) recordCall(ctx context.Context, kind string, elapsed time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	if failed {
		m.errors.Add(ctx, 1, attrs)
	}
}

func (m *serverMetrics) sessionStarted(ctx context.Context) {
	if m != nil {
		m.sessions.Add(ctx, 1)
	}
}

func (m *serverMetrics) sessionEnded(ctx context.Context) {
	if m != nil {
		m.sessions.Add(ctx, -1)
	}
}
