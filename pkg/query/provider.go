package query

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewTracerProvider builds an SDK tracer provider sampling every span at
// ratio (1.0 = always-on, matching the teacher's development default),
// trimmed from its OpenTelemetryAdapter.Start: this module stops at
// handing a caller a configured provider and leaves exporter wiring
// (Jaeger, OTLP, stdout) to the embedding process, since no exporter
// dependency is carried here (see DESIGN.md's dropped-dependencies list).
func NewTracerProvider(ratio float64) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(ratio)),
	)
}
