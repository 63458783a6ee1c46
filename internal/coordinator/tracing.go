package coordinator

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer emits spans around the coordinator's RPC calls to each worker. It
// defaults to the global no-op provider; EnableTracing installs a real SDK
// provider for runs started with tracing on.
var tracer trace.Tracer = otel.Tracer("github.com/loadvane/corrida/internal/coordinator")

// EnableTracing installs an SDK tracer provider as the process-wide
// default and returns its Shutdown func, which callers must invoke when
// the run ends to flush any pending processors. Spans are always recorded
// once installed, independent of whether an exporter is attached downstream.
func EnableTracing() func(context.Context) error {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer("github.com/loadvane/corrida/internal/coordinator")
	return tp.Shutdown
}
