package telemetry

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InitTracing installs an in-process tracer provider as the global one.
// There is no OTLP exporter wired up: spans are recorded and sampled but
// never shipped anywhere, which is enough to exercise request-scoped
// tracing context without requiring a collector endpoint.
func InitTracing() func(context.Context) error {
	tp := trace.NewTracerProvider(trace.WithSampler(trace.AlwaysSample()))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

var tracer = otel.Tracer("github.com/flagshipsdk/flagship-go/internal/api")

// Tracing wraps each request in a span named after the matched chi route
// pattern, falling back to the raw path before routing resolves it.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), spanName(r))
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func spanName(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return r.Method + " " + rc.RoutePattern()
	}
	return r.Method + " " + r.URL.Path
}

// SpanFromContext exposes the active span for handlers that want to attach
// attributes or record an error.
func SpanFromContext(ctx context.Context) oteltrace.Span {
	return oteltrace.SpanFromContext(ctx)
}
