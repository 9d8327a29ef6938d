package observability

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Tracing manages a stdout-exporting OpenTelemetry trace provider for the
// Detection Pipeline. Vigil ships no OTLP collector integration — stdout
// tracing is for local operators to see span timing without standing up
// a collector, matching the "none configured" default of a span exporter
// whose destination is the operator's own log pipeline.
type Tracing struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// NewTracing builds a trace provider that writes spans to stdout when
// enabled is true. When false, Tracing still returns a valid no-op tracer
// so callers never need a nil check.
func NewTracing(enabled bool) (*Tracing, error) {
	if !enabled {
		return &Tracing{tracer: otel.Tracer("vigil")}, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)

	return &Tracing{tracer: tp.Tracer("vigil"), provider: tp}, nil
}

// Shutdown flushes and stops the trace provider, a no-op when tracing is disabled.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Wrap starts one span per inbound request, named "pipeline.ServeHTTP" with
// the request method and path as attributes, and records the status the
// pipeline wrote (a block's 403 or the relayed upstream status) as a span
// attribute.
func (t *Tracing) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := t.tracer.Start(r.Context(), "pipeline.ServeHTTP")
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))
		span.SetAttributes(attribute.Int("http.response.status_code", sw.status))
	})
}
