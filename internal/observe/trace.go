package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the zen tracer.
const tracerName = "github.com/sanduabey/zen"

// Tracer returns the package-level [trace.Tracer]. It uses the globally
// registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID extracts the trace ID from the OTel span context in ctx. The
// trace ID doubles as the X-Correlation-ID returned to clients.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger enriched with what ctx knows about the
// request: trace_id and span_id from the active span, and session_id and
// request_id stored by [Middleware].
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if ids, ok := IDsFromContext(ctx); ok {
		if ids.Session != "" {
			l = l.With(slog.String("session_id", ids.Session))
		}
		l = l.With(slog.String("request_id", ids.Request))
	}
	return l
}

// StageSpan starts a span for one pipeline stage. The returned end function
// records err on the span (if non-nil) and ends it.
func StageSpan(ctx context.Context, stage, provider string) (context.Context, func(err error)) {
	ctx, span := StartSpan(ctx, "voiceturn."+stage,
		trace.WithAttributes(Attr("zen.stage", stage), Attr("zen.provider", provider)),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
