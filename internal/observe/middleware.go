package observe

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// Request headers set by the zen client.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderRequestID = "X-Request-ID"
)

// maxIDLen bounds client-supplied IDs before they reach logs and spans.
const maxIDLen = 64

type requestIDsKey struct{}

// RequestIDs identifies one client submission.
type RequestIDs struct {
	// Session is the client's X-Session-ID, empty for other callers.
	Session string

	// Request is the client's X-Request-ID, or one generated by Middleware.
	Request string
}

// IDsFromContext returns the IDs stored by Middleware.
func IDsFromContext(ctx context.Context) (RequestIDs, bool) {
	ids, ok := ctx.Value(requestIDsKey{}).(RequestIDs)
	return ids, ok
}

func contextWithIDs(ctx context.Context, ids RequestIDs) context.Context {
	return context.WithValue(ctx, requestIDsKey{}, ids)
}

// clientID returns a header value usable as an ID, or "" when it is missing
// or oversized.
func clientID(v string) string {
	if len(v) == 0 || len(v) > maxIDLen {
		return ""
	}
	return v
}

// statusRecorder captures the status code written by the downstream handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets [http.ResponseController] reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Middleware traces, times and logs every request.
//
// The span continues any W3C trace context in the request and carries the
// client's session and request IDs. The request ID is echoed in X-Request-ID
// (generated when the client sent none) and the trace ID in
// X-Correlation-ID. Durations are labelled with the matched
// [http.ServeMux] pattern, so /api/voice-turn is one series however the
// client spells the path. Server errors mark the span and log at warn.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ids := RequestIDs{
				Session: clientID(r.Header.Get(HeaderSessionID)),
				Request: clientID(r.Header.Get(HeaderRequestID)),
			}
			if ids.Request == "" {
				ids.Request = uuid.NewString()
			}

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				attribute.String("zen.request_id", ids.Request),
			}
			if ids.Session != "" {
				attrs = append(attrs, attribute.String("zen.session_id", ids.Session))
			}
			ctx, span := StartSpan(ctx, "HTTP "+r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()
			ctx = contextWithIDs(ctx, ids)

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			w.Header().Set(HeaderRequestID, ids.Request)
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			r = r.WithContext(ctx)
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			// ServeMux sets r.Pattern while routing.
			duration := time.Since(start)
			route := r.Pattern
			if route == "" {
				route = r.URL.Path
			}
			m.HTTPRequestDuration.Record(ctx, duration.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("path", route),
				),
			)

			span.SetAttributes(semconv.HTTPResponseStatusCode(rec.statusCode))
			if rec.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rec.statusCode))
			}

			level := slog.LevelInfo
			if rec.statusCode >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			Logger(ctx).LogAttrs(ctx, level, "request completed",
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", rec.statusCode),
				slog.Duration("duration", duration),
			)
		})
	}
}
