package middleware

import (
	"net/http"
	"time"

	"github.com/zatekoja/locationhierarchy/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ObservabilityMiddleware traces each request and records request metrics.
// The span is renamed to the matched route once the mux has run, and location
// routes carry the requested location id.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := observability.StartSpan(r.Context(), r.Method+" "+r.URL.Path)
			defer span.End()

			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.user_agent", r.UserAgent()),
			)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			routed := r.WithContext(ctx)
			start := time.Now()

			next.ServeHTTP(rw, routed)

			// ServeMux records the pattern on the request it was handed
			route := routed.Pattern
			if route == "" {
				route = r.URL.Path
			}
			span.SetName(route)

			attrs := []attribute.KeyValue{
				attribute.String("http.route", route),
				attribute.Int("http.status_code", rw.statusCode),
			}
			if id := routed.PathValue("id"); id != "" {
				attrs = append(attrs, attribute.String("location.id", id))
			}
			if userID := r.Header.Get(userIDHeader); userID != "" {
				attrs = append(attrs, attribute.String("location.user_id", userID))
			}
			observability.SetSpanAttributes(span, attrs...)

			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}

const userIDHeader = "X-User-ID"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}
