package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/catalog-search/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, operation, trace_id and span_id. Mount it after
// RequestLogging and Tracing so those fields are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Operation tags every request passing through with a catalog operation name
// so that logs emitted below carry it.
func Operation(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithOperation(r.Context(), name)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("operation", name)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
