package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/marketplace/pkg/logger"
)

// RequestLogger stores a logger enriched with correlation_id, user_id,
// trace_id and span_id in the request context; handlers and services fetch
// it with logger.FromContext.
//
// Mount after RequestLogging and Tracing. Routes behind Auth get the user id
// only when this runs after Auth, so the router mounts it again there.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := UserIDFromContext(ctx); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
