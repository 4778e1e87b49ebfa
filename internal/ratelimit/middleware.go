package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"civreg/pkg/requestcontext"
)

// Middleware enforces the per-caller request budget. Keys on the
// authenticated user when present, otherwise the client IP, so apply it
// after authentication and metadata middleware. A failing store fails open:
// availability of the registration API wins over strict enforcement.
func Middleware(store Store, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := requestcontext.Caller(ctx).UserID
			if key == "" {
				key = requestcontext.ClientIP(ctx)
			}
			if key == "" {
				key = r.RemoteAddr
			}

			result, err := store.Allow(ctx, key, limit, window)
			if err != nil {
				logger.ErrorContext(ctx, "rate limit check failed, allowing request",
					"key", key,
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate_limited","message":"too many requests"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
