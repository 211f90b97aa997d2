package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/nftmart/internal/domain"
)

// RateLimit returns middleware that applies per-client rate limiting using the
// provided domain.RateLimiter. Each client IP gets `limit` reads and `limit`
// writes per `window`, counted separately so polling does not starve
// trading. Limiter errors fail open.
func RateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	limitHeader := strconv.Itoa(limit)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "api:" + bucketOf(r) + ":" + extractClientIP(r)
			w.Header().Set("X-RateLimit-Limit", limitHeader)

			allowed, err := limiter.Allow(r.Context(), key, limit, window)
			if err != nil {
				logger.WarnContext(r.Context(), "ratelimit: limiter unavailable",
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(window/time.Second))))
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bucketOf(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "read"
	}
	return "write"
}

// extractClientIP attempts to determine the real client IP from standard
// proxy headers, falling back to the direct remote address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
