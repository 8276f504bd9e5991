package middlewares

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	"github.com/dropDatabas3/dearjane/internal/rate"
)

// WithRateLimit limita requests por IP usando el limiter dado. Un limiter nil
// desactiva el middleware (modo dev).
func WithRateLimit(l rate.Limiter, name string) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := name + ":" + clientIP(r)
			res, err := l.Allow(r.Context(), key)
			if err != nil {
				// fail-open: un limiter caído no debe tumbar el login
				logger.From(r.Context()).Warn("rate limiter unavailable", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"slow_down","error_description":"Too many requests."}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
