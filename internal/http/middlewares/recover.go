package middlewares

import (
	"net/http"
	"runtime/debug"

	"github.com/dropDatabas3/dearjane/internal/observability/logger"
)

// WithRecover atrapa panics del handler, los loguea con stack y responde 500.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Any("panic", rec),
						logger.String("stack", string(debug.Stack())),
					)
					http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
