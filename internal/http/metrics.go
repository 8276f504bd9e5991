// Package http agrupa la capa HTTP: métricas, router, middlewares,
// controllers y services.
package http

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	tokensIssuedTotal   *prometheus.CounterVec
)

// RegisterMetrics inicializa las métricas y devuelve el handler para /metrics.
func RegisterMetrics(registry prometheus.Registerer) http.Handler {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		tokensIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oauth_tokens_issued_total",
			Help: "Tokens emitidos por grant type",
		}, []string{"grant_type"})

		registry.MustRegister(httpRequestsTotal, httpRequestDuration, tokensIssuedTotal)
	})

	if g, ok := registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// ObserveRequest registra una request terminada. La llama el router con el
// patrón de ruta (no el path crudo) para mantener la cardinalidad acotada.
func ObserveRequest(method, routePattern string, status int, dur time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, routePattern, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, routePattern).Observe(dur.Seconds())
}

// CountTokenIssued registra un token emitido.
func CountTokenIssued(grantType string) {
	if tokensIssuedTotal == nil {
		return
	}
	tokensIssuedTotal.WithLabelValues(grantType).Inc()
}
