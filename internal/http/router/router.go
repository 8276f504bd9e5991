// Package router monta las rutas del servicio sobre chi.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	httpx "github.com/dropDatabas3/dearjane/internal/http"
	oauthctrl "github.com/dropDatabas3/dearjane/internal/http/controllers/oauth"
	oidcctrl "github.com/dropDatabas3/dearjane/internal/http/controllers/oidc"
	sessionctrl "github.com/dropDatabas3/dearjane/internal/http/controllers/session"
	mw "github.com/dropDatabas3/dearjane/internal/http/middlewares"
	"github.com/dropDatabas3/dearjane/internal/rate"
)

// Deps contiene los controllers y limiters del router.
type Deps struct {
	Token      *oauthctrl.TokenController
	Authorize  *oauthctrl.AuthorizeController
	EndSession *oauthctrl.EndSessionController
	UserInfo   *oidcctrl.UserInfoController
	Discovery  *oidcctrl.DiscoveryController
	Login      *sessionctrl.LoginController

	TokenLimiter     rate.Limiter // opcional
	AuthorizeLimiter rate.Limiter // opcional

	Metrics http.Handler // opcional: handler de /metrics
	Health  http.HandlerFunc
}

// New arma el router completo del servicio.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Endpoints del protocolo: no-store obligatorio.
	r.Handle("/connect/token", protocol("/connect/token",
		http.HandlerFunc(d.Token.Token), d.TokenLimiter))
	r.Handle("/connect/authorize", protocol("/connect/authorize",
		http.HandlerFunc(d.Authorize.Authorize), d.AuthorizeLimiter))
	r.Handle("/connect/authorize/decision", protocol("/connect/authorize/decision",
		http.HandlerFunc(d.Authorize.Decide), d.AuthorizeLimiter))
	r.Handle("/connect/endsession", protocol("/connect/endsession",
		http.HandlerFunc(d.EndSession.EndSession), nil))
	r.Handle("/connect/userinfo", protocol("/connect/userinfo",
		http.HandlerFunc(d.UserInfo.UserInfo), nil))

	// Documentos públicos cacheables.
	r.Handle("/.well-known/openid-configuration", public("/.well-known/openid-configuration",
		http.HandlerFunc(d.Discovery.Discovery)))
	r.Handle("/.well-known/jwks.json", public("/.well-known/jwks.json",
		http.HandlerFunc(d.Discovery.JWKS)))

	// UI interna de login/consent.
	r.Get("/login", wrapUI("/login", d.Login.LoginForm))
	r.Post("/login", wrapUI("/login", d.Login.Login))
	r.Get("/consent", wrapUI("/consent", d.Login.ConsentForm))

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.Health != nil {
		r.Get("/healthz", d.Health)
	}

	return r
}

// protocol arma la chain de los endpoints OAuth/OIDC.
func protocol(pattern string, h http.Handler, limiter rate.Limiter) http.Handler {
	return mw.Chain(h,
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithNoStore(),
		mw.WithRateLimit(limiter, pattern),
		withMetrics(pattern),
		mw.WithLogging(),
	)
}

// public arma la chain de los documentos discovery/JWKS (cacheables).
func public(pattern string, h http.Handler) http.Handler {
	return mw.Chain(h,
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		withMetrics(pattern),
		mw.WithLogging(),
	)
}

func wrapUI(pattern string, hf http.HandlerFunc) http.HandlerFunc {
	h := mw.Chain(hf,
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithSecurityHeaders(),
		mw.WithNoStore(),
		withMetrics(pattern),
		mw.WithLogging(),
	)
	return h.ServeHTTP
}

// withMetrics registra la request con el patrón de ruta fijo.
func withMetrics(pattern string) mw.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			httpx.ObserveRequest(r.Method, pattern, rec.status, time.Since(start))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
