package oidc

import (
	"encoding/json"
	"net/http"

	svc "github.com/dropDatabas3/dearjane/internal/http/services/oidc"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
)

// DiscoveryController handles the OIDC discovery and JWKS documents.
type DiscoveryController struct {
	issuer *jwtx.Issuer
}

// NewDiscoveryController creates the controller.
func NewDiscoveryController(issuer *jwtx.Issuer) *DiscoveryController {
	return &DiscoveryController{issuer: issuer}
}

// Discovery handles GET /.well-known/openid-configuration.
func (c *DiscoveryController) Discovery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_ = json.NewEncoder(w).Encode(svc.Discovery(c.issuer.Iss))
}

// JWKS handles GET /.well-known/jwks.json.
func (c *DiscoveryController) JWKS(w http.ResponseWriter, r *http.Request) {
	doc, err := c.issuer.JWKSJSON()
	if err != nil {
		logger.From(r.Context()).Error("failed to build jwks", logger.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(doc)
}
