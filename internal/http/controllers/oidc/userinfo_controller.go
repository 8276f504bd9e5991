// Package oidc - controllers de userinfo, discovery y JWKS.
package oidc

import (
	"encoding/json"
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/dearjane/internal/http/services/oidc"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
)

// UserInfoController handles GET/POST /connect/userinfo.
type UserInfoController struct {
	service svc.UserInfoService
}

// NewUserInfoController creates the controller.
func NewUserInfoController(s svc.UserInfoService) *UserInfoController {
	return &UserInfoController{service: s}
}

// UserInfo handles GET/POST /connect/userinfo.
func (c *UserInfoController) UserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oidc.userinfo"))

	token := bearerToken(r)
	if token == "" {
		challenge(w, "invalid_request", "The access token is missing.")
		return
	}

	claims, err := c.service.UserInfo(ctx, token)
	if err != nil {
		switch err {
		case svc.ErrUserInfoInvalidToken:
			challenge(w, "invalid_token", "The access token is invalid.")
		case svc.ErrUserInfoUserGone:
			challenge(w, "invalid_token",
				"The specified access token is bound to an account that no longer exists.")
		default:
			log.Error("userinfo endpoint error", logger.Err(err))
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"server_error"}`))
		}
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(claims)
}

// bearerToken extrae el access token del header Authorization o del form.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		return strings.TrimSpace(r.PostForm.Get("access_token"))
	}
	return ""
}

// challenge responde 401 con WWW-Authenticate según RFC 6750.
func challenge(w http.ResponseWriter, code, description string) {
	w.Header().Set("WWW-Authenticate",
		`Bearer error="`+code+`", error_description="`+description+`"`)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + code + `","error_description":"` + description + `"}`))
}
