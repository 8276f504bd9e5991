// Package oidc contiene los services OIDC que no son parte del core OAuth:
// userinfo y discovery.
package oidc

import (
	"context"
	"errors"
	"strings"

	"github.com/dropDatabas3/dearjane/internal/identity"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	"github.com/dropDatabas3/dearjane/internal/store"
)

// Errores del userinfo endpoint.
var (
	// ErrUserInfoInvalidToken: el access token no valida (firma/exp/issuer).
	ErrUserInfoInvalidToken = errors.New("userinfo: invalid token")
	// ErrUserInfoUserGone: el token es válido pero la cuenta ya no existe.
	ErrUserInfoUserGone = errors.New("userinfo: account no longer exists")
)

// UserInfoService resuelve los claims del userinfo endpoint.
type UserInfoService interface {
	// UserInfo valida el access token y arma el documento de claims según
	// los scopes otorgados.
	UserInfo(ctx context.Context, accessToken string) (map[string]any, error)
}

// UserInfoDeps contains dependencies for userinfo service.
type UserInfoDeps struct {
	DAL    store.DataAccessLayer
	Issuer *jwtx.Issuer
}

type userInfoService struct {
	dal    store.DataAccessLayer
	issuer *jwtx.Issuer
}

// NewUserInfoService creates a new UserInfoService.
func NewUserInfoService(d UserInfoDeps) UserInfoService {
	return &userInfoService{dal: d.DAL, issuer: d.Issuer}
}

func (s *userInfoService) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oidc.userinfo"))

	claims, err := s.issuer.Parse(accessToken)
	if err != nil {
		log.Warn("invalid access token", logger.Err(err))
		return nil, ErrUserInfoInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrUserInfoInvalidToken
	}
	scopeStr, _ := claims["scope"].(string)
	scopes := strings.Fields(scopeStr)

	user, err := s.dal.Users().GetByID(ctx, sub)
	if err != nil {
		log.Warn("account behind token no longer exists", logger.UserID(sub))
		return nil, ErrUserInfoUserGone
	}

	out := map[string]any{
		// sub es obligatorio siempre
		"sub": user.ID,
	}
	if hasScope(scopes, identity.ScopeProfile) {
		if user.Name != "" {
			out["name"] = user.Name
		}
		out["preferred_username"] = user.Username
		if !user.UpdatedAt.IsZero() {
			out["updated_at"] = user.UpdatedAt.Unix()
		}
	}
	// valores vacíos no emiten claims: un scope otorgado sobre un dato que el
	// user no tiene se omite entero
	if hasScope(scopes, identity.ScopeEmail) && user.Email != "" {
		out["email"] = user.Email
		out["email_verified"] = user.EmailVerified
	}
	if hasScope(scopes, identity.ScopePhone) && user.PhoneNumber != "" {
		out["phone_number"] = user.PhoneNumber
		out["phone_number_verified"] = user.PhoneVerified
	}
	if hasScope(scopes, identity.ScopeRoles) && len(user.Roles) > 0 {
		out["role"] = user.Roles
	}

	// Claims custom del access token pasan tal cual (namespaces custom:/app:).
	for k, v := range claims {
		if strings.HasPrefix(k, "custom:") || strings.HasPrefix(k, "app:") {
			out[k] = v
		}
	}

	log.Debug("userinfo resolved", logger.UserID(user.ID), logger.Count(len(out)))
	return out, nil
}

func hasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
