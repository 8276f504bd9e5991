// Package oauth - controllers del dominio OAuth2/OIDC.
package oauth

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/dearjane/internal/observability/logger"

	httpx "github.com/dropDatabas3/dearjane/internal/http"
	svc "github.com/dropDatabas3/dearjane/internal/http/services/oauth"
)

// TokenController handles POST /connect/token.
type TokenController struct {
	service svc.TokenService
}

// NewTokenController creates the controller.
func NewTokenController(s svc.TokenService) *TokenController {
	return &TokenController{service: s}
}

// Token handles POST /connect/token
// Implements: Authorization Code (PKCE), Refresh Token, Password, Client Credentials grants.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.token"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "Only POST method is allowed")
		return
	}

	// Limit body size (64KB for OAuth forms)
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	if err := r.ParseForm(); err != nil {
		log.Warn("failed to parse form", logger.Err(err))
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
		return
	}

	grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))
	log = log.With(logger.GrantType(grantType))

	clientID, clientSecret := clientCredentials(r)

	var resp *svc.TokenResponse
	var err error

	switch grantType {
	case "authorization_code":
		resp, err = c.service.ExchangeAuthorizationCode(ctx, svc.AuthCodeRequest{
			Code:         strings.TrimSpace(r.PostForm.Get("code")),
			RedirectURI:  strings.TrimSpace(r.PostForm.Get("redirect_uri")),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			CodeVerifier: strings.TrimSpace(r.PostForm.Get("code_verifier")),
		})

	case "refresh_token":
		resp, err = c.service.ExchangeRefreshToken(ctx, svc.RefreshTokenRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RefreshToken: strings.TrimSpace(r.PostForm.Get("refresh_token")),
			Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
		})

	case "password":
		resp, err = c.service.ExchangePassword(ctx, svc.PasswordRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Username:     strings.TrimSpace(r.PostForm.Get("username")),
			Password:     r.PostForm.Get("password"),
			Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
		})

	case "client_credentials":
		resp, err = c.service.ExchangeClientCredentials(ctx, svc.ClientCredentialsRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
		})

	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Grant type not supported")
		return
	}

	if err != nil {
		c.handleServiceError(w, err, ctx)
		return
	}

	httpx.CountTokenIssued(grantType)
	writeTokenResponse(w, resp)
}

// clientCredentials extrae client_id/client_secret del form o de Basic auth.
func clientCredentials(r *http.Request) (string, string) {
	if id, secret, ok := r.BasicAuth(); ok && id != "" {
		return id, secret
	}
	return strings.TrimSpace(r.PostForm.Get("client_id")),
		r.PostForm.Get("client_secret")
}

func (c *TokenController) handleServiceError(w http.ResponseWriter, err error, ctx context.Context) {
	log := logger.From(ctx)
	switch err {
	case svc.ErrTokenInvalidRequest:
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Missing or invalid parameters")
	case svc.ErrTokenInvalidClient:
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "Client authentication failed")
	case svc.ErrTokenInvalidGrant:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "Invalid or expired grant")
	case svc.ErrTokenUnauthorizedClient:
		writeOAuthError(w, http.StatusUnauthorized, "unauthorized_client", "Client not authorized for this grant type")
	case svc.ErrTokenUnsupportedGrantType:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "Grant type not supported")
	case svc.ErrTokenInvalidScope:
		writeOAuthError(w, http.StatusBadRequest, "invalid_scope", "Requested scope is invalid or not allowed")
	case svc.ErrTokenConsentRequired:
		writeOAuthError(w, http.StatusForbidden, "consent_required", "The logged in user is not allowed to access this client application.")

	// invalid_grant con la descripción exacta de cada causa
	case svc.ErrTokenCodeNoLongerValid:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The authorization code is no longer valid.")
	case svc.ErrTokenRefreshNoLongerValid:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The refresh token is no longer valid.")
	case svc.ErrTokenUserNoLongerAllowed:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The user is no longer allowed to sign in.")
	case svc.ErrTokenBadUserPassword:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The username/password couple is invalid.")
	case svc.ErrTokenUserLockedOut:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The account is locked out.")
	case svc.ErrTokenUserNotAllowed:
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "The user is not allowed to sign in.")

	default:
		log.Error("token endpoint error", logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "An unexpected error occurred")
	}
}

func writeOAuthError(w http.ResponseWriter, status int, errorCode, description string) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + errorCode + `","error_description":"` + description + `"}`))
}

func writeTokenResponse(w http.ResponseWriter, resp *svc.TokenResponse) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	// JSON a mano para controlar los campos opcionales
	out := `{"access_token":"` + resp.AccessToken + `","token_type":"` + resp.TokenType + `","expires_in":` + itoa(resp.ExpiresIn)
	if resp.RefreshToken != "" {
		out += `,"refresh_token":"` + resp.RefreshToken + `"`
	}
	if resp.IDToken != "" {
		out += `,"id_token":"` + resp.IDToken + `"`
	}
	if resp.Scope != "" {
		out += `,"scope":"` + resp.Scope + `"`
	}
	out += `}`
	_, _ = w.Write([]byte(out))
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte(n%10) + '0'
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
