// Package oauth contiene los services del dominio OAuth2/OIDC.
package oauth

import (
	"context"
	"errors"
	"time"
)

// TokenService handles OAuth2 token endpoint logic.
type TokenService interface {
	// ExchangeAuthorizationCode handles grant_type=authorization_code (PKCE)
	ExchangeAuthorizationCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error)

	// ExchangeRefreshToken handles grant_type=refresh_token (rotation)
	ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)

	// ExchangePassword handles grant_type=password (resource owner credentials)
	ExchangePassword(ctx context.Context, req PasswordRequest) (*TokenResponse, error)

	// ExchangeClientCredentials handles grant_type=client_credentials (M2M)
	ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error)
}

// AuthCodeRequest contains parameters for authorization_code grant.
type AuthCodeRequest struct {
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
}

// RefreshTokenRequest contains parameters for refresh_token grant.
type RefreshTokenRequest struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
}

// PasswordRequest contains parameters for password grant.
type PasswordRequest struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scope        string
}

// ClientCredentialsRequest contains parameters for client_credentials grant.
type ClientCredentialsRequest struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// TokenResponse is the standard OAuth2 token response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Token endpoint errors (OAuth2 standard). Los sentinels con sufijo concreto
// preservan la descripción exacta que el controller escribe en el JSON.
var (
	ErrTokenInvalidRequest       = errors.New("invalid_request")
	ErrTokenInvalidClient        = errors.New("invalid_client")
	ErrTokenInvalidGrant         = errors.New("invalid_grant")
	ErrTokenUnauthorizedClient   = errors.New("unauthorized_client")
	ErrTokenUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrTokenInvalidScope         = errors.New("invalid_scope")
	ErrTokenServerError          = errors.New("server_error")

	// consent_required: el user autenticó pero el client exige una
	// authorization previa que no existe.
	ErrTokenConsentRequired = errors.New("consent_required")

	// invalid_grant con descripción específica
	ErrTokenCodeNoLongerValid    = errors.New("invalid_grant: authorization code no longer valid")
	ErrTokenRefreshNoLongerValid = errors.New("invalid_grant: refresh token no longer valid")
	ErrTokenUserNoLongerAllowed  = errors.New("invalid_grant: user no longer allowed to sign in")
	ErrTokenBadUserPassword      = errors.New("invalid_grant: invalid username/password")
	ErrTokenUserLockedOut        = errors.New("invalid_grant: account locked out")
	ErrTokenUserNotAllowed       = errors.New("invalid_grant: user not allowed to sign in")
)

// AuthCodePayload is the cached authorization code data (one-shot).
type AuthCodePayload struct {
	Subject         string    `json:"subject"`
	ClientID        string    `json:"client_id"`
	RedirectURI     string    `json:"redirect_uri"`
	Scope           string    `json:"scope"`
	Nonce           string    `json:"nonce,omitempty"`
	CodeChallenge   string    `json:"code_challenge,omitempty"`
	ChallengeMethod string    `json:"challenge_method,omitempty"` // "S256"
	AuthorizationID string    `json:"authorization_id,omitempty"`
	ExpiresAt       time.Time `json:"expires_at"`
}
