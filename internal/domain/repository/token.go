package repository

import (
	"context"
	"time"
)

// TokenStatus es el estado de un refresh token.
type TokenStatus string

const (
	TokenValid   TokenStatus = "valid"
	TokenRevoked TokenStatus = "revoked"
)

// RefreshToken es el registro opaco de un refresh token emitido. Solo se
// persiste el hash; el token crudo nunca toca el store. El registro embebe
// el principal mínimo (subject, scopes, authorization) necesario para
// re-autenticar el grant refresh_token.
type RefreshToken struct {
	ID              string
	AuthorizationID string // puede ser vacío (ej: sin client_id en password grant)
	ApplicationID   string
	Subject         string
	TokenHash       string
	Scopes          []string
	Status          TokenStatus
	CreatedAt       time.Time
	ExpiresAt       time.Time
	RevokedAt       *time.Time
}

// TokenFilter filtra búsquedas de refresh tokens.
type TokenFilter struct {
	Subject       string
	ApplicationID string
	Status        TokenStatus
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	AuthorizationID string
	ApplicationID   string
	Subject         string
	TokenHash       string
	Scopes          []string
	TTL             time.Duration
}

// TokenRepository define operaciones sobre refresh tokens.
type TokenRepository interface {
	// Create persiste un nuevo refresh token (hash).
	Create(ctx context.Context, input CreateRefreshTokenInput) (*RefreshToken, error)

	// GetByHash busca un token por su hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, hash string) (*RefreshToken, error)

	// Find lista tokens que cumplen el filtro.
	Find(ctx context.Context, filter TokenFilter) ([]RefreshToken, error)

	// TryRevoke revoca un token. Retorna false (sin error) si ya estaba
	// revocado o no existe; un error indica un fallo real del store.
	TryRevoke(ctx context.Context, id string) (bool, error)
}
