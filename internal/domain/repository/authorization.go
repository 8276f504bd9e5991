package repository

import (
	"context"
	"time"
)

// AuthorizationType distingue grants reutilizables de grants de un solo uso.
type AuthorizationType string

const (
	// AuthorizationPermanent persiste entre sesiones y habilita re-consent
	// silencioso.
	AuthorizationPermanent AuthorizationType = "permanent"
	// AuthorizationAdHoc se crea por token de password grant; no habilita
	// aprobación silenciosa.
	AuthorizationAdHoc AuthorizationType = "ad_hoc"
)

// AuthorizationStatus es el estado de una authorization.
type AuthorizationStatus string

const (
	AuthorizationValid   AuthorizationStatus = "valid"
	AuthorizationRevoked AuthorizationStatus = "revoked"
)

// Authorization representa un grant vigente de (subject, client, scopes).
// Se crea una vez y solo se muta al revocarla.
type Authorization struct {
	ID            string
	Subject       string // user ID (o client_id en flujos M2M, no usado hoy)
	ApplicationID string // UUID interno del application
	Scopes        []string
	Type          AuthorizationType
	Status        AuthorizationStatus
	CreatedAt     time.Time
	RevokedAt     *time.Time
}

// AuthorizationFilter filtra búsquedas de authorizations.
// Campos vacíos no filtran. Scopes exige que la authorization cubra
// todos los scopes pedidos.
type AuthorizationFilter struct {
	Subject       string
	ApplicationID string
	Status        AuthorizationStatus
	Type          AuthorizationType
	Scopes        []string
}

// CreateAuthorizationInput contiene los datos para crear una authorization.
type CreateAuthorizationInput struct {
	Subject       string
	ApplicationID string
	Scopes        []string
	Type          AuthorizationType
}

// AuthorizationRepository define operaciones sobre authorizations.
type AuthorizationRepository interface {
	// Find lista authorizations que cumplen el filtro, ordenadas por
	// fecha de creación ascendente.
	Find(ctx context.Context, filter AuthorizationFilter) ([]Authorization, error)

	// GetByID busca una authorization por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Authorization, error)

	// Create crea una nueva authorization.
	Create(ctx context.Context, input CreateAuthorizationInput) (*Authorization, error)

	// TryRevoke revoca una authorization. Retorna false (sin error) si ya
	// estaba revocada o no existe; un error indica un fallo real del store.
	TryRevoke(ctx context.Context, id string) (bool, error)
}
