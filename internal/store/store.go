// Package store define el punto de acceso a datos del servicio. Los
// adapters concretos viven en store/adapters (postgres y memoria).
package store

import (
	"context"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
)

// DataAccessLayer agrupa los repositorios de dominio detrás de una sola
// dependencia inyectable.
type DataAccessLayer interface {
	Users() repository.UserRepository
	Applications() repository.ApplicationRepository
	Authorizations() repository.AuthorizationRepository
	Tokens() repository.TokenRepository
	Scopes() repository.ScopeRepository

	// Ping verifica conectividad con el backend.
	Ping(ctx context.Context) error
	// Close libera recursos (pools, conexiones).
	Close() error
}
