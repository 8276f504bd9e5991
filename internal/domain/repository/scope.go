package repository

import "context"

// Scope representa un scope registrado y los resources que habilita.
type Scope struct {
	Name        string
	Description string
	Resources   []string
}

// ScopeRepository define operaciones sobre scopes registrados.
type ScopeRepository interface {
	// Get busca un scope por nombre. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, name string) (*Scope, error)

	// ListResources resuelve los resources asociados a los scopes dados,
	// sin duplicados, en orden estable. Scopes no registrados se ignoran.
	ListResources(ctx context.Context, scopes []string) ([]string, error)

	// Upsert crea o reemplaza un scope.
	Upsert(ctx context.Context, scope Scope) error
}
