// Package pg implementa store.DataAccessLayer sobre postgres con pgx.
package pg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/store"
	migrations "github.com/dropDatabas3/dearjane/migrations/postgres"
)

// Store es un DataAccessLayer respaldado por postgres.
type Store struct {
	pool *pgxpool.Pool

	users  *userRepo
	apps   *appRepo
	authz  *authzRepo
	tokens *tokenRepo
	scopes *scopeRepo
}

// Open abre el pool y aplica las migraciones embebidas.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{pool: pool}
	s.users = &userRepo{pool: pool}
	s.apps = &appRepo{pool: pool}
	s.authz = &authzRepo{pool: pool}
	s.tokens = &tokenRepo{pool: pool}
	s.scopes = &scopeRepo{pool: pool}
	return s, nil
}

var _ store.DataAccessLayer = (*Store)(nil)

func (s *Store) Users() repository.UserRepository                   { return s.users }
func (s *Store) Applications() repository.ApplicationRepository     { return s.apps }
func (s *Store) Authorizations() repository.AuthorizationRepository { return s.authz }
func (s *Store) Tokens() repository.TokenRepository                 { return s.tokens }
func (s *Store) Scopes() repository.ScopeRepository                 { return s.scopes }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// migrate aplica los .sql embebidos en orden lexicográfico. El esquema usa
// IF NOT EXISTS, así que re-aplicar es seguro.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	names, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return fmt.Errorf("pg: glob migrations: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		raw, err := migrations.FS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(raw)); err != nil {
			return fmt.Errorf("pg: apply migration %s: %w", name, err)
		}
	}
	return nil
}

// mapError traduce errores pgx a los sentinels del dominio.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return repository.ErrConflict
	}
	return err
}
