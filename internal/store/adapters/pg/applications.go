package pg

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/security/password"
)

type appRepo struct {
	pool *pgxpool.Pool
}

const appColumns = `id, client_id, display_name, type, secret_hash, consent_type,
	redirect_uris, post_logout_redirect_uris, scopes, grant_types`

func scanApp(row interface{ Scan(...any) error }) (*repository.Application, error) {
	var a repository.Application
	err := row.Scan(
		&a.ID, &a.ClientID, &a.DisplayName, &a.Type, &a.SecretHash,
		&a.ConsentType, &a.RedirectURIs, &a.PostLogoutRedirectURIs,
		&a.Scopes, &a.GrantTypes,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r *appRepo) GetByClientID(ctx context.Context, clientID string) (*repository.Application, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM applications WHERE client_id = $1`, clientID)
	return scanApp(row)
}

func (r *appRepo) Create(ctx context.Context, input repository.ApplicationInput) (*repository.Application, error) {
	secretHash := ""
	if input.Secret != "" {
		h, err := password.Hash(input.Secret)
		if err != nil {
			return nil, err
		}
		secretHash = h
	}
	consent := input.ConsentType
	if consent == "" {
		consent = repository.ConsentExplicit
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO applications (id, client_id, display_name, type, secret_hash,
			consent_type, redirect_uris, post_logout_redirect_uris, scopes, grant_types)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+appColumns,
		uuid.NewString(), input.ClientID, input.DisplayName, input.Type,
		secretHash, consent, input.RedirectURIs, input.PostLogoutRedirectURIs,
		input.Scopes, input.GrantTypes)
	return scanApp(row)
}

func (r *appRepo) CheckSecret(app *repository.Application, secret string) bool {
	if app.SecretHash == "" {
		return false
	}
	return password.Verify(app.SecretHash, secret)
}
