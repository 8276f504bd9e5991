package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
)

type tokenRepo struct {
	pool *pgxpool.Pool
}

const tokenColumns = `id, COALESCE(authorization_id::text, ''), application_id, subject,
	token_hash, scopes, status, created_at, expires_at, revoked_at`

func scanToken(row interface{ Scan(...any) error }) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := row.Scan(&t.ID, &t.AuthorizationID, &t.ApplicationID, &t.Subject,
		&t.TokenHash, &t.Scopes, &t.Status, &t.CreatedAt, &t.ExpiresAt, &t.RevokedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *tokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	var authzID any
	if input.AuthorizationID != "" {
		authzID = input.AuthorizationID
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO refresh_tokens (id, authorization_id, application_id, subject,
			token_hash, scopes, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'valid', now() + $7::interval)
		RETURNING `+tokenColumns,
		uuid.NewString(), authzID, input.ApplicationID, input.Subject,
		input.TokenHash, input.Scopes, input.TTL.String())
	return scanToken(row)
}

func (r *tokenRepo) GetByHash(ctx context.Context, hash string) (*repository.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, hash)
	return scanToken(row)
}

func (r *tokenRepo) Find(ctx context.Context, f repository.TokenFilter) ([]repository.RefreshToken, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.ApplicationID != "" {
		add("application_id = $%d", f.ApplicationID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}

	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []repository.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, mapError(rows.Err())
}

func (r *tokenRepo) TryRevoke(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE refresh_tokens SET status = 'revoked', revoked_at = now()
		WHERE id = $1 AND status = 'valid'`, id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}
