package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
)

type authzRepo struct {
	pool *pgxpool.Pool
}

const authzColumns = `id, subject, application_id, scopes, type, status, created_at, revoked_at`

func scanAuthz(row interface{ Scan(...any) error }) (*repository.Authorization, error) {
	var a repository.Authorization
	err := row.Scan(&a.ID, &a.Subject, &a.ApplicationID, &a.Scopes,
		&a.Type, &a.Status, &a.CreatedAt, &a.RevokedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &a, nil
}

func (r *authzRepo) Find(ctx context.Context, f repository.AuthorizationFilter) ([]repository.Authorization, error) {
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
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if len(f.Scopes) > 0 {
		// la authorization debe cubrir todos los scopes pedidos
		add("scopes @> $%d", f.Scopes)
	}

	query := `SELECT ` + authzColumns + ` FROM authorizations`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []repository.Authorization
	for rows.Next() {
		a, err := scanAuthz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, mapError(rows.Err())
}

func (r *authzRepo) GetByID(ctx context.Context, id string) (*repository.Authorization, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+authzColumns+` FROM authorizations WHERE id = $1`, id)
	return scanAuthz(row)
}

func (r *authzRepo) Create(ctx context.Context, input repository.CreateAuthorizationInput) (*repository.Authorization, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO authorizations (id, subject, application_id, scopes, type, status)
		VALUES ($1, $2, $3, $4, $5, 'valid')
		RETURNING `+authzColumns,
		uuid.NewString(), input.Subject, input.ApplicationID, input.Scopes, string(input.Type))
	return scanAuthz(row)
}

func (r *authzRepo) TryRevoke(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE authorizations SET status = 'revoked', revoked_at = now()
		WHERE id = $1 AND status = 'valid'`, id)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}
