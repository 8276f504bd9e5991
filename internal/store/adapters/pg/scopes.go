package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
)

type scopeRepo struct {
	pool *pgxpool.Pool
}

func (r *scopeRepo) Get(ctx context.Context, name string) (*repository.Scope, error) {
	var s repository.Scope
	err := r.pool.QueryRow(ctx,
		`SELECT name, description, resources FROM scopes WHERE name = $1`, name).
		Scan(&s.Name, &s.Description, &s.Resources)
	if err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r *scopeRepo) ListResources(ctx context.Context, scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT resources FROM scopes WHERE name = ANY($1) ORDER BY name`, scopes)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var out []string
	for rows.Next() {
		var resources []string
		if err := rows.Scan(&resources); err != nil {
			return nil, mapError(err)
		}
		for _, res := range resources {
			if _, dup := seen[res]; dup {
				continue
			}
			seen[res] = struct{}{}
			out = append(out, res)
		}
	}
	return out, mapError(rows.Err())
}

func (r *scopeRepo) Upsert(ctx context.Context, scope repository.Scope) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scopes (name, description, resources)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			resources   = EXCLUDED.resources`,
		scope.Name, scope.Description, scope.Resources)
	return mapError(err)
}
