package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/security/password"
)

const (
	maxFailedLogins = 5
	lockoutWindow   = 15 * time.Minute
)

type userRepo struct {
	pool *pgxpool.Pool
}

const userColumns = `id, username, email, email_verified, name, phone_number, phone_verified,
	roles, password_hash, security_stamp, failed_logins, locked_until, disabled_at,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*repository.User, error) {
	var u repository.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.EmailVerified, &u.Name,
		&u.PhoneNumber, &u.PhoneVerified, &u.Roles, &u.PasswordHash,
		&u.SecurityStamp, &u.FailedLogins, &u.LockedUntil, &u.DisabledAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *userRepo) CheckPassword(ctx context.Context, user *repository.User, plain string, lockoutOnFailure bool) (repository.PasswordCheck, error) {
	stored, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return repository.PasswordInvalid, err
	}
	now := time.Now().UTC()

	if stored.LockedUntil != nil && now.Before(*stored.LockedUntil) {
		return repository.PasswordLockedOut, nil
	}
	if !password.Verify(stored.PasswordHash, plain) {
		if lockoutOnFailure {
			locked, err := r.recordFailure(ctx, stored.ID)
			if err != nil {
				return repository.PasswordInvalid, err
			}
			if locked {
				return repository.PasswordLockedOut, nil
			}
		}
		return repository.PasswordInvalid, nil
	}
	if stored.DisabledAt != nil {
		return repository.PasswordNotAllowed, nil
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE users SET failed_logins = 0, locked_until = NULL, updated_at = now() WHERE id = $1`,
		stored.ID)
	if err != nil {
		return repository.PasswordOK, mapError(err)
	}
	return repository.PasswordOK, nil
}

// recordFailure incrementa el contador de fallos y bloquea la cuenta al
// llegar al umbral. Retorna true si la cuenta quedó bloqueada.
func (r *userRepo) recordFailure(ctx context.Context, userID string) (bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			failed_logins = CASE WHEN failed_logins + 1 >= $2 THEN 0 ELSE failed_logins + 1 END,
			locked_until  = CASE WHEN failed_logins + 1 >= $2 THEN now() + $3::interval ELSE locked_until END,
			updated_at    = now()
		WHERE id = $1
		RETURNING locked_until IS NOT NULL AND locked_until > now()`,
		userID, maxFailedLogins, lockoutWindow.String())
	var locked bool
	if err := row.Scan(&locked); err != nil {
		return false, mapError(err)
	}
	return locked, nil
}

func (r *userRepo) Create(ctx context.Context, input repository.CreateUserInput) (*repository.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, email_verified, name, phone_number,
			phone_verified, roles, password_hash, security_stamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns,
		uuid.NewString(), input.Username, input.Email, input.EmailVerified,
		input.Name, input.PhoneNumber, input.PhoneVerified, input.Roles,
		input.PasswordHash, uuid.NewString())
	return scanUser(row)
}

func (r *userRepo) SetRoles(ctx context.Context, userID string, roles []string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET roles = $2, updated_at = now() WHERE id = $1`, userID, roles)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Disable(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET disabled_at = now(), updated_at = now() WHERE id = $1`, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
