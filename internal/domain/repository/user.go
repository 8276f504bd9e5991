package repository

import (
	"context"
	"time"
)

// User representa un usuario del sistema.
type User struct {
	ID            string
	Username      string // también usado como preferred_username
	Email         string
	EmailVerified bool
	Name          string
	PhoneNumber   string
	PhoneVerified bool
	Roles         []string
	PasswordHash  string

	// SecurityStamp cambia cuando cambian las credenciales del usuario.
	// Nunca debe salir del servidor (ver identity.Destinations).
	SecurityStamp string

	FailedLogins int
	LockedUntil  *time.Time
	DisabledAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanSignIn reporta si el usuario puede iniciar sesión ahora mismo:
// no deshabilitado y sin lockout vigente.
func (u *User) CanSignIn(now time.Time) bool {
	if u.DisabledAt != nil {
		return false
	}
	if u.LockedUntil != nil && now.Before(*u.LockedUntil) {
		return false
	}
	return true
}

// PasswordCheck es el resultado de una verificación de password.
type PasswordCheck int

const (
	// PasswordOK: credenciales correctas y el usuario puede iniciar sesión.
	PasswordOK PasswordCheck = iota
	// PasswordInvalid: el password no coincide.
	PasswordInvalid
	// PasswordLockedOut: la cuenta está bloqueada por intentos fallidos.
	PasswordLockedOut
	// PasswordNotAllowed: la cuenta existe pero no puede iniciar sesión
	// (deshabilitada).
	PasswordNotAllowed
)

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Username      string
	Email         string
	EmailVerified bool
	Name          string
	PhoneNumber   string
	PhoneVerified bool
	Roles         []string
	PasswordHash  string
}

// UserRepository define operaciones sobre usuarios.
type UserRepository interface {
	// GetByID busca un usuario por ID. Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername busca un usuario por username. Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// CheckPassword verifica el password de un usuario. Con lockoutOnFailure,
	// cada fallo incrementa el contador y puede bloquear la cuenta; un acierto
	// lo resetea. El orden de evaluación distingue lockout y cuenta
	// deshabilitada del resto de fallos.
	CheckPassword(ctx context.Context, user *User, password string, lockoutOnFailure bool) (PasswordCheck, error)

	// Create crea un nuevo usuario. Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// SetRoles reemplaza la lista de roles de un usuario.
	SetRoles(ctx context.Context, userID string, roles []string) error

	// Disable deshabilita un usuario.
	Disable(ctx context.Context, userID string) error
}
