package session

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	"github.com/dropDatabas3/dearjane/internal/store"
)

// Errores del login interactivo.
var (
	ErrLoginInvalidCredentials = errors.New("invalid credentials")
	ErrLoginLockedOut          = errors.New("account locked out")
	ErrLoginNotAllowed         = errors.New("sign in not allowed")
)

// LoginService autentica credenciales para el flujo interactivo del
// authorize endpoint.
type LoginService interface {
	Login(ctx context.Context, username, password string) (*repository.User, error)
}

// LoginDeps contains dependencies for login service.
type LoginDeps struct {
	DAL store.DataAccessLayer
}

type loginService struct {
	dal store.DataAccessLayer
}

// NewLoginService creates a new LoginService.
func NewLoginService(d LoginDeps) LoginService {
	return &loginService{dal: d.DAL}
}

func (s *loginService) Login(ctx context.Context, username, password string) (*repository.User, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("session.login"))

	user, err := s.dal.Users().GetByUsername(ctx, username)
	if err != nil {
		log.Warn("unknown username")
		return nil, ErrLoginInvalidCredentials
	}

	check, err := s.dal.Users().CheckPassword(ctx, user, password, true)
	if err != nil {
		return nil, err
	}
	switch check {
	case repository.PasswordOK:
	case repository.PasswordLockedOut:
		log.Warn("account locked out", logger.UserID(user.ID))
		return nil, ErrLoginLockedOut
	case repository.PasswordNotAllowed:
		log.Warn("sign in not allowed", logger.UserID(user.ID))
		return nil, ErrLoginNotAllowed
	default:
		log.Warn("invalid credentials", logger.UserID(user.ID))
		return nil, ErrLoginInvalidCredentials
	}

	if !user.CanSignIn(time.Now().UTC()) {
		return nil, ErrLoginNotAllowed
	}

	log.Info("login ok", logger.UserID(user.ID))
	return user, nil
}
