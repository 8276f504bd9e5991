package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/security/password"
	storemem "github.com/dropDatabas3/dearjane/internal/store/adapters/memory"
)

func newLoginEnv(t *testing.T) (*storemem.Store, LoginService) {
	t.Helper()
	dal := storemem.New()
	return dal, NewLoginService(LoginDeps{DAL: dal})
}

func createLoginUser(t *testing.T, dal *storemem.Store, username, pass string) *repository.User {
	t.Helper()
	hash, err := password.Hash(pass)
	require.NoError(t, err)
	user, err := dal.Users().Create(context.Background(), repository.CreateUserInput{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)
	return user
}

func TestLogin_OK(t *testing.T) {
	dal, svc := newLoginEnv(t)
	created := createLoginUser(t, dal, "alice", "s3cret-pass")

	user, err := svc.Login(context.Background(), "alice", "s3cret-pass")
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	dal, svc := newLoginEnv(t)
	createLoginUser(t, dal, "alice", "s3cret-pass")
	ctx := context.Background()

	_, err := svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrLoginInvalidCredentials)

	// username inexistente responde igual
	_, err = svc.Login(ctx, "nobody", "wrong")
	require.ErrorIs(t, err, ErrLoginInvalidCredentials)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	dal, svc := newLoginEnv(t)
	dal.MaxFailedLogins = 2
	createLoginUser(t, dal, "alice", "s3cret-pass")
	ctx := context.Background()

	_, err := svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrLoginInvalidCredentials)

	// el segundo fallo alcanza el umbral y bloquea
	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrLoginLockedOut)

	_, err = svc.Login(ctx, "alice", "s3cret-pass")
	require.ErrorIs(t, err, ErrLoginLockedOut)
}

func TestLogin_DisabledUser(t *testing.T) {
	dal, svc := newLoginEnv(t)
	user := createLoginUser(t, dal, "alice", "s3cret-pass")
	ctx := context.Background()
	require.NoError(t, dal.Users().Disable(ctx, user.ID))

	_, err := svc.Login(ctx, "alice", "s3cret-pass")
	require.ErrorIs(t, err, ErrLoginNotAllowed)
}
