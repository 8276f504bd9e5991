package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/security/password"
)

func TestUsers_CreateAndLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.Users().Create(ctx, repository.CreateUserInput{
		Username: "alice", Email: "alice@example.com", PasswordHash: "x",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.SecurityStamp)

	byID, err := s.Users().GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	byName, err := s.Users().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, created.ID, byName.ID)

	_, err = s.Users().GetByID(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)

	// username duplicado
	_, err = s.Users().Create(ctx, repository.CreateUserInput{Username: "alice"})
	require.ErrorIs(t, err, repository.ErrConflict)
}

func TestUsers_LockoutPolicy(t *testing.T) {
	s := New()
	s.MaxFailedLogins = 3
	s.LockoutWindow = time.Hour
	ctx := context.Background()

	hash, err := password.Hash("correct")
	require.NoError(t, err)
	user, err := s.Users().Create(ctx, repository.CreateUserInput{
		Username: "alice", PasswordHash: hash,
	})
	require.NoError(t, err)

	// dos fallos: todavía invalid
	for i := 0; i < 2; i++ {
		check, err := s.Users().CheckPassword(ctx, user, "wrong", true)
		require.NoError(t, err)
		require.Equal(t, repository.PasswordInvalid, check)
	}

	// el tercero alcanza el umbral
	check, err := s.Users().CheckPassword(ctx, user, "wrong", true)
	require.NoError(t, err)
	require.Equal(t, repository.PasswordLockedOut, check)

	// bloqueada incluso con el password correcto
	check, err = s.Users().CheckPassword(ctx, user, "correct", true)
	require.NoError(t, err)
	require.Equal(t, repository.PasswordLockedOut, check)
}

func TestUsers_SuccessResetsFailureCounter(t *testing.T) {
	s := New()
	s.MaxFailedLogins = 2
	ctx := context.Background()

	hash, err := password.Hash("correct")
	require.NoError(t, err)
	user, err := s.Users().Create(ctx, repository.CreateUserInput{
		Username: "alice", PasswordHash: hash,
	})
	require.NoError(t, err)

	check, err := s.Users().CheckPassword(ctx, user, "wrong", true)
	require.NoError(t, err)
	require.Equal(t, repository.PasswordInvalid, check)

	// un acierto resetea el contador
	check, err = s.Users().CheckPassword(ctx, user, "correct", true)
	require.NoError(t, err)
	require.Equal(t, repository.PasswordOK, check)

	// un fallo posterior arranca de cero, no bloquea
	check, err = s.Users().CheckPassword(ctx, user, "wrong", true)
	require.NoError(t, err)
	require.Equal(t, repository.PasswordInvalid, check)
}

func TestUsers_DisabledBeatsInvalid(t *testing.T) {
	s := New()
	ctx := context.Background()

	hash, err := password.Hash("correct")
	require.NoError(t, err)
	user, err := s.Users().Create(ctx, repository.CreateUserInput{
		Username: "alice", PasswordHash: hash,
	})
	require.NoError(t, err)
	require.NoError(t, s.Users().Disable(ctx, user.ID))

	// password correcto + cuenta deshabilitada = NotAllowed
	check, err := s.Users().CheckPassword(ctx, user, "correct", true)
	require.NoError(t, err)
	require.Equal(t, repository.PasswordNotAllowed, check)

	got, err := s.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, got.CanSignIn(time.Now().UTC()))
}

func TestApplications_SecretHashing(t *testing.T) {
	s := New()
	ctx := context.Background()

	app, err := s.Applications().Create(ctx, repository.ApplicationInput{
		ClientID: "worker",
		Type:     repository.ApplicationTypeConfidential,
		Secret:   "topsecret",
	})
	require.NoError(t, err)
	require.NotEmpty(t, app.SecretHash)
	require.NotEqual(t, "topsecret", app.SecretHash)

	require.True(t, s.Applications().CheckSecret(app, "topsecret"))
	require.False(t, s.Applications().CheckSecret(app, "wrong"))
}

func TestAuthorizations_FindScopeCoverageAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.Authorizations().Create(ctx, repository.CreateAuthorizationInput{
		Subject:       "user-1",
		ApplicationID: "app-1",
		Scopes:        []string{"openid", "profile"},
		Type:          repository.AuthorizationPermanent,
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Authorizations().Create(ctx, repository.CreateAuthorizationInput{
		Subject:       "user-1",
		ApplicationID: "app-1",
		Scopes:        []string{"openid", "profile", "email"},
		Type:          repository.AuthorizationPermanent,
	})
	require.NoError(t, err)

	// covers-all: solo la segunda cubre email
	got, err := s.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject:       "user-1",
		ApplicationID: "app-1",
		Scopes:        []string{"openid", "email"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, second.ID, got[0].ID)

	// orden por CreatedAt ascendente
	got, err = s.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject: "user-1",
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, first.ID, got[0].ID)
	require.Equal(t, second.ID, got[1].ID)

	// otro subject no matchea
	got, err = s.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject: "user-2",
	})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAuthorizations_TryRevokeIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.Authorizations().Create(ctx, repository.CreateAuthorizationInput{
		Subject: "user-1", ApplicationID: "app-1", Type: repository.AuthorizationAdHoc,
	})
	require.NoError(t, err)

	ok, err := s.Authorizations().TryRevoke(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// segunda revocación: no-op sin error
	ok, err = s.Authorizations().TryRevoke(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, ok)

	// id inexistente tampoco falla
	ok, err = s.Authorizations().TryRevoke(ctx, "nope")
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.Authorizations().GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, repository.AuthorizationRevoked, got.Status)
	require.NotNil(t, got.RevokedAt)
}

func TestTokens_HashLookupAndRevoke(t *testing.T) {
	s := New()
	ctx := context.Background()

	tk, err := s.Tokens().Create(ctx, repository.CreateRefreshTokenInput{
		ApplicationID: "app-1",
		Subject:       "user-1",
		TokenHash:     "hash-1",
		Scopes:        []string{"openid", "offline_access"},
		TTL:           time.Hour,
	})
	require.NoError(t, err)
	require.Equal(t, repository.TokenValid, tk.Status)
	require.True(t, tk.ExpiresAt.After(time.Now()))

	got, err := s.Tokens().GetByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, tk.ID, got.ID)

	_, err = s.Tokens().GetByHash(ctx, "other")
	require.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := s.Tokens().TryRevoke(ctx, tk.ID)
	require.NoError(t, err)
	require.True(t, ok)

	// el filtro por status ya no lo devuelve
	valid, err := s.Tokens().Find(ctx, repository.TokenFilter{
		Subject: "user-1", Status: repository.TokenValid,
	})
	require.NoError(t, err)
	require.Empty(t, valid)
}

func TestScopes_ListResourcesDedup(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Scopes().Upsert(ctx, repository.Scope{
		Name: "api:read", Resources: []string{"api", "reports"},
	}))
	require.NoError(t, s.Scopes().Upsert(ctx, repository.Scope{
		Name: "api:write", Resources: []string{"api"},
	}))

	// scopes desconocidos se ignoran; los resources se dedupean
	res, err := s.Scopes().ListResources(ctx, []string{"api:read", "api:write", "ghost"})
	require.NoError(t, err)
	require.Equal(t, []string{"api", "reports"}, res)

	// upsert reemplaza
	require.NoError(t, s.Scopes().Upsert(ctx, repository.Scope{
		Name: "api:read", Resources: []string{"reports"},
	}))
	sc, err := s.Scopes().Get(ctx, "api:read")
	require.NoError(t, err)
	require.Equal(t, []string{"reports"}, sc.Resources)
}
