package oauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
)

func (e *testEnv) endSessionService() EndSessionService {
	return NewEndSessionService(EndSessionDeps{DAL: e.dal, Issuer: e.issuer})
}

func logoutApp(clientID string) repository.ApplicationInput {
	in := publicApp(clientID, repository.ConsentImplicit)
	in.PostLogoutRedirectURIs = []string{"https://app.test/logged-out"}
	return in
}

func TestEndSession_DefaultRedirect(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	svc := env.endSessionService()

	res, err := svc.EndSession(context.Background(), EndSessionRequest{}, user.ID)
	require.NoError(t, err)
	require.Equal(t, EndSessionRedirect, res.Kind)
	require.Equal(t, "/", res.RedirectURI)
}

func TestEndSession_WithoutSessionChallengesLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	res, err := svc.EndSession(context.Background(), EndSessionRequest{
		ClientID:              "spa",
		PostLogoutRedirectURI: "https://app.test/logged-out",
		State:                 "abc",
	}, "")
	require.NoError(t, err)
	require.Equal(t, EndSessionLogin, res.Kind)

	// el return URL conserva el request original
	require.Contains(t, res.RedirectURI, "/login?")
	require.Contains(t, res.RedirectURI, "return_to=")
	require.Contains(t, res.RedirectURI, "endsession")
}

func TestEndSession_PromptNoneWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	svc := env.endSessionService()

	_, err := svc.EndSession(context.Background(), EndSessionRequest{
		Prompt: "none",
	}, "")
	require.ErrorIs(t, err, ErrEndSessionLoginRequired)
}

func TestEndSession_OrphanSessionIsServerError(t *testing.T) {
	env := newTestEnv(t)
	svc := env.endSessionService()

	// la sesión apunta a un user que ya no existe
	_, err := svc.EndSession(context.Background(), EndSessionRequest{}, "ghost-user")
	require.ErrorIs(t, err, ErrEndSessionServerError)
}

func TestEndSession_PostLogoutRedirect(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	res, err := svc.EndSession(context.Background(), EndSessionRequest{
		ClientID:              "spa",
		PostLogoutRedirectURI: "https://app.test/logged-out",
		State:                 "abc",
	}, user.ID)
	require.NoError(t, err)
	require.Equal(t, EndSessionRedirect, res.Kind)
	require.Equal(t, "https://app.test/logged-out?state=abc", res.RedirectURI)
}

func TestEndSession_PostLogoutRequiresIdentifiableClient(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	// sin client_id ni id_token_hint no hay contra qué validar la URI
	_, err := svc.EndSession(context.Background(), EndSessionRequest{
		PostLogoutRedirectURI: "https://app.test/logged-out",
	}, user.ID)
	require.ErrorIs(t, err, ErrEndSessionInvalidRequest)
}

func TestEndSession_PostLogoutWithUnknownClient(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	svc := env.endSessionService()

	_, err := svc.EndSession(context.Background(), EndSessionRequest{
		ClientID:              "nope",
		PostLogoutRedirectURI: "https://app.test/logged-out",
	}, user.ID)
	require.ErrorIs(t, err, ErrEndSessionInvalidClient)
}

func TestEndSession_UnregisteredPostLogoutURI(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	_, err := svc.EndSession(context.Background(), EndSessionRequest{
		ClientID:              "spa",
		PostLogoutRedirectURI: "https://evil.test/phish",
	}, user.ID)
	require.ErrorIs(t, err, ErrEndSessionInvalidRequest)
}

func TestEndSession_InvalidIDTokenHint(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	svc := env.endSessionService()

	_, err := svc.EndSession(context.Background(), EndSessionRequest{
		IDTokenHint: "not-a-jwt",
	}, user.ID)
	require.ErrorIs(t, err, ErrEndSessionInvalidRequest)
}

func TestEndSession_HintSubjectMustMatchSessionUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "alice", "s3cret-pass", nil)
	bob := env.createUser(t, "bob", "0ther-pass", nil)
	env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	grant, err := env.tokens.ExchangePassword(ctx, PasswordRequest{
		ClientID: "spa", Username: "alice", Password: "s3cret-pass",
		Scope: "openid",
	})
	require.NoError(t, err)

	// el hint de alice no sirve para cerrar la sesión de bob
	_, err = svc.EndSession(ctx, EndSessionRequest{
		IDTokenHint: grant.IDToken,
	}, bob.ID)
	require.ErrorIs(t, err, ErrEndSessionInvalidRequest)
}

func TestEndSession_ClientIDOnlyRevokesGrants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	app := env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	grant, err := env.tokens.ExchangePassword(ctx, PasswordRequest{
		ClientID: "spa", Username: "alice", Password: "s3cret-pass",
		Scope: "openid offline_access",
	})
	require.NoError(t, err)
	require.NotEmpty(t, grant.RefreshToken)

	// logout con client_id pero sin post_logout_redirect_uri: la revocación
	// no depende de la URI
	res, err := svc.EndSession(ctx, EndSessionRequest{ClientID: "spa"}, user.ID)
	require.NoError(t, err)
	require.Equal(t, "/", res.RedirectURI)

	validTokens, err := env.dal.Tokens().Find(ctx, repository.TokenFilter{
		Subject:       user.ID,
		ApplicationID: app.ID,
		Status:        repository.TokenValid,
	})
	require.NoError(t, err)
	require.Empty(t, validTokens)

	validAuthzs, err := env.dal.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject:       user.ID,
		ApplicationID: app.ID,
		Status:        repository.AuthorizationValid,
	})
	require.NoError(t, err)
	require.Empty(t, validAuthzs)

	_, err = env.tokens.ExchangeRefreshToken(ctx, RefreshTokenRequest{
		ClientID: "spa", RefreshToken: grant.RefreshToken,
	})
	require.ErrorIs(t, err, ErrTokenRefreshNoLongerValid)
}

func TestEndSession_IDTokenHintIdentifiesClient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	app := env.createApp(t, logoutApp("spa"))
	svc := env.endSessionService()

	grant, err := env.tokens.ExchangePassword(ctx, PasswordRequest{
		ClientID: "spa", Username: "alice", Password: "s3cret-pass",
		Scope: "openid offline_access",
	})
	require.NoError(t, err)
	require.NotEmpty(t, grant.IDToken)
	require.NotEmpty(t, grant.RefreshToken)

	// el client sale del audience del hint; los grants del par (user, client)
	// quedan revocados
	res, err := svc.EndSession(ctx, EndSessionRequest{
		IDTokenHint:           grant.IDToken,
		PostLogoutRedirectURI: "https://app.test/logged-out",
	}, user.ID)
	require.NoError(t, err)
	require.Equal(t, "https://app.test/logged-out", res.RedirectURI)

	valid, err := env.dal.Tokens().Find(ctx, repository.TokenFilter{
		Subject:       user.ID,
		ApplicationID: app.ID,
		Status:        repository.TokenValid,
	})
	require.NoError(t, err)
	require.Empty(t, valid)

	// el refresh token ya no sirve
	_, err = env.tokens.ExchangeRefreshToken(ctx, RefreshTokenRequest{
		ClientID: "spa", RefreshToken: grant.RefreshToken,
	})
	require.ErrorIs(t, err, ErrTokenRefreshNoLongerValid)
}

func TestEndSession_ClientIDMustMatchHintAudience(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "alice", "s3cret-pass", nil)
	env.createApp(t, logoutApp("spa"))
	env.createApp(t, logoutApp("other"))
	svc := env.endSessionService()

	grant, err := env.tokens.ExchangePassword(ctx, PasswordRequest{
		ClientID: "spa", Username: "alice", Password: "s3cret-pass",
		Scope: "openid",
	})
	require.NoError(t, err)

	_, err = svc.EndSession(ctx, EndSessionRequest{
		IDTokenHint: grant.IDToken,
		ClientID:    "other",
	}, user.ID)
	require.ErrorIs(t, err, ErrEndSessionInvalidRequest)
}
