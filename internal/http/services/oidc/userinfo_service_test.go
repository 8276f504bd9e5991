package oidc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/identity"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/security/password"
	storemem "github.com/dropDatabas3/dearjane/internal/store/adapters/memory"
)

func newUserInfoEnv(t *testing.T) (*storemem.Store, *jwtx.Issuer, UserInfoService) {
	t.Helper()
	kp, err := jwtx.GenerateKeypair()
	require.NoError(t, err)
	dal := storemem.New()
	issuer := jwtx.NewIssuer("https://id.test", kp)
	return dal, issuer, NewUserInfoService(UserInfoDeps{DAL: dal, Issuer: issuer})
}

func seedUser(t *testing.T, dal *storemem.Store) *repository.User {
	t.Helper()
	hash, err := password.Hash("s3cret-pass")
	require.NoError(t, err)
	user, err := dal.Users().Create(context.Background(), repository.CreateUserInput{
		Username:      "alice",
		Email:         "alice@example.com",
		EmailVerified: true,
		Name:          "Alice Example",
		PhoneNumber:   "+5491100000000",
		Roles:         []string{"admin"},
		PasswordHash:  hash,
	})
	require.NoError(t, err)
	return user
}

func accessTokenFor(t *testing.T, issuer *jwtx.Issuer, sub string, scopes []string) string {
	t.Helper()
	id := identity.New().
		SetClaim(identity.ClaimSubject, sub).
		SetScopes(scopes)
	id.ApplyDestinations(identity.Destinations)
	token, _, err := issuer.IssueAccess(id, "spa")
	require.NoError(t, err)
	return token
}

func TestUserInfo_ScopeGating(t *testing.T) {
	dal, issuer, svc := newUserInfoEnv(t)
	user := seedUser(t, dal)
	ctx := context.Background()

	// solo openid: únicamente sub
	out, err := svc.UserInfo(ctx, accessTokenFor(t, issuer, user.ID, []string{"openid"}))
	require.NoError(t, err)
	require.Equal(t, user.ID, out["sub"])
	require.NotContains(t, out, "email")
	require.NotContains(t, out, "name")
	require.NotContains(t, out, "phone_number")
	require.NotContains(t, out, "role")

	// profile + email
	out, err = svc.UserInfo(ctx, accessTokenFor(t, issuer, user.ID,
		[]string{"openid", "profile", "email"}))
	require.NoError(t, err)
	require.Equal(t, "Alice Example", out["name"])
	require.Equal(t, "alice", out["preferred_username"])
	require.Equal(t, "alice@example.com", out["email"])
	require.Equal(t, true, out["email_verified"])
	require.NotContains(t, out, "phone_number")
	require.NotContains(t, out, "role")

	// phone + roles
	out, err = svc.UserInfo(ctx, accessTokenFor(t, issuer, user.ID,
		[]string{"openid", "phone", "roles"}))
	require.NoError(t, err)
	require.Equal(t, "+5491100000000", out["phone_number"])
	require.Equal(t, []string{"admin"}, out["role"])
}

func TestUserInfo_EmptyValuesEmitNoClaims(t *testing.T) {
	dal, issuer, svc := newUserInfoEnv(t)
	hash, err := password.Hash("0ther-pass")
	require.NoError(t, err)

	// user sin email, sin teléfono y sin roles
	user, err := dal.Users().Create(context.Background(), repository.CreateUserInput{
		Username:     "bob",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	out, err := svc.UserInfo(context.Background(), accessTokenFor(t, issuer, user.ID,
		[]string{"openid", "email", "phone", "roles"}))
	require.NoError(t, err)
	require.Equal(t, user.ID, out["sub"])
	require.NotContains(t, out, "email")
	require.NotContains(t, out, "email_verified")
	require.NotContains(t, out, "phone_number")
	require.NotContains(t, out, "phone_number_verified")
	require.NotContains(t, out, "role")
}

func TestUserInfo_CustomClaimsPassThrough(t *testing.T) {
	dal, issuer, svc := newUserInfoEnv(t)
	user := seedUser(t, dal)

	id := identity.New().
		SetClaim(identity.ClaimSubject, user.ID).
		SetClaim("custom:plan", "pro").
		SetClaim("app:tenant", "acme").
		SetScopes([]string{"openid"})
	id.ApplyDestinations(identity.Destinations)
	token, _, err := issuer.IssueAccess(id, "spa")
	require.NoError(t, err)

	out, err := svc.UserInfo(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "pro", out["custom:plan"])
	require.Equal(t, "acme", out["app:tenant"])
}

func TestUserInfo_InvalidToken(t *testing.T) {
	_, issuer, svc := newUserInfoEnv(t)

	_, err := svc.UserInfo(context.Background(), "garbage")
	require.ErrorIs(t, err, ErrUserInfoInvalidToken)

	// token firmado por otra clave
	otherKP, err := jwtx.GenerateKeypair()
	require.NoError(t, err)
	other := jwtx.NewIssuer(issuer.Iss, otherKP)
	token := accessTokenFor(t, other, "someone", []string{"openid"})
	_, err = svc.UserInfo(context.Background(), token)
	require.ErrorIs(t, err, ErrUserInfoInvalidToken)
}

func TestUserInfo_ExpiredToken(t *testing.T) {
	dal, issuer, svc := newUserInfoEnv(t)
	user := seedUser(t, dal)

	issuer.AccessTTL = -time.Minute
	token := accessTokenFor(t, issuer, user.ID, []string{"openid"})

	_, err := svc.UserInfo(context.Background(), token)
	require.ErrorIs(t, err, ErrUserInfoInvalidToken)
}

func TestUserInfo_UserGone(t *testing.T) {
	_, issuer, svc := newUserInfoEnv(t)

	token := accessTokenFor(t, issuer, "deleted-user-id", []string{"openid"})
	_, err := svc.UserInfo(context.Background(), token)
	require.ErrorIs(t, err, ErrUserInfoUserGone)
}
