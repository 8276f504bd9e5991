package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachemem "github.com/dropDatabas3/dearjane/internal/cache/memory"
	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	svc "github.com/dropDatabas3/dearjane/internal/http/services/oauth"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/security/password"
	storemem "github.com/dropDatabas3/dearjane/internal/store/adapters/memory"
)

func newTokenController(t *testing.T) (*TokenController, *storemem.Store) {
	t.Helper()
	kp, err := jwtx.GenerateKeypair()
	require.NoError(t, err)
	dal := storemem.New()
	service := svc.NewTokenService(svc.TokenDeps{
		DAL:        dal,
		Issuer:     jwtx.NewIssuer("https://id.test", kp),
		Cache:      cachemem.New(time.Minute),
		RefreshTTL: time.Hour,
	})
	return NewTokenController(service), dal
}

func seedPasswordClient(t *testing.T, dal *storemem.Store) {
	t.Helper()
	ctx := context.Background()
	hash, err := password.Hash("s3cret-pass")
	require.NoError(t, err)
	_, err = dal.Users().Create(ctx, repository.CreateUserInput{
		Username: "alice", Email: "alice@example.com", PasswordHash: hash,
	})
	require.NoError(t, err)
	_, err = dal.Applications().Create(ctx, repository.ApplicationInput{
		ClientID:    "spa",
		Type:        repository.ApplicationTypePublic,
		ConsentType: repository.ConsentImplicit,
		Scopes:      []string{"openid", "offline_access"},
	})
	require.NoError(t, err)
}

func postToken(t *testing.T, c *TokenController, form url.Values) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/connect/token",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	c.Token(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body),
		"response should be valid JSON: %s", rec.Body.String())
	return rec, body
}

func TestTokenEndpoint_PasswordGrant(t *testing.T) {
	c, dal := newTokenController(t)
	seedPasswordClient(t, dal)

	rec, body := postToken(t, c, url.Values{
		"grant_type": {"password"},
		"client_id":  {"spa"},
		"username":   {"alice"},
		"password":   {"s3cret-pass"},
		"scope":      {"openid offline_access"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "Bearer", body["token_type"])
	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["id_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.InDelta(t, 15*60, body["expires_in"], 5)
}

func TestTokenEndpoint_ErrorContracts(t *testing.T) {
	c, dal := newTokenController(t)
	seedPasswordClient(t, dal)

	cases := []struct {
		name        string
		form        url.Values
		status      int
		errCode     string
		description string
	}{
		{
			name:    "unsupported grant",
			form:    url.Values{"grant_type": {"device_code"}},
			status:  http.StatusBadRequest,
			errCode: "unsupported_grant_type",
		},
		{
			name: "unknown client",
			form: url.Values{
				"grant_type": {"password"},
				"client_id":  {"ghost"},
				"username":   {"alice"},
				"password":   {"s3cret-pass"},
			},
			status:  http.StatusUnauthorized,
			errCode: "invalid_client",
		},
		{
			name: "bad credentials",
			form: url.Values{
				"grant_type": {"password"},
				"client_id":  {"spa"},
				"username":   {"alice"},
				"password":   {"wrong"},
			},
			status:      http.StatusBadRequest,
			errCode:     "invalid_grant",
			description: "The username/password couple is invalid.",
		},
		{
			name: "stale code",
			form: url.Values{
				"grant_type":   {"authorization_code"},
				"client_id":    {"spa"},
				"code":         {"stale-code"},
				"redirect_uri": {"https://app.test/callback"},
			},
			status:      http.StatusBadRequest,
			errCode:     "invalid_grant",
			description: "The authorization code is no longer valid.",
		},
		{
			name: "stale refresh token",
			form: url.Values{
				"grant_type":    {"refresh_token"},
				"client_id":     {"spa"},
				"refresh_token": {"stale-refresh"},
			},
			status:      http.StatusBadRequest,
			errCode:     "invalid_grant",
			description: "The refresh token is no longer valid.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := postToken(t, c, tc.form)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.errCode, body["error"])
			if tc.description != "" {
				require.Equal(t, tc.description, body["error_description"])
			}
		})
	}
}

func TestTokenEndpoint_MethodNotAllowed(t *testing.T) {
	c, _ := newTokenController(t)

	req := httptest.NewRequest(http.MethodGet, "/connect/token", nil)
	rec := httptest.NewRecorder()
	c.Token(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestTokenEndpoint_BasicAuthClient(t *testing.T) {
	c, dal := newTokenController(t)
	ctx := context.Background()
	_, err := dal.Applications().Create(ctx, repository.ApplicationInput{
		ClientID: "worker",
		Type:     repository.ApplicationTypeConfidential,
		Secret:   "topsecret",
		Scopes:   []string{"api:read"},
	})
	require.NoError(t, err)

	form := url.Values{"grant_type": {"client_credentials"}}
	req := httptest.NewRequest(http.MethodPost, "/connect/token",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("worker", "topsecret")
	rec := httptest.NewRecorder()
	c.Token(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, "api:read", body["scope"])
}
