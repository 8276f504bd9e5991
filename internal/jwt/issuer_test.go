package jwt

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/dearjane/internal/identity"
)

func testIdentity(sub string, scopes []string) *identity.Identity {
	id := identity.New().
		SetClaim(identity.ClaimSubject, sub).
		SetClaim(identity.ClaimName, "Alice Example").
		SetClaim(identity.ClaimEmail, "alice@example.com").
		SetClaims(identity.ClaimRole, []string{"admin"}).
		SetScopes(scopes)
	id.ApplyDestinations(identity.Destinations)
	return id
}

func TestIssueAccess_RoundTrip(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	iss := NewIssuer("https://id.test", kp)

	id := testIdentity("user-1", []string{"openid", "profile"})
	id.SetAuthorizationID("authz-1")
	id.SetResources([]string{"api", "reports"})

	token, exp, err := iss.IssueAccess(id, "spa")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(iss.AccessTTL), exp, 5*time.Second)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "https://id.test", claims["iss"])
	require.Equal(t, "user-1", claims["sub"])
	require.Equal(t, "spa", claims["client_id"])
	require.Equal(t, "openid profile", claims["scope"])
	require.Equal(t, "authz-1", claims["authorization_id"])
	require.NotEmpty(t, claims["jti"])

	// la audiencia son los resources resueltos
	aud, ok := claims["aud"].([]any)
	require.True(t, ok)
	require.ElementsMatch(t, []any{"api", "reports"}, aud)

	// role siempre viaja como lista
	roles, ok := claims["role"].([]any)
	require.True(t, ok)
	require.Equal(t, []any{"admin"}, roles)
}

func TestIssueAccess_AudienceFallsBackToClient(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	iss := NewIssuer("https://id.test", kp)

	token, _, err := iss.IssueAccess(testIdentity("user-1", []string{"openid"}), "spa")
	require.NoError(t, err)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "spa", claims["aud"])
}

func TestIssueIDToken_ScopedClaims(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	iss := NewIssuer("https://id.test", kp)

	// con scope profile (sin email): name sí, email no
	id := testIdentity("user-1", []string{"openid", "profile"})
	token, _, err := iss.IssueIDToken(id, "spa", map[string]any{"nonce": "n0nce"})
	require.NoError(t, err)

	claims, err := iss.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "spa", claims["aud"])
	require.Equal(t, "Alice Example", claims["name"])
	require.Equal(t, "n0nce", claims["nonce"])
	require.NotContains(t, claims, "email")

	// security_stamp jamás sale en un token
	id = testIdentity("user-1", []string{"openid", "profile", "email", "roles"})
	id.SetClaim(identity.ClaimSecurityStamp, "super-secret")
	token, _, err = iss.IssueIDToken(id, "spa", nil)
	require.NoError(t, err)
	claims, err = iss.Parse(token)
	require.NoError(t, err)
	require.NotContains(t, claims, identity.ClaimSecurityStamp)
}

func TestParse_RejectsForeignAndExpired(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	iss := NewIssuer("https://id.test", kp)

	// clave ajena
	otherKP, err := GenerateKeypair()
	require.NoError(t, err)
	other := NewIssuer("https://id.test", otherKP)
	token, _, err := other.IssueAccess(testIdentity("user-1", nil), "spa")
	require.NoError(t, err)
	_, err = iss.Parse(token)
	require.Error(t, err)

	// issuer distinto
	foreign := NewIssuer("https://elsewhere.test", kp)
	token, _, err = foreign.IssueAccess(testIdentity("user-1", nil), "spa")
	require.NoError(t, err)
	_, err = iss.Parse(token)
	require.Error(t, err)

	// expirado
	iss.AccessTTL = -time.Minute
	token, _, err = iss.IssueAccess(testIdentity("user-1", nil), "spa")
	require.NoError(t, err)
	_, err = iss.Parse(token)
	require.Error(t, err)
}

func TestLoadOrGenerate_PersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.key.json")

	first, err := LoadOrGenerate(path)
	require.NoError(t, err)
	require.NotEmpty(t, first.KID)

	// segunda carga: misma clave, no regenera
	second, err := LoadOrGenerate(path)
	require.NoError(t, err)
	require.Equal(t, first.KID, second.KID)
	require.Equal(t, first.Pub, second.Pub)
	require.Equal(t, first.Priv, second.Priv)
}

func TestJWKSJSON(t *testing.T) {
	kp, err := GenerateKeypair()
	require.NoError(t, err)
	iss := NewIssuer("https://id.test", kp)

	raw, err := iss.JWKSJSON()
	require.NoError(t, err)

	var doc struct {
		Keys []map[string]string `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Keys, 1)
	require.Equal(t, "OKP", doc.Keys[0]["kty"])
	require.Equal(t, "Ed25519", doc.Keys[0]["crv"])
	require.Equal(t, "EdDSA", doc.Keys[0]["alg"])
	require.Equal(t, kp.KID, doc.Keys[0]["kid"])
	require.NotEmpty(t, doc.Keys[0]["x"])
}
