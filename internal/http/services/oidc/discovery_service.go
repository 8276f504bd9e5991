package oidc

import (
	"strings"
)

// Discovery arma el documento OIDC discovery para el issuer dado.
// Los paths son fijos: este servicio monta siempre los mismos endpoints.
func Discovery(issuer string) map[string]any {
	base := strings.TrimRight(issuer, "/")
	return map[string]any{
		"issuer":                 base,
		"authorization_endpoint": base + "/connect/authorize",
		"token_endpoint":         base + "/connect/token",
		"userinfo_endpoint":      base + "/connect/userinfo",
		"end_session_endpoint":   base + "/connect/endsession",
		"jwks_uri":               base + "/.well-known/jwks.json",
		"grant_types_supported": []string{
			"authorization_code", "refresh_token", "password", "client_credentials",
		},
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"EdDSA"},
		"code_challenge_methods_supported":      []string{"S256"},
		"scopes_supported": []string{
			"openid", "profile", "email", "phone", "roles", "offline_access",
		},
		"token_endpoint_auth_methods_supported": []string{
			"client_secret_post", "client_secret_basic", "none",
		},
		"claims_supported": []string{
			"sub", "name", "preferred_username", "email", "email_verified",
			"phone_number", "phone_number_verified", "role", "updated_at",
		},
	}
}
