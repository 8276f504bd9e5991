package jwt

import (
	"encoding/base64"
	"encoding/json"
)

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// JWKSJSON expone la clave pública activa como JWKS (OKP/Ed25519).
func (i *Issuer) JWKSJSON() ([]byte, error) {
	doc := jwks{Keys: []jwk{{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(i.Keys.Pub),
		Kid: i.Keys.KID,
		Use: "sig",
		Alg: "EdDSA",
	}}}
	return json.Marshal(doc)
}
