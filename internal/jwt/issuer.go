// Package jwt es la frontera con la "librería OIDC": firma y verificación de
// tokens. Los handlers deciden qué claims/scopes viajan en cada token; este
// paquete solo los embebe y firma (EdDSA).
package jwt

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/dearjane/internal/identity"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer firma tokens con la clave activa.
type Issuer struct {
	Iss       string // claim "iss"
	Keys      *Keypair
	AccessTTL time.Duration
	IDTTL     time.Duration
}

// NewIssuer crea un Issuer con TTLs por defecto (15m).
func NewIssuer(iss string, kp *Keypair) *Issuer {
	return &Issuer{
		Iss:       iss,
		Keys:      kp,
		AccessTTL: 15 * time.Minute,
		IDTTL:     15 * time.Minute,
	}
}

// Claims reservados que no se sobreescriben desde la identidad.
var reservedClaims = map[string]bool{
	"iss": true, "aud": true, "iat": true, "nbf": true, "exp": true, "jti": true,
}

// IssueAccess emite un access token para la identidad: claims estándar +
// todos los claims destinados al access token. La audiencia son los resources
// resueltos de los scopes (o el client cuando no hay resources).
func (i *Issuer) IssueAccess(id *identity.Identity, clientID string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": id.Claim(identity.ClaimSubject),
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"jti": uuid.NewString(),
	}
	if clientID != "" {
		claims["client_id"] = clientID
	}
	if rs := id.Resources(); len(rs) > 0 {
		claims["aud"] = rs
	} else if clientID != "" {
		claims["aud"] = clientID
	}
	if sc := id.Scopes(); len(sc) > 0 {
		claims["scope"] = strings.Join(sc, " ")
	}
	if az := id.AuthorizationID(); az != "" {
		claims["authorization_id"] = az
	}
	for k, v := range id.AccessTokenClaims() {
		if !reservedClaims[k] && k != "sub" {
			claims[k] = v
		}
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssueIDToken emite un ID token OIDC: claims estándar + claims destinados al
// ID token + extras (nonce, at_hash).
func (i *Issuer) IssueIDToken(id *identity.Identity, clientID string, extra map[string]any) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.IDTTL)

	claims := jwtv5.MapClaims{
		"iss": i.Iss,
		"sub": id.Claim(identity.ClaimSubject),
		"aud": clientID,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": exp.Unix(),
	}
	for k, v := range id.IdentityTokenClaims() {
		if !reservedClaims[k] && k != "sub" {
			claims[k] = v
		}
	}
	for k, v := range extra {
		claims[k] = v
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (i *Issuer) sign(claims jwtv5.MapClaims) (string, error) {
	if i.Keys == nil {
		return "", errors.New("issuer has no signing key")
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.Keys.KID
	tk.Header["typ"] = "JWT"
	return tk.SignedString(i.Keys.Priv)
}

// Keyfunc devuelve un jwt.Keyfunc que valida por 'kid' contra la clave activa.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.Keys.KID {
			return nil, errors.New("unknown kid")
		}
		return ed25519.PublicKey(i.Keys.Pub), nil
	}
}

// Parse valida un token emitido por este issuer y devuelve sus claims.
func (i *Issuer) Parse(raw string) (jwtv5.MapClaims, error) {
	tk, err := jwtv5.Parse(raw, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss))
	if err != nil || !tk.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	mc, ok := tk.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return mc, nil
}
