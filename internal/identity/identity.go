// Package identity implementa el principal efímero que los identity handlers
// construyen por request: una bolsa de claims con destinos por claim, scopes,
// resources y la authorization asociada. Nunca se persiste; se entrega al
// issuer que embebe los claims destinados en los tokens emitidos.
package identity

// Standard claim types.
const (
	ClaimSubject           = "sub"
	ClaimName              = "name"
	ClaimEmail             = "email"
	ClaimPreferredUsername = "preferred_username"
	ClaimRole              = "role"
	ClaimUpdatedAt         = "updated_at"

	// ClaimSecurityStamp es un valor secreto del user store; nunca recibe
	// destino (no sale del servidor).
	ClaimSecurityStamp = "security_stamp"
)

// Standard scopes.
const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	ScopePhone   = "phone"
	ScopeRoles   = "roles"
	ScopeOffline = "offline_access"
)

// Claim es un par tipo/valor con sus destinos calculados.
type Claim struct {
	Type         string
	Value        string
	Destinations []Destination
}

// Identity es el principal por-request. Se construye fresco en cada grant y
// se consume dentro del mismo request.
type Identity struct {
	claims          []Claim
	scopes          []string
	resources       []string
	authorizationID string
}

// New crea una Identity vacía.
func New() *Identity {
	return &Identity{}
}

// SetClaim reemplaza todos los claims del tipo dado por un único valor.
// Un valor vacío elimina el claim.
func (id *Identity) SetClaim(typ, value string) *Identity {
	id.removeClaims(typ)
	if value != "" {
		id.claims = append(id.claims, Claim{Type: typ, Value: value})
	}
	return id
}

// SetClaims reemplaza todos los claims del tipo dado por la lista de valores.
func (id *Identity) SetClaims(typ string, values []string) *Identity {
	id.removeClaims(typ)
	for _, v := range values {
		if v != "" {
			id.claims = append(id.claims, Claim{Type: typ, Value: v})
		}
	}
	return id
}

// AddClaim agrega un claim sin tocar los existentes del mismo tipo.
func (id *Identity) AddClaim(typ, value string) *Identity {
	if value != "" {
		id.claims = append(id.claims, Claim{Type: typ, Value: value})
	}
	return id
}

// Claim retorna el primer valor del tipo dado, o "".
func (id *Identity) Claim(typ string) string {
	for _, c := range id.claims {
		if c.Type == typ {
			return c.Value
		}
	}
	return ""
}

// ClaimValues retorna todos los valores del tipo dado.
func (id *Identity) ClaimValues(typ string) []string {
	var out []string
	for _, c := range id.claims {
		if c.Type == typ {
			out = append(out, c.Value)
		}
	}
	return out
}

// Claims retorna una copia de los claims en orden de inserción.
func (id *Identity) Claims() []Claim {
	out := make([]Claim, len(id.claims))
	copy(out, id.claims)
	return out
}

// SetScopes reemplaza los scopes otorgados.
func (id *Identity) SetScopes(scopes []string) *Identity {
	id.scopes = append([]string(nil), scopes...)
	return id
}

// Scopes retorna los scopes otorgados.
func (id *Identity) Scopes() []string {
	return append([]string(nil), id.scopes...)
}

// HasScope reporta si el scope fue otorgado.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// SetResources reemplaza los resources resueltos desde los scopes.
func (id *Identity) SetResources(resources []string) *Identity {
	id.resources = append([]string(nil), resources...)
	return id
}

// Resources retorna los resources asociados.
func (id *Identity) Resources() []string {
	return append([]string(nil), id.resources...)
}

// SetAuthorizationID asocia la authorization que respalda esta identidad.
func (id *Identity) SetAuthorizationID(authzID string) *Identity {
	id.authorizationID = authzID
	return id
}

// AuthorizationID retorna la authorization asociada, o "".
func (id *Identity) AuthorizationID() string {
	return id.authorizationID
}

func (id *Identity) removeClaims(typ string) {
	kept := id.claims[:0]
	for _, c := range id.claims {
		if c.Type != typ {
			kept = append(kept, c)
		}
	}
	id.claims = kept
}
