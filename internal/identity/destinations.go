package identity

// Destination marca en qué token(es) se embebe un claim.
type Destination string

const (
	DestinationAccessToken   Destination = "access_token"
	DestinationIdentityToken Destination = "id_token"
)

// Destinations calcula los destinos de un claim según los scopes otorgados a
// la identidad:
//
//	name, preferred_username  -> access siempre; id solo con scope "profile"
//	email                     -> access siempre; id solo con scope "email"
//	role                      -> access siempre; id solo con scope "roles"
//	security_stamp            -> nunca (no sale del servidor)
//	cualquier otro            -> access siempre
func Destinations(c Claim, id *Identity) []Destination {
	switch c.Type {
	case ClaimName, ClaimPreferredUsername:
		if id.HasScope(ScopeProfile) {
			return []Destination{DestinationAccessToken, DestinationIdentityToken}
		}
		return []Destination{DestinationAccessToken}

	case ClaimEmail:
		if id.HasScope(ScopeEmail) {
			return []Destination{DestinationAccessToken, DestinationIdentityToken}
		}
		return []Destination{DestinationAccessToken}

	case ClaimRole:
		if id.HasScope(ScopeRoles) {
			return []Destination{DestinationAccessToken, DestinationIdentityToken}
		}
		return []Destination{DestinationAccessToken}

	case ClaimSecurityStamp:
		return nil

	default:
		return []Destination{DestinationAccessToken}
	}
}

// ApplyDestinations fija los destinos de cada claim usando fn. Los handlers
// la llaman siempre con Destinations antes del sign-in.
func (id *Identity) ApplyDestinations(fn func(Claim, *Identity) []Destination) *Identity {
	for i := range id.claims {
		id.claims[i].Destinations = fn(id.claims[i], id)
	}
	return id
}

// hasDestination reporta si el claim tiene el destino dado.
func (c Claim) hasDestination(d Destination) bool {
	for _, dd := range c.Destinations {
		if dd == d {
			return true
		}
	}
	return false
}

// AccessTokenClaims agrupa los claims destinados al access token en un mapa
// listo para el issuer. Claims multivaluados (role) se agrupan en slices.
func (id *Identity) AccessTokenClaims() map[string]any {
	return id.claimsFor(DestinationAccessToken)
}

// IdentityTokenClaims agrupa los claims destinados al ID token.
func (id *Identity) IdentityTokenClaims() map[string]any {
	return id.claimsFor(DestinationIdentityToken)
}

func (id *Identity) claimsFor(d Destination) map[string]any {
	out := make(map[string]any)
	for _, c := range id.claims {
		if !c.hasDestination(d) {
			continue
		}
		switch existing := out[c.Type].(type) {
		case nil:
			out[c.Type] = c.Value
		case string:
			out[c.Type] = []string{existing, c.Value}
		case []string:
			out[c.Type] = append(existing, c.Value)
		}
	}
	// role siempre como lista, aunque haya un solo valor
	if v, ok := out[ClaimRole].(string); ok {
		out[ClaimRole] = []string{v}
	}
	return out
}
