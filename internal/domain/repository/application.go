package repository

import "context"

const (
	ApplicationTypePublic       = "public"
	ApplicationTypeConfidential = "confidential"
)

// ConsentType gobierna cuándo un client requiere consentimiento explícito.
type ConsentType string

const (
	// ConsentImplicit: nunca requiere consentimiento.
	ConsentImplicit ConsentType = "implicit"
	// ConsentExplicit: requiere consentimiento salvo authorization previa.
	ConsentExplicit ConsentType = "explicit"
	// ConsentExternal: las authorizations las otorga un administrador;
	// sin una previa el acceso se rechaza.
	ConsentExternal ConsentType = "external"
	// ConsentSystematic: siempre requiere consentimiento interactivo.
	ConsentSystematic ConsentType = "systematic"
)

// Application representa un client OAuth/OIDC registrado.
type Application struct {
	ID                     string // UUID interno
	ClientID               string // identificador público
	DisplayName            string
	Type                   string // "public" | "confidential"
	SecretHash             string // bcrypt, solo confidential
	ConsentType            ConsentType
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	Scopes                 []string
	GrantTypes             []string
}

// HasRedirectURI reporta si la URI está registrada para el client.
func (a *Application) HasRedirectURI(uri string) bool {
	for _, u := range a.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// HasPostLogoutRedirectURI reporta si la URI está registrada como destino
// post-logout.
func (a *Application) HasPostLogoutRedirectURI(uri string) bool {
	for _, u := range a.PostLogoutRedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// AllowsGrantType reporta si el grant está permitido. Una lista vacía
// permite todos (compatibilidad con registros antiguos).
func (a *Application) AllowsGrantType(grant string) bool {
	if len(a.GrantTypes) == 0 {
		return true
	}
	for _, g := range a.GrantTypes {
		if g == grant {
			return true
		}
	}
	return false
}

// ApplicationInput contiene los datos para registrar un application.
type ApplicationInput struct {
	ClientID               string
	DisplayName            string
	Type                   string
	Secret                 string // plano, se hashea al persistir
	ConsentType            ConsentType
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	Scopes                 []string
	GrantTypes             []string
}

// ApplicationRepository define operaciones sobre applications registradas.
type ApplicationRepository interface {
	// GetByClientID busca un application por su client_id público.
	// Retorna ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*Application, error)

	// Create registra un nuevo application.
	// Retorna ErrConflict si el client_id ya existe.
	Create(ctx context.Context, input ApplicationInput) (*Application, error)

	// CheckSecret verifica el secret de un application confidential.
	CheckSecret(app *Application, secret string) bool
}
