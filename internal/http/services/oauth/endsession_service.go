package oauth

import (
	"context"
	"errors"
	"net/url"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	"github.com/dropDatabas3/dearjane/internal/store"
)

// EndSessionService implementa el logout OIDC (/connect/endsession).
type EndSessionService interface {
	EndSession(ctx context.Context, req EndSessionRequest, sessionUserID string) (*EndSessionResult, error)
}

// EndSessionRequest son los parámetros del endsession request.
type EndSessionRequest struct {
	IDTokenHint           string
	PostLogoutRedirectURI string
	State                 string
	ClientID              string
	Prompt                string
}

// EndSessionResultKind distingue los desenlaces del logout.
type EndSessionResultKind int

const (
	// EndSessionRedirect: logout procesado, 302 al destino post-logout.
	EndSessionRedirect EndSessionResultKind = iota
	// EndSessionLogin: sin sesión activa, 302 a la UI de login con return URL.
	EndSessionLogin
)

// EndSessionResult indica a dónde redirigir tras procesar el request.
type EndSessionResult struct {
	Kind        EndSessionResultKind
	RedirectURI string
}

// Errores del endsession endpoint.
var (
	ErrEndSessionLoginRequired  = errors.New("endsession: login_required")
	ErrEndSessionInvalidRequest = errors.New("endsession: invalid_request")
	ErrEndSessionInvalidClient  = errors.New("endsession: invalid_client")
	ErrEndSessionServerError    = errors.New("endsession: server error")
)

// EndSessionDeps contains dependencies for end session service.
type EndSessionDeps struct {
	DAL    store.DataAccessLayer
	Issuer *jwtx.Issuer
	// LoginURL es la UI de login usada para el challenge sin sesión.
	LoginURL string
	// LoggedOutURL es el destino por defecto sin post_logout_redirect_uri.
	LoggedOutURL string
}

type endSessionService struct {
	dal          store.DataAccessLayer
	issuer       *jwtx.Issuer
	loginURL     string
	loggedOutURL string
}

// NewEndSessionService creates a new EndSessionService.
func NewEndSessionService(d EndSessionDeps) EndSessionService {
	loginURL := d.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}
	out := d.LoggedOutURL
	if out == "" {
		out = "/"
	}
	return &endSessionService{dal: d.DAL, issuer: d.Issuer, loginURL: loginURL, loggedOutURL: out}
}

func (s *endSessionService) EndSession(ctx context.Context, req EndSessionRequest, sessionUserID string) (*EndSessionResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.endsession"))

	// Sin sesión no hay nada que cerrar: prompt=none no puede interactuar,
	// cualquier otro caso manda al login conservando el request original.
	if sessionUserID == "" {
		if hasPrompt(req.Prompt, "none") {
			return nil, ErrEndSessionLoginRequired
		}
		return s.loginChallenge(req), nil
	}

	// Una sesión que apunta a un user inexistente es un estado inconsistente.
	user, err := s.dal.Users().GetByID(ctx, sessionUserID)
	if err != nil {
		log.Error("session user cannot be resolved", logger.UserID(sessionUserID), logger.Err(err))
		return nil, ErrEndSessionServerError
	}
	subject := user.ID

	hintClientID := ""

	// id_token_hint se valida de verdad: firma, issuer y expiración. Un hint
	// inválido o emitido para otro user rechaza el request en vez de ignorarse.
	if req.IDTokenHint != "" {
		claims, err := s.issuer.Parse(req.IDTokenHint)
		if err != nil {
			log.Warn("invalid id_token_hint", logger.Err(err))
			return nil, ErrEndSessionInvalidRequest
		}
		if sub, _ := claims["sub"].(string); sub != "" && sub != subject {
			log.Warn("id_token_hint subject does not match the logged in user", logger.UserID(subject))
			return nil, ErrEndSessionInvalidRequest
		}
		if aud, _ := claims["aud"].(string); aud != "" {
			hintClientID = aud
		}
		if req.ClientID != "" && hintClientID != "" && req.ClientID != hintClientID {
			log.Warn("client_id does not match id_token_hint audience")
			return nil, ErrEndSessionInvalidRequest
		}
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = hintClientID
	}

	// El application se resuelve siempre que haya un client identificable,
	// haya o no post_logout_redirect_uri: la revocación no depende de la URI.
	var app *repository.Application
	if clientID != "" {
		app, err = s.dal.Applications().GetByClientID(ctx, clientID)
		if err != nil {
			if req.PostLogoutRedirectURI != "" {
				log.Warn("client not found", logger.ClientID(clientID))
				return nil, ErrEndSessionInvalidClient
			}
			log.Warn("client not found, skipping grant revocation", logger.ClientID(clientID))
			app = nil
		}
	}

	if req.PostLogoutRedirectURI != "" {
		// sin client identificable no hay forma de validar la URI
		if app == nil {
			log.Warn("post_logout_redirect_uri without identifiable client")
			return nil, ErrEndSessionInvalidRequest
		}
		if !app.HasPostLogoutRedirectURI(req.PostLogoutRedirectURI) {
			log.Warn("post_logout_redirect_uri not registered", logger.ClientID(clientID))
			return nil, ErrEndSessionInvalidRequest
		}
	}

	// Revocación best-effort de authorizations y refresh tokens del user para
	// este client. Un fallo individual se loguea y el logout continúa.
	if app != nil {
		s.revokeGrants(ctx, subject, app)
	}

	redirect := s.loggedOutURL
	if req.PostLogoutRedirectURI != "" {
		q := url.Values{}
		if req.State != "" {
			q.Set("state", req.State)
		}
		redirect = appendQuery(req.PostLogoutRedirectURI, q)
	}

	log.Info("session ended", logger.UserID(subject), logger.ClientID(clientID))
	return &EndSessionResult{Kind: EndSessionRedirect, RedirectURI: redirect}, nil
}

// loginChallenge arma el 302 a la UI de login conservando el endsession
// request como return URL.
func (s *endSessionService) loginChallenge(req EndSessionRequest) *EndSessionResult {
	q := url.Values{}
	q.Set("return_to", "/connect/endsession?"+req.query().Encode())
	return &EndSessionResult{Kind: EndSessionLogin, RedirectURI: appendQuery(s.loginURL, q)}
}

// query reconstruye los parámetros del endsession request (para return URLs).
func (req EndSessionRequest) query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("id_token_hint", req.IDTokenHint)
	set("post_logout_redirect_uri", req.PostLogoutRedirectURI)
	set("state", req.State)
	set("client_id", req.ClientID)
	return q
}

// revokeGrants revoca secuencialmente las authorizations y los refresh tokens
// válidos del par (subject, application). Nunca falla el logout.
func (s *endSessionService) revokeGrants(ctx context.Context, subject string, app *repository.Application) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.endsession.revoke"))

	revoked := 0

	authzs, err := s.dal.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject:       subject,
		ApplicationID: app.ID,
		Status:        repository.AuthorizationValid,
	})
	if err != nil {
		log.Warn("failed to list authorizations", logger.Err(err))
	} else {
		for _, a := range authzs {
			ok, err := s.dal.Authorizations().TryRevoke(ctx, a.ID)
			if err != nil {
				log.Warn("failed to revoke authorization", logger.ID(a.ID), logger.Err(err))
				continue
			}
			if ok {
				revoked++
			}
		}
	}

	rts, err := s.dal.Tokens().Find(ctx, repository.TokenFilter{
		Subject:       subject,
		ApplicationID: app.ID,
		Status:        repository.TokenValid,
	})
	if err != nil {
		log.Warn("failed to list refresh tokens", logger.Err(err))
	} else {
		for _, rt := range rts {
			ok, err := s.dal.Tokens().TryRevoke(ctx, rt.ID)
			if err != nil {
				log.Warn("failed to revoke refresh token", logger.ID(rt.ID), logger.Err(err))
				continue
			}
			if ok {
				revoked++
			}
		}
	}

	if revoked > 0 {
		log.Info("grants revoked", logger.Count(revoked), logger.UserID(subject))
	}
}
