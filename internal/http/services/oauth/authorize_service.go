package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/dropDatabas3/dearjane/internal/cache"
	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/http/services/session"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	tokens "github.com/dropDatabas3/dearjane/internal/security/token"
	"github.com/dropDatabas3/dearjane/internal/store"
	"github.com/dropDatabas3/dearjane/internal/validation"
)

// AuthorizeService implementa la máquina de estados del authorize endpoint:
// login -> consent -> code.
type AuthorizeService interface {
	// Authorize procesa GET/POST /connect/authorize.
	Authorize(ctx context.Context, req AuthorizeRequest, sess *session.Session) (*AuthorizeResult, error)

	// Decide procesa el submit del consent form (accept/deny).
	Decide(ctx context.Context, req AuthorizeRequest, sess *session.Session, accept bool) (*AuthorizeResult, error)
}

// AuthorizeRequest son los parámetros del authorize request.
type AuthorizeRequest struct {
	ClientID            string
	RedirectURI         string
	ResponseType        string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
	Prompt              string
	MaxAge              string // segundos, opcional
}

// AuthorizeResultKind distingue los desenlaces del flujo.
type AuthorizeResultKind int

const (
	// ResultRedirect: 302 al client (code o error en query, según el caso).
	ResultRedirect AuthorizeResultKind = iota
	// ResultLogin: 302 a la UI de login con return URL.
	ResultLogin
	// ResultConsent: 302 a la UI de consent.
	ResultConsent
	// ResultError: error local (redirect_uri no confiable), render 400.
	ResultError
)

// AuthorizeResult es el desenlace de un authorize request.
type AuthorizeResult struct {
	Kind        AuthorizeResultKind
	RedirectURI string // destino del 302 para Redirect/Login/Consent
	Error       string // código OAuth para ResultError
	Description string
}

// Errores internos del authorize service.
var ErrAuthorizeServerError = errors.New("authorize: server error")

// AuthorizeDeps contains dependencies for authorize service.
type AuthorizeDeps struct {
	DAL         store.DataAccessLayer
	Cache       cache.Cache
	LoginURL    string // UI de login; recibe return_to
	ConsentURL  string // UI de consent; recibe los parámetros del authorize
	AuthCodeTTL time.Duration
}

type authorizeService struct {
	dal         store.DataAccessLayer
	cache       cache.Cache
	loginURL    string
	consentURL  string
	authCodeTTL time.Duration
}

// NewAuthorizeService creates a new AuthorizeService.
func NewAuthorizeService(d AuthorizeDeps) AuthorizeService {
	ttl := d.AuthCodeTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	loginURL := d.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}
	consentURL := d.ConsentURL
	if consentURL == "" {
		consentURL = "/consent"
	}
	return &authorizeService{
		dal:         d.DAL,
		cache:       d.Cache,
		loginURL:    loginURL,
		consentURL:  consentURL,
		authCodeTTL: ttl,
	}
}

func (s *authorizeService) Authorize(ctx context.Context, req AuthorizeRequest, sess *session.Session) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize"))

	app, res := s.validateRequest(ctx, req)
	if res != nil {
		return res, nil
	}

	// ¿Hace falta (re)autenticar? prompt=login fuerza login; max_age caduca
	// la sesión para este request.
	if needsLogin(req, sess) {
		if hasPrompt(req.Prompt, "none") {
			return errorRedirect(req, "login_required", "The user is not logged in."), nil
		}
		return s.loginRedirect(req), nil
	}

	user, err := s.dal.Users().GetByID(ctx, sess.UserID)
	if err != nil || !user.CanSignIn(time.Now().UTC()) {
		// sesión huérfana o user bloqueado: forzar login de nuevo
		if hasPrompt(req.Prompt, "none") {
			return errorRedirect(req, "login_required", "The user is not logged in."), nil
		}
		return s.loginRedirect(req), nil
	}

	scopes := strings.Fields(req.Scope)
	authzs, err := s.dal.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject:       user.ID,
		ApplicationID: app.ID,
		Status:        repository.AuthorizationValid,
		Type:          repository.AuthorizationPermanent,
		Scopes:        scopes,
	})
	if err != nil {
		log.Error("failed to list authorizations", logger.Err(err))
		return nil, ErrAuthorizeServerError
	}

	switch {
	// External sin authorization previa: el acceso lo otorga un admin.
	case app.ConsentType == repository.ConsentExternal && len(authzs) == 0:
		return errorRedirect(req, "consent_required",
			"The logged in user is not allowed to access this client application."), nil

	// Aprobación silenciosa: implicit siempre; explicit/external con
	// authorization previa, salvo que el client fuerce prompt=consent.
	case app.ConsentType == repository.ConsentImplicit,
		(app.ConsentType == repository.ConsentExplicit || app.ConsentType == repository.ConsentExternal) &&
			len(authzs) > 0 && !hasPrompt(req.Prompt, "consent"):
		return s.approve(ctx, req, app, user, scopes, authzs)

	// Consent interactivo imposible con prompt=none.
	case hasPrompt(req.Prompt, "none"):
		return errorRedirect(req, "consent_required",
			"Interactive user consent is required."), nil

	// Systematic, explicit sin authorization, o prompt=consent: formulario.
	default:
		return s.consentRedirect(req), nil
	}
}

func (s *authorizeService) Decide(ctx context.Context, req AuthorizeRequest, sess *session.Session, accept bool) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize.decide"))

	app, res := s.validateRequest(ctx, req)
	if res != nil {
		return res, nil
	}
	if needsLogin(req, sess) {
		return s.loginRedirect(req), nil
	}

	if !accept {
		log.Info("consent denied", logger.ClientID(app.ClientID), logger.UserID(sess.UserID))
		return errorRedirect(req, "access_denied",
			"The authorization was denied by the end user."), nil
	}

	user, err := s.dal.Users().GetByID(ctx, sess.UserID)
	if err != nil || !user.CanSignIn(time.Now().UTC()) {
		return s.loginRedirect(req), nil
	}

	scopes := strings.Fields(req.Scope)
	authzs, err := s.dal.Authorizations().Find(ctx, repository.AuthorizationFilter{
		Subject:       user.ID,
		ApplicationID: app.ID,
		Status:        repository.AuthorizationValid,
		Type:          repository.AuthorizationPermanent,
		Scopes:        scopes,
	})
	if err != nil {
		log.Error("failed to list authorizations", logger.Err(err))
		return nil, ErrAuthorizeServerError
	}
	return s.approve(ctx, req, app, user, scopes, authzs)
}

// validateRequest valida client, redirect y parámetros. Retorna el app o el
// resultado de error a renderizar.
func (s *authorizeService) validateRequest(ctx context.Context, req AuthorizeRequest) (*repository.Application, *AuthorizeResult) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize.validate"))

	if req.ClientID == "" {
		return nil, localError("invalid_request", "The client_id parameter is missing.")
	}
	app, err := s.dal.Applications().GetByClientID(ctx, req.ClientID)
	if err != nil {
		log.Warn("client not found", logger.ClientID(req.ClientID))
		return nil, localError("invalid_client", "The client application cannot be found.")
	}

	// Nunca redirigir a una URI no registrada: error local.
	if req.RedirectURI == "" || !app.HasRedirectURI(req.RedirectURI) {
		log.Warn("redirect_uri not registered", logger.ClientID(req.ClientID))
		return nil, localError("invalid_request", "The redirect_uri is not registered for this client.")
	}

	if req.ResponseType != "code" {
		return app, errorRedirect(req, "unsupported_response_type",
			"Only the authorization code flow is supported.")
	}

	scopes := strings.Fields(req.Scope)
	if !validation.ValidScopeList(scopes) {
		return app, errorRedirect(req, "invalid_scope", "The requested scope is malformed.")
	}
	if len(app.Scopes) > 0 && !subset(scopes, app.Scopes) {
		return app, errorRedirect(req, "invalid_scope",
			"The requested scope is not registered for this client.")
	}

	// PKCE: obligatorio para clients públicos, S256 únicamente.
	if req.CodeChallenge == "" && app.Type == repository.ApplicationTypePublic {
		return app, errorRedirect(req, "invalid_request",
			"The code_challenge parameter is required for this client.")
	}
	if req.CodeChallenge != "" && !strings.EqualFold(req.CodeChallengeMethod, "S256") {
		return app, errorRedirect(req, "invalid_request",
			"Only the S256 code_challenge_method is supported.")
	}

	return app, nil
}

// approve emite el authorization code: resuelve/crea la authorization
// permanente y guarda el payload one-shot en cache.
func (s *authorizeService) approve(ctx context.Context, req AuthorizeRequest, app *repository.Application, user *repository.User, scopes []string, authzs []repository.Authorization) (*AuthorizeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.authorize.approve"))

	var authzID string
	if len(authzs) > 0 {
		authzID = authzs[len(authzs)-1].ID
	} else {
		authz, err := s.dal.Authorizations().Create(ctx, repository.CreateAuthorizationInput{
			Subject:       user.ID,
			ApplicationID: app.ID,
			Scopes:        scopes,
			Type:          repository.AuthorizationPermanent,
		})
		if err != nil {
			log.Error("failed to create authorization", logger.Err(err))
			return nil, ErrAuthorizeServerError
		}
		authzID = authz.ID
	}

	code, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, ErrAuthorizeServerError
	}
	payload := AuthCodePayload{
		Subject:         user.ID,
		ClientID:        app.ClientID,
		RedirectURI:     req.RedirectURI,
		Scope:           strings.Join(scopes, " "),
		Nonce:           req.Nonce,
		CodeChallenge:   req.CodeChallenge,
		ChallengeMethod: strings.ToUpper(req.CodeChallengeMethod),
		AuthorizationID: authzID,
		ExpiresAt:       time.Now().UTC().Add(s.authCodeTTL),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrAuthorizeServerError
	}
	s.cache.Set("code:"+tokens.SHA256Base64URL(code), data, s.authCodeTTL)

	log.Info("authorization code issued",
		logger.ClientID(app.ClientID),
		logger.UserID(user.ID),
		logger.AuthorizationID(authzID),
	)

	q := url.Values{}
	q.Set("code", code)
	if req.State != "" {
		q.Set("state", req.State)
	}
	return &AuthorizeResult{
		Kind:        ResultRedirect,
		RedirectURI: appendQuery(req.RedirectURI, q),
	}, nil
}

func (s *authorizeService) loginRedirect(req AuthorizeRequest) *AuthorizeResult {
	q := url.Values{}
	q.Set("return_to", "/connect/authorize?"+req.query().Encode())
	return &AuthorizeResult{Kind: ResultLogin, RedirectURI: appendQuery(s.loginURL, q)}
}

func (s *authorizeService) consentRedirect(req AuthorizeRequest) *AuthorizeResult {
	return &AuthorizeResult{Kind: ResultConsent, RedirectURI: appendQuery(s.consentURL, req.query())}
}

// query reconstruye los parámetros del authorize request (para return URLs).
func (req AuthorizeRequest) query() url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("client_id", req.ClientID)
	set("redirect_uri", req.RedirectURI)
	set("response_type", req.ResponseType)
	set("scope", req.Scope)
	set("state", req.State)
	set("nonce", req.Nonce)
	set("code_challenge", req.CodeChallenge)
	set("code_challenge_method", req.CodeChallengeMethod)
	set("max_age", req.MaxAge)
	return q
}

// needsLogin decide si el request exige (re)autenticación interactiva.
func needsLogin(req AuthorizeRequest, sess *session.Session) bool {
	if sess == nil {
		return true
	}
	if hasPrompt(req.Prompt, "login") {
		return true
	}
	if req.MaxAge != "" {
		if secs, err := parseSeconds(req.MaxAge); err == nil {
			if time.Since(sess.AuthTime) > secs {
				return true
			}
		}
	}
	return false
}

func hasPrompt(prompt, value string) bool {
	for _, p := range strings.Fields(prompt) {
		if p == value {
			return true
		}
	}
	return false
}

func parseSeconds(s string) (time.Duration, error) {
	return time.ParseDuration(s + "s")
}

// errorRedirect arma el 302 de error hacia el client (redirect ya validada).
func errorRedirect(req AuthorizeRequest, code, description string) *AuthorizeResult {
	q := url.Values{}
	q.Set("error", code)
	q.Set("error_description", description)
	if req.State != "" {
		q.Set("state", req.State)
	}
	return &AuthorizeResult{Kind: ResultRedirect, RedirectURI: appendQuery(req.RedirectURI, q)}
}

func localError(code, description string) *AuthorizeResult {
	return &AuthorizeResult{Kind: ResultError, Error: code, Description: description}
}

func appendQuery(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
