package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/dearjane/internal/cache"
	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/email"
	"github.com/dropDatabas3/dearjane/internal/identity"
	jwtx "github.com/dropDatabas3/dearjane/internal/jwt"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	tokens "github.com/dropDatabas3/dearjane/internal/security/token"
	"github.com/dropDatabas3/dearjane/internal/store"
)

// TokenDeps contains dependencies for token service.
type TokenDeps struct {
	DAL        store.DataAccessLayer
	Issuer     *jwtx.Issuer
	Cache      cache.Cache
	Mail       email.Sender
	RefreshTTL time.Duration
}

// tokenService implements TokenService.
type tokenService struct {
	dal        store.DataAccessLayer
	issuer     *jwtx.Issuer
	cache      cache.Cache
	mail       email.Sender
	refreshTTL time.Duration
}

// NewTokenService creates a new TokenService.
func NewTokenService(d TokenDeps) TokenService {
	ttl := d.RefreshTTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour // 30 days default
	}
	mail := d.Mail
	if mail == nil {
		mail = email.Noop{}
	}
	return &tokenService{
		dal:        d.DAL,
		issuer:     d.Issuer,
		cache:      d.Cache,
		mail:       mail,
		refreshTTL: ttl,
	}
}

// ExchangeAuthorizationCode handles grant_type=authorization_code (PKCE).
// El principal viaja en el payload one-shot del code; el user se re-lee del
// store para validar que sigue pudiendo iniciar sesión.
func (s *tokenService) ExchangeAuthorizationCode(ctx context.Context, req AuthCodeRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.authcode"))

	if req.Code == "" || req.ClientID == "" {
		return nil, ErrTokenInvalidRequest
	}

	app, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret, "authorization_code")
	if err != nil {
		return nil, err
	}

	// Consume authorization code from cache (one-shot)
	key := "code:" + tokens.SHA256Base64URL(req.Code)
	data, ok := s.cache.Get(key)
	if !ok {
		log.Warn("authorization code not found")
		return nil, ErrTokenCodeNoLongerValid
	}
	s.cache.Delete(key)

	var ac AuthCodePayload
	if err := json.Unmarshal(data, &ac); err != nil {
		log.Warn("authorization code corrupted", logger.Err(err))
		return nil, ErrTokenCodeNoLongerValid
	}

	if time.Now().After(ac.ExpiresAt) {
		log.Warn("authorization code expired")
		return nil, ErrTokenCodeNoLongerValid
	}
	if ac.ClientID != app.ClientID || ac.RedirectURI != req.RedirectURI {
		log.Warn("client/redirect_uri mismatch")
		return nil, ErrTokenInvalidGrant
	}

	// PKCE S256 (obligatorio si el code fue emitido con challenge)
	if ac.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, ErrTokenInvalidRequest
		}
		verifierHash := tokens.SHA256Base64URL(req.CodeVerifier)
		if !strings.EqualFold(ac.ChallengeMethod, "S256") || ac.CodeChallenge != verifierHash {
			log.Warn("PKCE verification failed")
			return nil, ErrTokenInvalidGrant
		}
	}

	// El user pudo ser borrado o bloqueado entre authorize y token.
	user, err := s.dal.Users().GetByID(ctx, ac.Subject)
	if err != nil {
		log.Warn("user behind authorization code not found")
		return nil, ErrTokenCodeNoLongerValid
	}
	if !user.CanSignIn(time.Now().UTC()) {
		log.Warn("user no longer allowed to sign in", logger.UserID(user.ID))
		return nil, ErrTokenUserNoLongerAllowed
	}

	id, err := s.buildUserIdentity(ctx, user, strings.Fields(ac.Scope))
	if err != nil {
		log.Error("failed to build identity", logger.Err(err))
		return nil, ErrTokenServerError
	}
	id.SetAuthorizationID(ac.AuthorizationID)

	resp, err := s.signIn(ctx, id, app, signInOpts{nonce: ac.Nonce})
	if err != nil {
		return nil, err
	}

	log.Info("authorization_code exchanged",
		logger.ClientID(app.ClientID),
		logger.UserID(user.ID),
	)
	return resp, nil
}

// ExchangeRefreshToken handles grant_type=refresh_token (rotation). La
// identidad se reconstruye desde el user store actual, así cambios de roles o
// perfil se reflejan en los tokens nuevos.
func (s *tokenService) ExchangeRefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.refresh"))

	if req.ClientID == "" || req.RefreshToken == "" {
		return nil, ErrTokenInvalidRequest
	}

	app, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret, "refresh_token")
	if err != nil {
		return nil, err
	}

	rt, err := s.dal.Tokens().GetByHash(ctx, tokens.SHA256Base64URL(req.RefreshToken))
	if err != nil {
		log.Warn("refresh token not found")
		return nil, ErrTokenRefreshNoLongerValid
	}

	now := time.Now().UTC()
	if rt.Status != repository.TokenValid || !now.Before(rt.ExpiresAt) || rt.ApplicationID != app.ID {
		log.Warn("refresh token revoked/expired/mismatched")
		return nil, ErrTokenRefreshNoLongerValid
	}

	// La revocación de la authorization invalida sus refresh tokens.
	if rt.AuthorizationID != "" {
		authz, err := s.dal.Authorizations().GetByID(ctx, rt.AuthorizationID)
		if err != nil || authz.Status != repository.AuthorizationValid {
			log.Warn("backing authorization no longer valid",
				logger.AuthorizationID(rt.AuthorizationID))
			return nil, ErrTokenRefreshNoLongerValid
		}
	}

	user, err := s.dal.Users().GetByID(ctx, rt.Subject)
	if err != nil {
		log.Warn("user behind refresh token not found")
		return nil, ErrTokenRefreshNoLongerValid
	}
	if !user.CanSignIn(now) {
		log.Warn("user no longer allowed to sign in", logger.UserID(user.ID))
		return nil, ErrTokenUserNoLongerAllowed
	}

	// Scope narrowing opcional: lo pedido debe ser subconjunto de lo otorgado.
	granted := rt.Scopes
	if req.Scope != "" {
		requested := strings.Fields(req.Scope)
		if !subset(requested, rt.Scopes) {
			return nil, ErrTokenInvalidScope
		}
		granted = requested
	}

	id, err := s.buildUserIdentity(ctx, user, granted)
	if err != nil {
		log.Error("failed to build identity", logger.Err(err))
		return nil, ErrTokenServerError
	}
	id.SetAuthorizationID(rt.AuthorizationID)

	// Rotación: el token usado se revoca siempre, incluso si la emisión
	// posterior falla.
	if _, err := s.dal.Tokens().TryRevoke(ctx, rt.ID); err != nil {
		log.Error("failed to revoke used refresh token", logger.Err(err))
		return nil, ErrTokenServerError
	}

	resp, err := s.signIn(ctx, id, app, signInOpts{})
	if err != nil {
		return nil, err
	}

	log.Info("refresh_token exchanged",
		logger.ClientID(app.ClientID),
		logger.UserID(user.ID),
	)
	return resp, nil
}

// ExchangePassword handles grant_type=password (resource owner credentials).
func (s *tokenService) ExchangePassword(ctx context.Context, req PasswordRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.password"))

	if req.ClientID == "" || req.Username == "" || req.Password == "" {
		return nil, ErrTokenInvalidRequest
	}

	app, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret, "password")
	if err != nil {
		return nil, err
	}

	user, err := s.dal.Users().GetByUsername(ctx, req.Username)
	if err != nil {
		// mismo error que password incorrecto: no filtrar existencia de users
		log.Warn("unknown username")
		return nil, ErrTokenBadUserPassword
	}

	check, err := s.dal.Users().CheckPassword(ctx, user, req.Password, true)
	if err != nil {
		log.Error("password check failed", logger.Err(err))
		return nil, ErrTokenServerError
	}
	switch check {
	case repository.PasswordOK:
		// sigue el flujo
	case repository.PasswordLockedOut:
		log.Warn("account locked out", logger.UserID(user.ID))
		s.notifyLockout(ctx, user)
		return nil, ErrTokenUserLockedOut
	case repository.PasswordNotAllowed:
		log.Warn("user not allowed to sign in", logger.UserID(user.ID))
		return nil, ErrTokenUserNotAllowed
	default:
		log.Warn("invalid credentials", logger.UserID(user.ID))
		return nil, ErrTokenBadUserPassword
	}

	granted, err := s.grantedScopes(app, req.Scope)
	if err != nil {
		return nil, err
	}

	// External: el acceso lo otorga un admin con una authorization permanente
	// previa; sin ella el grant se rechaza.
	if app.ConsentType == repository.ConsentExternal {
		authzs, err := s.dal.Authorizations().Find(ctx, repository.AuthorizationFilter{
			Subject:       user.ID,
			ApplicationID: app.ID,
			Status:        repository.AuthorizationValid,
			Type:          repository.AuthorizationPermanent,
			Scopes:        granted,
		})
		if err != nil {
			log.Error("failed to list authorizations", logger.Err(err))
			return nil, ErrTokenServerError
		}
		if len(authzs) == 0 {
			log.Warn("external consent without prior authorization",
				logger.ClientID(app.ClientID), logger.UserID(user.ID))
			return nil, ErrTokenConsentRequired
		}
	}

	// Cada emisión por password respalda sus tokens con una authorization
	// ad-hoc propia; las permanentes son del authorize endpoint.
	authz, err := s.dal.Authorizations().Create(ctx, repository.CreateAuthorizationInput{
		Subject:       user.ID,
		ApplicationID: app.ID,
		Scopes:        granted,
		Type:          repository.AuthorizationAdHoc,
	})
	if err != nil {
		log.Error("failed to create ad-hoc authorization", logger.Err(err))
		return nil, ErrTokenServerError
	}
	authzID := authz.ID

	id, err := s.buildUserIdentity(ctx, user, granted)
	if err != nil {
		log.Error("failed to build identity", logger.Err(err))
		return nil, ErrTokenServerError
	}
	id.SetAuthorizationID(authzID)

	resp, err := s.signIn(ctx, id, app, signInOpts{})
	if err != nil {
		return nil, err
	}

	log.Info("password exchanged",
		logger.ClientID(app.ClientID),
		logger.UserID(user.ID),
		logger.AuthorizationID(authzID),
	)
	return resp, nil
}

// ExchangeClientCredentials handles grant_type=client_credentials (M2M).
func (s *tokenService) ExchangeClientCredentials(ctx context.Context, req ClientCredentialsRequest) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.clientcreds"))

	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, ErrTokenInvalidRequest
	}

	app, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret, "client_credentials")
	if err != nil {
		return nil, err
	}
	if app.Type != repository.ApplicationTypeConfidential {
		log.Warn("client_credentials requires confidential client")
		return nil, ErrTokenUnauthorizedClient
	}

	granted, err := s.grantedScopes(app, req.Scope)
	if err != nil {
		return nil, err
	}

	// El subject es el propio client; el name viaja como claim informativo.
	id := identity.New().
		SetClaim(identity.ClaimSubject, app.ClientID).
		SetClaim(identity.ClaimName, app.DisplayName).
		SetScopes(granted)

	resources, err := s.dal.Scopes().ListResources(ctx, granted)
	if err != nil {
		log.Error("failed to resolve resources", logger.Err(err))
		return nil, ErrTokenServerError
	}
	id.SetResources(resources)
	id.ApplyDestinations(identity.Destinations)

	access, exp, err := s.issuer.IssueAccess(id, app.ClientID)
	if err != nil {
		log.Error("failed to issue access token", logger.Err(err))
		return nil, ErrTokenServerError
	}

	log.Info("client_credentials exchanged", logger.ClientID(app.ClientID))

	return &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       strings.Join(granted, " "),
	}, nil
}

// ---- helpers ----

// authenticateClient resuelve y autentica el client para un grant.
func (s *tokenService) authenticateClient(ctx context.Context, clientID, clientSecret, grant string) (*repository.Application, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.client"))

	app, err := s.dal.Applications().GetByClientID(ctx, clientID)
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("client not found", logger.ClientID(clientID))
			return nil, ErrTokenInvalidClient
		}
		log.Error("client lookup failed", logger.Err(err))
		return nil, fmt.Errorf("lookup client %s: %w", clientID, err)
	}
	if !app.AllowsGrantType(grant) {
		log.Warn("grant_type not allowed for client",
			logger.ClientID(clientID), logger.GrantType(grant))
		return nil, ErrTokenUnauthorizedClient
	}
	if app.Type == repository.ApplicationTypeConfidential {
		if clientSecret == "" || !s.dal.Applications().CheckSecret(app, clientSecret) {
			log.Warn("client authentication failed", logger.ClientID(clientID))
			return nil, ErrTokenInvalidClient
		}
	}
	return app, nil
}

// grantedScopes valida los scopes pedidos contra los registrados del client.
// Sin scope pedido se otorgan todos los del client.
func (s *tokenService) grantedScopes(app *repository.Application, scope string) ([]string, error) {
	if scope == "" {
		return append([]string(nil), app.Scopes...), nil
	}
	requested := strings.Fields(scope)
	if len(app.Scopes) > 0 && !subset(requested, app.Scopes) {
		return nil, ErrTokenInvalidScope
	}
	return requested, nil
}

// buildUserIdentity construye el principal efímero desde el estado actual del
// user. El security_stamp entra como claim pero nunca recibe destino.
func (s *tokenService) buildUserIdentity(ctx context.Context, user *repository.User, scopes []string) (*identity.Identity, error) {
	id := identity.New().
		SetClaim(identity.ClaimSubject, user.ID).
		SetClaim(identity.ClaimName, user.Name).
		SetClaim(identity.ClaimPreferredUsername, user.Username).
		SetClaim(identity.ClaimEmail, user.Email).
		SetClaim(identity.ClaimSecurityStamp, user.SecurityStamp).
		SetClaims(identity.ClaimRole, user.Roles).
		SetScopes(scopes)

	resources, err := s.dal.Scopes().ListResources(ctx, scopes)
	if err != nil {
		return nil, err
	}
	id.SetResources(resources)
	return id, nil
}

type signInOpts struct {
	nonce string
}

// signIn materializa la identidad en tokens: access siempre, id_token con
// scope openid, refresh token con scope offline_access.
func (s *tokenService) signIn(ctx context.Context, id *identity.Identity, app *repository.Application, opts signInOpts) (*TokenResponse, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Op("oauth.token.signin"))

	id.ApplyDestinations(identity.Destinations)

	access, exp, err := s.issuer.IssueAccess(id, app.ClientID)
	if err != nil {
		log.Error("failed to issue access token", logger.Err(err))
		return nil, ErrTokenServerError
	}

	resp := &TokenResponse{
		AccessToken: access,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(exp).Seconds()),
		Scope:       strings.Join(id.Scopes(), " "),
	}

	if id.HasScope(identity.ScopeOpenID) {
		extra := map[string]any{"at_hash": atHash(access), "azp": app.ClientID}
		if opts.nonce != "" {
			extra["nonce"] = opts.nonce
		}
		idToken, _, err := s.issuer.IssueIDToken(id, app.ClientID, extra)
		if err != nil {
			log.Error("failed to issue id_token", logger.Err(err))
			return nil, ErrTokenServerError
		}
		resp.IDToken = idToken
	}

	if id.HasScope(identity.ScopeOffline) {
		raw, err := s.createRefreshToken(ctx, app, id)
		if err != nil {
			log.Error("failed to create refresh token", logger.Err(err))
			return nil, ErrTokenServerError
		}
		resp.RefreshToken = raw
	}

	return resp, nil
}

// createRefreshToken genera el opaco, guarda solo el hash.
func (s *tokenService) createRefreshToken(ctx context.Context, app *repository.Application, id *identity.Identity) (string, error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	_, err = s.dal.Tokens().Create(ctx, repository.CreateRefreshTokenInput{
		AuthorizationID: id.AuthorizationID(),
		ApplicationID:   app.ID,
		Subject:         id.Claim(identity.ClaimSubject),
		TokenHash:       tokens.SHA256Base64URL(raw),
		Scopes:          id.Scopes(),
		TTL:             s.refreshTTL,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// notifyLockout avisa por correo el bloqueo de la cuenta. Best-effort.
func (s *tokenService) notifyLockout(ctx context.Context, user *repository.User) {
	if user.Email == "" {
		return
	}
	msg := email.Message{
		To:      user.Email,
		Subject: "Tu cuenta fue bloqueada temporalmente",
		Body: "Detectamos varios intentos de inicio de sesión fallidos y bloqueamos " +
			"tu cuenta temporalmente. Si no fuiste vos, cambiá tu contraseña.",
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		logger.From(ctx).Warn("failed to send lockout email", logger.Err(err))
	}
}

// atHash es el left-half SHA256 del access token, base64url (OIDC at_hash).
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}

func subset(want, have []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
