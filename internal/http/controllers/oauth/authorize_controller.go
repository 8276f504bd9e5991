package oauth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/dearjane/internal/http/services/oauth"
	"github.com/dropDatabas3/dearjane/internal/http/services/session"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
)

// AuthorizeController handles GET/POST /connect/authorize.
type AuthorizeController struct {
	service  svc.AuthorizeService
	sessions *session.Manager
}

// NewAuthorizeController creates the controller.
func NewAuthorizeController(s svc.AuthorizeService, sm *session.Manager) *AuthorizeController {
	return &AuthorizeController{service: s, sessions: sm}
}

// Authorize handles GET/POST /connect/authorize.
func (c *AuthorizeController) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"))

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "Only GET and POST are allowed")
		return
	}
	req, err := parseAuthorizeRequest(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
		return
	}

	sess := c.sessions.FromRequest(r)
	res, err := c.service.Authorize(ctx, req, sess)
	if err != nil {
		log.Error("authorize endpoint error", logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "An unexpected error occurred")
		return
	}
	c.render(w, r, res)
}

// Decide handles POST /connect/authorize/decision (submit del consent form).
func (c *AuthorizeController) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize.decide"))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "Only POST method is allowed")
		return
	}
	req, err := parseAuthorizeRequest(r)
	if err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
		return
	}

	accept := r.PostForm.Get("submit.Accept") != "" ||
		strings.EqualFold(r.PostForm.Get("decision"), "accept")

	sess := c.sessions.FromRequest(r)
	res, err := c.service.Decide(ctx, req, sess, accept)
	if err != nil {
		log.Error("consent decision error", logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "An unexpected error occurred")
		return
	}
	c.render(w, r, res)
}

func (c *AuthorizeController) render(w http.ResponseWriter, r *http.Request, res *svc.AuthorizeResult) {
	switch res.Kind {
	case svc.ResultError:
		writeOAuthError(w, http.StatusBadRequest, res.Error, res.Description)
	default:
		http.Redirect(w, r, res.RedirectURI, http.StatusFound)
	}
}

// parseAuthorizeRequest junta query y form (GET o POST form-encoded).
func parseAuthorizeRequest(r *http.Request) (svc.AuthorizeRequest, error) {
	if err := r.ParseForm(); err != nil {
		return svc.AuthorizeRequest{}, err
	}
	get := func(k string) string { return strings.TrimSpace(r.Form.Get(k)) }
	return svc.AuthorizeRequest{
		ClientID:            get("client_id"),
		RedirectURI:         get("redirect_uri"),
		ResponseType:        get("response_type"),
		Scope:               get("scope"),
		State:               get("state"),
		Nonce:               get("nonce"),
		CodeChallenge:       get("code_challenge"),
		CodeChallengeMethod: get("code_challenge_method"),
		Prompt:              get("prompt"),
		MaxAge:              get("max_age"),
	}, nil
}
