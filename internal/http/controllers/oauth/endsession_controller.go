package oauth

import (
	"net/http"
	"strings"

	svc "github.com/dropDatabas3/dearjane/internal/http/services/oauth"
	"github.com/dropDatabas3/dearjane/internal/http/services/session"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
)

// EndSessionController handles GET/POST /connect/endsession.
type EndSessionController struct {
	service  svc.EndSessionService
	sessions *session.Manager
}

// NewEndSessionController creates the controller.
func NewEndSessionController(s svc.EndSessionService, sm *session.Manager) *EndSessionController {
	return &EndSessionController{service: s, sessions: sm}
}

// EndSession handles GET/POST /connect/endsession.
func (c *EndSessionController) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.endsession"))

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeOAuthError(w, http.StatusMethodNotAllowed, "invalid_request", "Only GET and POST are allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "Invalid form data")
		return
	}
	get := func(k string) string { return strings.TrimSpace(r.Form.Get(k)) }

	req := svc.EndSessionRequest{
		IDTokenHint:           get("id_token_hint"),
		PostLogoutRedirectURI: get("post_logout_redirect_uri"),
		State:                 get("state"),
		ClientID:              get("client_id"),
		Prompt:                get("prompt"),
	}

	sessionUserID := ""
	if sess := c.sessions.FromRequest(r); sess != nil {
		sessionUserID = sess.UserID
	}

	res, err := c.service.EndSession(ctx, req, sessionUserID)
	if err != nil {
		switch err {
		case svc.ErrEndSessionLoginRequired:
			writeOAuthError(w, http.StatusBadRequest, "login_required",
				"The user is not logged in.")
		case svc.ErrEndSessionInvalidRequest:
			writeOAuthError(w, http.StatusBadRequest, "invalid_request",
				"The logout request is invalid.")
		case svc.ErrEndSessionInvalidClient:
			writeOAuthError(w, http.StatusBadRequest, "invalid_client",
				"The client application cannot be found.")
		default:
			log.Error("endsession endpoint error", logger.Err(err))
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "An unexpected error occurred")
		}
		return
	}

	// el challenge de login no destruye nada: el user vuelve acá tras loguearse
	if res.Kind == svc.EndSessionLogin {
		http.Redirect(w, r, res.RedirectURI, http.StatusFound)
		return
	}

	// la sesión local muere siempre, incluso sin post_logout_redirect_uri
	c.sessions.Destroy(ctx, w, r)
	http.Redirect(w, r, res.RedirectURI, http.StatusFound)
}
