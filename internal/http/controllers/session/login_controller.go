// Package session - controllers del login interactivo y el consent form.
package session

import (
	"html/template"
	"net/http"
	"net/url"
	"strings"

	svcsession "github.com/dropDatabas3/dearjane/internal/http/services/session"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
)

// LoginController sirve la UI mínima de login/consent y procesa el submit.
type LoginController struct {
	login    svcsession.LoginService
	sessions *svcsession.Manager
}

// NewLoginController creates the controller.
func NewLoginController(l svcsession.LoginService, sm *svcsession.Manager) *LoginController {
	return &LoginController{login: l, sessions: sm}
}

var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html><head><title>Sign in</title></head><body>
<h1>Sign in</h1>
{{if .Error}}<p style="color:red">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <input type="hidden" name="return_to" value="{{.ReturnTo}}">
  <label>Username <input name="username" autocomplete="username"></label><br>
  <label>Password <input name="password" type="password" autocomplete="current-password"></label><br>
  <button type="submit">Sign in</button>
</form>
</body></html>`))

var consentTmpl = template.Must(template.New("consent").Parse(`<!doctype html>
<html><head><title>Authorize</title></head><body>
<h1>Authorize {{.ClientID}}</h1>
<p>The application is requesting: {{.Scope}}</p>
<form method="post" action="/connect/authorize/decision">
{{range $k, $vs := .Params}}{{range $vs}}<input type="hidden" name="{{$k}}" value="{{.}}">
{{end}}{{end}}
  <button type="submit" name="submit.Accept" value="yes">Allow</button>
  <button type="submit" name="submit.Deny" value="yes">Deny</button>
</form>
</body></html>`))

// LoginForm handles GET /login.
func (c *LoginController) LoginForm(w http.ResponseWriter, r *http.Request) {
	c.renderLogin(w, r, "")
}

// Login handles POST /login.
func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.login"))

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	pass := r.PostForm.Get("password")

	user, err := c.login.Login(ctx, username, pass)
	if err != nil {
		msg := "Invalid username or password."
		switch err {
		case svcsession.ErrLoginLockedOut:
			msg = "The account is locked out."
		case svcsession.ErrLoginNotAllowed:
			msg = "The account is not allowed to sign in."
		}
		c.renderLogin(w, r, msg)
		return
	}

	if _, err := c.sessions.Issue(ctx, w, user.ID); err != nil {
		log.Error("failed to issue session", logger.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, safeReturnTo(r.PostForm.Get("return_to")), http.StatusFound)
}

// ConsentForm handles GET /consent: re-emite los parámetros del authorize
// request como hidden fields hacia el decision endpoint.
func (c *LoginController) ConsentForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := struct {
		ClientID string
		Scope    string
		Params   url.Values
	}{
		ClientID: q.Get("client_id"),
		Scope:    q.Get("scope"),
		Params:   q,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = consentTmpl.Execute(w, data)
}

func (c *LoginController) renderLogin(w http.ResponseWriter, r *http.Request, errMsg string) {
	data := struct {
		ReturnTo string
		Error    string
	}{
		ReturnTo: safeReturnTo(firstNonEmpty(r.URL.Query().Get("return_to"), r.FormValue("return_to"))),
		Error:    errMsg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if errMsg != "" {
		w.WriteHeader(http.StatusUnauthorized)
	}
	_ = loginTmpl.Execute(w, data)
}

// safeReturnTo solo acepta paths locales (anti open-redirect).
func safeReturnTo(v string) string {
	if v == "" || !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return "/"
	}
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
