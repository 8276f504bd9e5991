// Package session maneja las sesiones de navegador del IdP: cookie sid con
// token opaco, estado en cache (hash del token como key).
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dropDatabas3/dearjane/internal/cache"
	"github.com/dropDatabas3/dearjane/internal/observability/logger"
	tokens "github.com/dropDatabas3/dearjane/internal/security/token"
)

// Session es el estado de una sesión de navegador activa.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	AuthTime  time.Time `json:"auth_time"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CookieConfig configura la cookie de sesión.
type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// Manager emite, resuelve y destruye sesiones.
type Manager struct {
	cache  cache.Cache
	cookie CookieConfig
}

// NewManager crea un Manager.
func NewManager(c cache.Cache, cookie CookieConfig) *Manager {
	if cookie.Name == "" {
		cookie.Name = "sid"
	}
	if cookie.TTL <= 0 {
		cookie.TTL = 12 * time.Hour
	}
	if cookie.SameSite == 0 {
		cookie.SameSite = http.SameSiteLaxMode
	}
	return &Manager{cache: c, cookie: cookie}
}

func sessionKey(rawSID string) string {
	return "sess:" + tokens.SHA256Base64URL(rawSID)
}

// Issue crea una sesión nueva para el user y setea la cookie.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, userID string) (*Session, error) {
	raw, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        raw,
		UserID:    userID,
		AuthTime:  now,
		ExpiresAt: now.Add(m.cookie.TTL),
	}
	// en cache solo viaja el estado, nunca el token crudo
	stored := *sess
	stored.ID = ""
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	m.cache.Set(sessionKey(raw), data, m.cookie.TTL)

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    raw,
		Path:     "/",
		Domain:   m.cookie.Domain,
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
	})

	logger.From(ctx).Info("session issued", logger.UserID(userID))
	return sess, nil
}

// FromRequest resuelve la sesión del request desde la cookie. Retorna nil si
// no hay sesión válida.
func (m *Manager) FromRequest(r *http.Request) *Session {
	c, err := r.Cookie(m.cookie.Name)
	if err != nil || c.Value == "" {
		return nil
	}
	data, ok := m.cache.Get(sessionKey(c.Value))
	if !ok {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		m.cache.Delete(sessionKey(c.Value))
		return nil
	}
	sess.ID = c.Value
	return &sess
}

// Destroy elimina la sesión del request (si existe) y borra la cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(m.cookie.Name); err == nil && c.Value != "" {
		m.cache.Delete(sessionKey(c.Value))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   m.cookie.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: m.cookie.SameSite,
	})
	logger.From(ctx).Debug("session destroyed")
}
