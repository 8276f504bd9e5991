package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cachemem "github.com/dropDatabas3/dearjane/internal/cache/memory"
)

func TestManager_IssueAndResolve(t *testing.T) {
	kv := cachemem.New(time.Minute)
	m := NewManager(kv, CookieConfig{Name: "sid", TTL: time.Hour})
	ctx := context.Background()

	rec := httptest.NewRecorder()
	sess, err := m.Issue(ctx, rec, "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "sid", cookies[0].Name)
	require.Equal(t, sess.ID, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/connect/authorize", nil)
	req.AddCookie(cookies[0])
	got := m.FromRequest(req)
	require.NotNil(t, got)
	require.Equal(t, "user-1", got.UserID)
	require.Equal(t, sess.ID, got.ID)
}

func TestManager_UnknownCookie(t *testing.T) {
	kv := cachemem.New(time.Minute)
	m := NewManager(kv, CookieConfig{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Nil(t, m.FromRequest(req))

	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged-session-id"})
	require.Nil(t, m.FromRequest(req))
}

func TestManager_Destroy(t *testing.T) {
	kv := cachemem.New(time.Minute)
	m := NewManager(kv, CookieConfig{})
	ctx := context.Background()

	rec := httptest.NewRecorder()
	sess, err := m.Issue(ctx, rec, "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/connect/endsession", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: sess.ID})

	rec2 := httptest.NewRecorder()
	m.Destroy(ctx, rec2, req)

	// la cookie se borra y la sesión ya no resuelve
	cookies := rec2.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
	require.Nil(t, m.FromRequest(req))
}
