// Package memory implementa store.DataAccessLayer en memoria. Se usa en
// tests y en modo dev (sin DATABASE_URL).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/dearjane/internal/domain/repository"
	"github.com/dropDatabas3/dearjane/internal/security/password"
	"github.com/dropDatabas3/dearjane/internal/store"
)

const (
	defaultMaxFailedLogins = 5
	defaultLockoutWindow   = 15 * time.Minute
)

// Store es un DataAccessLayer en memoria, seguro para uso concurrente.
type Store struct {
	mu sync.RWMutex

	usersByID       map[string]*repository.User
	usersByUsername map[string]string // username -> id
	apps            map[string]*repository.Application
	authorizations  map[string]*repository.Authorization
	tokensByID      map[string]*repository.RefreshToken
	tokensByHash    map[string]string // hash -> id
	scopes          map[string]repository.Scope

	MaxFailedLogins int
	LockoutWindow   time.Duration

	users  *userRepo
	appsR  *appRepo
	authzR *authzRepo
	tokens *tokenRepo
	scopeR *scopeRepo
}

// New crea un Store vacío.
func New() *Store {
	s := &Store{
		usersByID:       make(map[string]*repository.User),
		usersByUsername: make(map[string]string),
		apps:            make(map[string]*repository.Application),
		authorizations:  make(map[string]*repository.Authorization),
		tokensByID:      make(map[string]*repository.RefreshToken),
		tokensByHash:    make(map[string]string),
		scopes:          make(map[string]repository.Scope),
		MaxFailedLogins: defaultMaxFailedLogins,
		LockoutWindow:   defaultLockoutWindow,
	}
	s.users = &userRepo{s: s}
	s.appsR = &appRepo{s: s}
	s.authzR = &authzRepo{s: s}
	s.tokens = &tokenRepo{s: s}
	s.scopeR = &scopeRepo{s: s}
	return s
}

var _ store.DataAccessLayer = (*Store)(nil)

func (s *Store) Users() repository.UserRepository                   { return s.users }
func (s *Store) Applications() repository.ApplicationRepository     { return s.appsR }
func (s *Store) Authorizations() repository.AuthorizationRepository { return s.authzR }
func (s *Store) Tokens() repository.TokenRepository                 { return s.tokens }
func (s *Store) Scopes() repository.ScopeRepository                 { return s.scopeR }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

// --- users ---

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.usersByID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneUser(u)
	return &cp, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.usersByUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneUser(r.s.usersByID[id])
	return &cp, nil
}

func (r *userRepo) CheckPassword(_ context.Context, user *repository.User, plain string, lockoutOnFailure bool) (repository.PasswordCheck, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.usersByID[user.ID]
	if !ok {
		return repository.PasswordInvalid, repository.ErrNotFound
	}
	now := time.Now().UTC()

	if stored.LockedUntil != nil && now.Before(*stored.LockedUntil) {
		return repository.PasswordLockedOut, nil
	}
	if !password.Verify(stored.PasswordHash, plain) {
		if lockoutOnFailure {
			stored.FailedLogins++
			if stored.FailedLogins >= r.s.MaxFailedLogins {
				until := now.Add(r.s.LockoutWindow)
				stored.LockedUntil = &until
				stored.FailedLogins = 0
				return repository.PasswordLockedOut, nil
			}
		}
		return repository.PasswordInvalid, nil
	}
	if stored.DisabledAt != nil {
		return repository.PasswordNotAllowed, nil
	}
	stored.FailedLogins = 0
	stored.LockedUntil = nil
	return repository.PasswordOK, nil
}

func (r *userRepo) Create(_ context.Context, input repository.CreateUserInput) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.usersByUsername[input.Username]; exists {
		return nil, repository.ErrConflict
	}
	now := time.Now().UTC()
	u := &repository.User{
		ID:            uuid.NewString(),
		Username:      input.Username,
		Email:         input.Email,
		EmailVerified: input.EmailVerified,
		Name:          input.Name,
		PhoneNumber:   input.PhoneNumber,
		PhoneVerified: input.PhoneVerified,
		Roles:         append([]string(nil), input.Roles...),
		PasswordHash:  input.PasswordHash,
		SecurityStamp: uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.s.usersByID[u.ID] = u
	r.s.usersByUsername[u.Username] = u.ID
	cp := cloneUser(u)
	return &cp, nil
}

func (r *userRepo) SetRoles(_ context.Context, userID string, roles []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usersByID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Roles = append([]string(nil), roles...)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *userRepo) Disable(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.usersByID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	u.DisabledAt = &now
	u.UpdatedAt = now
	return nil
}

func cloneUser(u *repository.User) repository.User {
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	return cp
}

// --- applications ---

type appRepo struct{ s *Store }

func (r *appRepo) GetByClientID(_ context.Context, clientID string) (*repository.Application, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	app, ok := r.s.apps[clientID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneApp(app)
	return &cp, nil
}

func (r *appRepo) Create(_ context.Context, input repository.ApplicationInput) (*repository.Application, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.apps[input.ClientID]; exists {
		return nil, repository.ErrConflict
	}
	app := &repository.Application{
		ID:                     uuid.NewString(),
		ClientID:               input.ClientID,
		DisplayName:            input.DisplayName,
		Type:                   input.Type,
		ConsentType:            input.ConsentType,
		RedirectURIs:           append([]string(nil), input.RedirectURIs...),
		PostLogoutRedirectURIs: append([]string(nil), input.PostLogoutRedirectURIs...),
		Scopes:                 append([]string(nil), input.Scopes...),
		GrantTypes:             append([]string(nil), input.GrantTypes...),
	}
	if input.Secret != "" {
		hash, err := password.Hash(input.Secret)
		if err != nil {
			return nil, err
		}
		app.SecretHash = hash
	}
	if app.ConsentType == "" {
		app.ConsentType = repository.ConsentExplicit
	}
	r.s.apps[app.ClientID] = app
	cp := cloneApp(app)
	return &cp, nil
}

func (r *appRepo) CheckSecret(app *repository.Application, secret string) bool {
	if app.SecretHash == "" {
		return false
	}
	return password.Verify(app.SecretHash, secret)
}

func cloneApp(a *repository.Application) repository.Application {
	cp := *a
	cp.RedirectURIs = append([]string(nil), a.RedirectURIs...)
	cp.PostLogoutRedirectURIs = append([]string(nil), a.PostLogoutRedirectURIs...)
	cp.Scopes = append([]string(nil), a.Scopes...)
	cp.GrantTypes = append([]string(nil), a.GrantTypes...)
	return cp
}

// --- authorizations ---

type authzRepo struct{ s *Store }

func (r *authzRepo) Find(_ context.Context, f repository.AuthorizationFilter) ([]repository.Authorization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []repository.Authorization
	for _, a := range r.s.authorizations {
		if f.Subject != "" && a.Subject != f.Subject {
			continue
		}
		if f.ApplicationID != "" && a.ApplicationID != f.ApplicationID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if !coversAll(a.Scopes, f.Scopes) {
			continue
		}
		out = append(out, cloneAuthz(a))
	}
	sortAuthz(out)
	return out, nil
}

func (r *authzRepo) GetByID(_ context.Context, id string) (*repository.Authorization, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.authorizations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneAuthz(a)
	return &cp, nil
}

func (r *authzRepo) Create(_ context.Context, input repository.CreateAuthorizationInput) (*repository.Authorization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := &repository.Authorization{
		ID:            uuid.NewString(),
		Subject:       input.Subject,
		ApplicationID: input.ApplicationID,
		Scopes:        append([]string(nil), input.Scopes...),
		Type:          input.Type,
		Status:        repository.AuthorizationValid,
		CreatedAt:     time.Now().UTC(),
	}
	r.s.authorizations[a.ID] = a
	cp := cloneAuthz(a)
	return &cp, nil
}

func (r *authzRepo) TryRevoke(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.authorizations[id]
	if !ok || a.Status == repository.AuthorizationRevoked {
		return false, nil
	}
	now := time.Now().UTC()
	a.Status = repository.AuthorizationRevoked
	a.RevokedAt = &now
	return true, nil
}

func cloneAuthz(a *repository.Authorization) repository.Authorization {
	cp := *a
	cp.Scopes = append([]string(nil), a.Scopes...)
	return cp
}

func sortAuthz(list []repository.Authorization) {
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].CreatedAt.Before(list[j-1].CreatedAt); j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
}

func coversAll(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// --- refresh tokens ---

type tokenRepo struct{ s *Store }

func (r *tokenRepo) Create(_ context.Context, input repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	t := &repository.RefreshToken{
		ID:              uuid.NewString(),
		AuthorizationID: input.AuthorizationID,
		ApplicationID:   input.ApplicationID,
		Subject:         input.Subject,
		TokenHash:       input.TokenHash,
		Scopes:          append([]string(nil), input.Scopes...),
		Status:          repository.TokenValid,
		CreatedAt:       now,
		ExpiresAt:       now.Add(input.TTL),
	}
	r.s.tokensByID[t.ID] = t
	r.s.tokensByHash[t.TokenHash] = t.ID
	cp := cloneToken(t)
	return &cp, nil
}

func (r *tokenRepo) GetByHash(_ context.Context, hash string) (*repository.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.tokensByHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := cloneToken(r.s.tokensByID[id])
	return &cp, nil
}

func (r *tokenRepo) Find(_ context.Context, f repository.TokenFilter) ([]repository.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []repository.RefreshToken
	for _, t := range r.s.tokensByID {
		if f.Subject != "" && t.Subject != f.Subject {
			continue
		}
		if f.ApplicationID != "" && t.ApplicationID != f.ApplicationID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, cloneToken(t))
	}
	return out, nil
}

func (r *tokenRepo) TryRevoke(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokensByID[id]
	if !ok || t.Status == repository.TokenRevoked {
		return false, nil
	}
	now := time.Now().UTC()
	t.Status = repository.TokenRevoked
	t.RevokedAt = &now
	return true, nil
}

func cloneToken(t *repository.RefreshToken) repository.RefreshToken {
	cp := *t
	cp.Scopes = append([]string(nil), t.Scopes...)
	return cp
}

// --- scopes ---

type scopeRepo struct{ s *Store }

func (r *scopeRepo) Get(_ context.Context, name string) (*repository.Scope, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sc, ok := r.s.scopes[name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := sc
	cp.Resources = append([]string(nil), sc.Resources...)
	return &cp, nil
}

func (r *scopeRepo) ListResources(_ context.Context, scopes []string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, name := range scopes {
		sc, ok := r.s.scopes[name]
		if !ok {
			continue
		}
		for _, res := range sc.Resources {
			if _, dup := seen[res]; dup {
				continue
			}
			seen[res] = struct{}{}
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *scopeRepo) Upsert(_ context.Context, scope repository.Scope) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	scope.Resources = append([]string(nil), scope.Resources...)
	r.s.scopes[scope.Name] = scope
	return nil
}
