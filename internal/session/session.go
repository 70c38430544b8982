// Package session logs users in and out and restores a persisted session
// on startup.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"ticketkenya/internal/api"
	"ticketkenya/internal/logger"
	"ticketkenya/internal/models"
	"ticketkenya/internal/store"
)

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrNoToken            = errors.New("login response carried no token")
	ErrSessionExpired     = errors.New("session expired, please log in again")
)

// Resetter drops cached server data on logout.
type Resetter interface {
	Reset()
}

type Manager struct {
	client *api.Client
	store  *store.Store
	cache  Resetter
	logger *logger.Logger
	now    func() time.Time
}

type Option func(*Manager)

func WithCache(r Resetter) Option {
	return func(m *Manager) { m.cache = r }
}

func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(client *api.Client, st *store.Store, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		store:  st,
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Store() *store.Store { return m.store }

func (m *Manager) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	res, err := m.client.Auth.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		m.logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("%s: %v", email, err))
		return nil, fmt.Errorf("login: %w", err)
	}
	if res == nil || res.Token == "" {
		return nil, ErrNoToken
	}

	role := res.ResolvedRole()
	if err := m.store.Dispatch(ctx, store.SetCredentials{User: res.User, Token: res.Token, Role: role}); err != nil {
		m.logger.Warn("SESSION", fmt.Sprintf("Session not persisted: %v", err))
	}
	m.logger.LogSession("LOGIN", fmt.Sprintf("%s as %s", email, role))
	return res, nil
}

// Register creates the account and returns the backend's message. The new
// user still has to log in.
func (m *Manager) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return "", ErrMissingCredentials
	}
	res, err := m.client.Auth.Register(ctx, req)
	if err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	msg := "Registration successful"
	if res != nil && res.Message != "" {
		msg = res.Message
	}
	m.logger.LogSession("REGISTER", req.Email)
	return msg, nil
}

// Logout clears token, user, role and the authenticated flag and removes
// the persisted namespace.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.store.Dispatch(ctx, store.ClearCredentials{})
	if m.cache != nil {
		m.cache.Reset()
	}
	m.logger.LogSession("LOGOUT", "credentials cleared")
	return err
}

// Restore rehydrates the persisted session and re-validates it against the
// backend. The returned state is what the rest of the client should trust.
func (m *Manager) Restore(ctx context.Context) (models.AuthState, error) {
	if err := m.store.Rehydrate(ctx); err != nil {
		m.logger.Warn("SESSION", fmt.Sprintf("Ignoring unreadable session: %v", err))
		_ = m.store.Dispatch(ctx, store.ClearCredentials{})
		return models.AuthState{}, nil
	}

	auth := m.store.Auth()
	if auth.Token == "" {
		if auth.User != nil {
			_ = m.store.Dispatch(ctx, store.ClearCredentials{})
		}
		return models.AuthState{}, nil
	}

	if exp, ok := TokenExpiry(auth.Token); ok && !exp.After(m.now()) {
		m.logger.LogSession("EXPIRED", fmt.Sprintf("token expired at %s", exp.Format(time.RFC3339)))
		_ = m.Logout(ctx)
		return models.AuthState{}, ErrSessionExpired
	}

	user, err := m.client.Users.Me(ctx)
	switch {
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, api.ErrForbidden):
		m.logger.LogSession("REJECTED", err.Error())
		_ = m.Logout(ctx)
		return models.AuthState{}, ErrSessionExpired
	case err != nil:
		return auth, fmt.Errorf("verify session: %w", err)
	case user == nil:
		return auth, fmt.Errorf("verify session: empty profile")
	}

	role := auth.UserRole
	if user.Role != "" {
		role = user.Role
	}
	if err := m.store.Dispatch(ctx, store.SetCredentials{User: user, Token: auth.Token, Role: role}); err != nil {
		m.logger.Warn("SESSION", fmt.Sprintf("Session not persisted: %v", err))
	}
	m.logger.LogSession("RESTORE", fmt.Sprintf("user %d as %s", user.UserID, role))
	return m.store.Auth(), nil
}

// SyncProfile copies a freshly fetched profile into the session.
func (m *Manager) SyncProfile(ctx context.Context, user *models.User) error {
	if user == nil || !m.store.Auth().IsAuthenticated {
		return nil
	}
	return m.store.Dispatch(ctx, store.SetUser{User: user})
}

// TokenExpiry reads the exp claim without verifying the signature. ok is
// false for opaque tokens and tokens without exp.
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
