package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/api"
	"ticketkenya/internal/models"
	"ticketkenya/internal/store"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "3", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test"))
	require.NoError(t, err)
	return s
}

type backend struct {
	srv       *httptest.Server
	meCalls   atomic.Int32
	meStatus  int
	loginBody models.AuthResponse
}

func newBackend(t *testing.T) *backend {
	b := &backend{meStatus: http.StatusOK}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(b.loginBody)
		case "/auth/register":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "Check your inbox"})
		case "/users/me":
			b.meCalls.Add(1)
			if b.meStatus != http.StatusOK {
				w.WriteHeader(b.meStatus)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid token"})
				return
			}
			_ = json.NewEncoder(w).Encode(models.User{UserID: 3, Firstname: "Fresh", Role: models.RoleAdmin})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newManager(b *backend, p store.Persister) (*Manager, *store.Store) {
	st := store.New(store.WithPersister(p))
	client := api.New(b.srv.URL, api.WithTokenSource(st))
	return NewManager(client, st), st
}

func TestLoginPrefersUserTypeForRole(t *testing.T) {
	b := newBackend(t)
	b.loginBody = models.AuthResponse{
		User:     &models.User{UserID: 3, Email: "a@b.c", Role: models.RoleUser},
		Token:    "tok",
		UserType: models.RoleAdmin,
	}
	m, st := newManager(b, store.NewMemoryPersister())

	_, err := m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	auth := st.Auth()
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, "tok", auth.Token)
	assert.Equal(t, models.RoleAdmin, auth.UserRole)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	b := newBackend(t)
	b.loginBody = models.AuthResponse{Message: "ok"}
	m, st := newManager(b, store.NewMemoryPersister())

	_, err := m.Login(context.Background(), "a@b.c", "pw")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, st.Auth().IsAuthenticated)

	_, err = m.Login(context.Background(), " ", "pw")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRegisterDoesNotLogIn(t *testing.T) {
	b := newBackend(t)
	m, st := newManager(b, store.NewMemoryPersister())

	msg, err := m.Register(context.Background(), models.RegisterRequest{Email: "n@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Check your inbox", msg)
	assert.False(t, st.Auth().IsAuthenticated)
}

func TestLogoutClearsStateAndPersistence(t *testing.T) {
	b := newBackend(t)
	b.loginBody = models.AuthResponse{User: &models.User{UserID: 3}, Token: "tok", Role: models.RoleUser}
	p := store.NewMemoryPersister()
	m, st := newManager(b, p)
	ctx := context.Background()

	_, err := m.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)
	data, _ := p.Load(ctx, store.AuthKey)
	require.NotNil(t, data)

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, models.AuthState{}, st.Auth())
	data, _ = p.Load(ctx, store.AuthKey)
	assert.Nil(t, data)
}

func persisted(t *testing.T, p store.Persister, token string) {
	t.Helper()
	seed := store.New(store.WithPersister(p))
	require.NoError(t, seed.Dispatch(context.Background(), store.SetCredentials{
		User:  &models.User{UserID: 3, Firstname: "Stale", Role: models.RoleUser},
		Token: token,
	}))
}

func TestRestoreExpiredTokenSkipsNetwork(t *testing.T) {
	b := newBackend(t)
	p := store.NewMemoryPersister()
	persisted(t, p, signedToken(t, time.Now().Add(-time.Hour)))
	m, st := newManager(b, p)

	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.EqualValues(t, 0, b.meCalls.Load())
	assert.Equal(t, models.AuthState{}, st.Auth())
}

func TestRestoreResyncsProfileFromBackend(t *testing.T) {
	b := newBackend(t)
	p := store.NewMemoryPersister()
	persisted(t, p, signedToken(t, time.Now().Add(time.Hour)))
	m, _ := newManager(b, p)

	auth, err := m.Restore(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.meCalls.Load())
	assert.Equal(t, "Fresh", auth.User.Firstname)
	assert.Equal(t, models.RoleAdmin, auth.UserRole)
}

func TestRestoreClearsOnUnauthorized(t *testing.T) {
	b := newBackend(t)
	b.meStatus = http.StatusUnauthorized
	p := store.NewMemoryPersister()
	persisted(t, p, "opaque-token")
	m, st := newManager(b, p)

	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, st.Auth().IsAuthenticated)
}

func TestRestoreKeepsSessionOnServerError(t *testing.T) {
	b := newBackend(t)
	b.meStatus = http.StatusInternalServerError
	p := store.NewMemoryPersister()
	persisted(t, p, "opaque-token")
	m, st := newManager(b, p)

	_, err := m.Restore(context.Background())
	assert.ErrorIs(t, err, api.ErrServer)
	assert.Equal(t, "opaque-token", st.Token())
}

func TestSyncProfileOnlyWhenAuthenticated(t *testing.T) {
	b := newBackend(t)
	m, st := newManager(b, store.NewMemoryPersister())
	ctx := context.Background()

	require.NoError(t, m.SyncProfile(ctx, &models.User{UserID: 1}))
	assert.Nil(t, st.Auth().User)

	require.NoError(t, st.Dispatch(ctx, store.SetCredentials{User: &models.User{UserID: 1}, Token: "t"}))
	require.NoError(t, m.SyncProfile(ctx, &models.User{UserID: 1, Firstname: "New"}))
	assert.Equal(t, "New", st.Auth().User.Firstname)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	assert.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("not-a-jwt")
	assert.False(t, ok)
}
