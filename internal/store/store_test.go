package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/models"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

var alice = &models.User{UserID: 3, Firstname: "Alice", Email: "alice@example.com", Role: models.RoleAdmin}

func TestReduceSetCredentialsResolvesRole(t *testing.T) {
	s := Reduce(AppState{}, SetCredentials{User: alice, Token: "t"})
	assert.True(t, s.Auth.IsAuthenticated)
	assert.Equal(t, models.RoleAdmin, s.Auth.UserRole)

	s = Reduce(AppState{}, SetCredentials{User: &models.User{UserID: 1}, Token: "t"})
	assert.Equal(t, models.RoleUser, s.Auth.UserRole)

	s = Reduce(AppState{}, SetCredentials{User: alice, Token: "t", Role: models.RoleUser})
	assert.Equal(t, models.RoleUser, s.Auth.UserRole)
}

func TestReduceDoesNotAliasUser(t *testing.T) {
	u := &models.User{UserID: 1, Firstname: "A"}
	s := Reduce(AppState{}, SetCredentials{User: u, Token: "t"})
	u.Firstname = "B"
	assert.Equal(t, "A", s.Auth.User.Firstname)
}

func TestReduceFilters(t *testing.T) {
	s := Reduce(AppState{}, SetFilters{Filters: models.EventFilters{Category: " Music ", Date: "2025-01-01", Location: "Nairobi"}})
	assert.Equal(t, models.EventFilters{Category: "Music", Date: "2025-01-01", Location: "Nairobi"}, s.Filters)

	s = Reduce(s, SetLocationFilter{Location: "Mombasa"})
	assert.Equal(t, "Mombasa", s.Filters.Location)
	assert.Equal(t, "Music", s.Filters.Category)

	s = Reduce(s, ClearFilters{})
	assert.True(t, s.Filters.Empty())
}

func TestClearCredentialsWipesEverything(t *testing.T) {
	s := Reduce(AppState{}, SetCredentials{User: alice, Token: "t"})
	s = Reduce(s, ClearCredentials{})
	assert.Equal(t, models.AuthState{}, s.Auth)
}

func TestFilePersisterRoundTripAndLogoutRemoves(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	st := New(WithPersister(NewFilePersister(dir)))

	require.NoError(t, st.Dispatch(ctx, SetCredentials{User: alice, Token: "jwt"}))

	path := filepath.Join(dir, "persist_auth.json")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored := New(WithPersister(NewFilePersister(dir)))
	require.NoError(t, restored.Rehydrate(ctx))
	auth := restored.Auth()
	assert.Equal(t, "jwt", auth.Token)
	assert.Equal(t, models.RoleAdmin, auth.UserRole)
	assert.True(t, auth.IsAuthenticated)
	assert.Equal(t, "alice@example.com", auth.User.Email)

	require.NoError(t, st.Dispatch(ctx, ClearCredentials{}))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFiltersAreNeverPersisted(t *testing.T) {
	p := NewMemoryPersister()
	st := New(WithPersister(p))
	require.NoError(t, st.Dispatch(context.Background(), SetFilters{Filters: models.EventFilters{Category: "Music"}}))

	data, err := p.Load(context.Background(), AuthKey)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestTokenPolicyPersistsOnlyToken(t *testing.T) {
	p := NewMemoryPersister()
	st := New(WithPersister(p), WithPolicy(PolicyToken))
	require.NoError(t, st.Dispatch(context.Background(), SetCredentials{User: alice, Token: "jwt"}))

	data, err := p.Load(context.Background(), AuthKey)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]any{"token": "jwt"}, raw)
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()
	p := NewRedisPersister(client, "ticketkenya:")
	st := New(WithPersister(p))

	require.NoError(t, st.Dispatch(ctx, SetCredentials{User: alice, Token: "jwt"}))
	assert.True(t, mr.Exists("ticketkenya:persist:auth"))

	restored := New(WithPersister(p))
	require.NoError(t, restored.Rehydrate(ctx))
	assert.Equal(t, "jwt", restored.Token())

	require.NoError(t, st.Dispatch(ctx, ClearCredentials{}))
	assert.False(t, mr.Exists("ticketkenya:persist:auth"))
}

func TestRehydrateWithNothingPersisted(t *testing.T) {
	st := New(WithPersister(NewFilePersister(t.TempDir())))
	require.NoError(t, st.Rehydrate(context.Background()))
	assert.Equal(t, models.AuthState{}, st.Auth())
}

func TestSubscribeSeesChanges(t *testing.T) {
	st := New()
	var seen []models.EventFilters
	unsubscribe := st.Subscribe(func(s AppState) { seen = append(seen, s.Filters) })

	ctx := context.Background()
	require.NoError(t, st.Dispatch(ctx, SetLocationFilter{Location: "Kisumu"}))
	require.NoError(t, st.Dispatch(ctx, SetLocationFilter{Location: "Kisumu"}))
	unsubscribe()
	require.NoError(t, st.Dispatch(ctx, ClearFilters{}))

	require.Len(t, seen, 1)
	assert.Equal(t, "Kisumu", seen[0].Location)
}
