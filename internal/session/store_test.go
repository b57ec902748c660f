package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "crewboard_token", time.Hour, nil), mr
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	user := &User{ID: 42, Email: "lead@example.com", FullName: "Dana Lead", Role: RoleTeamLead}

	store.Save(ctx, "sid-1", "tok-abc", user)

	sess := store.Load(ctx, "sid-1")
	require.True(t, sess.IsAuthenticated())
	require.Equal(t, "tok-abc", sess.Token)
	require.Equal(t, user.ID, sess.User.ID)
	require.Equal(t, RoleTeamLead, sess.User.Role)
}

func TestStoreSaveSkipsIncompleteSessions(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	user := &User{ID: 1, Role: RoleEmployee}

	store.Save(ctx, "", "tok", user)
	store.Save(ctx, "sid", "", user)
	store.Save(ctx, "sid", "tok", nil)

	require.Empty(t, mr.Keys())
}

func TestStoreLoadAbsentSession(t *testing.T) {
	store, _ := newTestStore(t)

	sess := store.Load(context.Background(), "missing")
	require.False(t, sess.IsAuthenticated())
	require.Empty(t, sess.Token)
	require.Nil(t, sess.User)
	require.Equal(t, "missing", sess.ID)
}

func TestStoreLoadTokenWithoutUser(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("crewboard_token:sid-2", "tok-orphan"))

	sess := store.Load(ctx, "sid-2")
	require.False(t, sess.IsAuthenticated())
	require.Equal(t, "tok-orphan", sess.Token, "token must survive so the manager can attempt recovery")
	require.Nil(t, sess.User)
}

func TestStoreLoadCorruptUserRecordClearsBoth(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("crewboard_token:sid-3", "tok"))
	require.NoError(t, mr.Set("crewboard_token_user:sid-3", "{not json"))

	sess := store.Load(ctx, "sid-3")
	require.False(t, sess.IsAuthenticated())
	require.Empty(t, sess.Token)
	require.False(t, mr.Exists("crewboard_token:sid-3"))
	require.False(t, mr.Exists("crewboard_token_user:sid-3"))
}

func TestStoreClearRemovesBothKeys(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	store.Save(ctx, "sid-4", "tok", &User{ID: 9, Role: RoleAdmin})
	require.True(t, mr.Exists("crewboard_token:sid-4"))
	require.True(t, mr.Exists("crewboard_token_user:sid-4"))

	store.Clear(ctx, "sid-4")
	require.False(t, mr.Exists("crewboard_token:sid-4"))
	require.False(t, mr.Exists("crewboard_token_user:sid-4"))
	require.False(t, store.Load(ctx, "sid-4").IsAuthenticated())
}

func TestStoreActiveSessionIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	store.Save(ctx, "sid-a", "tok-a", &User{ID: 1, Role: RoleEmployee})
	store.Save(ctx, "sid-b", "tok-b", &User{ID: 2, Role: RoleAdmin})

	ids, err := store.ActiveSessionIDs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sid-a", "sid-b"}, ids)
}
