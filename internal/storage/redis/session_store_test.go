package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/makkenzo/license-key-service/internal/config"
	"github.com/makkenzo/license-key-service/internal/domain/session"
	"github.com/makkenzo/license-key-service/internal/ierr"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionStore(client, zap.NewNop()), mr
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), &config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = NewRedisClient(context.Background(), &config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	assert.Error(t, err)
}

func TestSessionStore_SaveGetDelete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := &session.Session{ID: "abc", Username: "admin", CreatedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, store.Save(ctx, sess, time.Minute))
	assert.True(t, mr.Exists("license:session:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Username)
	assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, "abc"))
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ierr.ErrSessionNotFound)
}

func TestSessionStore_IdleExpiryAndTouch(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &session.Session{ID: "s1", Username: "admin"}, time.Minute))

	mr.FastForward(45 * time.Second)
	require.NoError(t, store.Touch(ctx, "s1", time.Minute))

	mr.FastForward(45 * time.Second)
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err, "touch should have extended the idle window")

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ierr.ErrSessionNotFound)

	assert.ErrorIs(t, store.Touch(ctx, "s1", time.Minute), ierr.ErrSessionNotFound)
}

func TestSessionStore_CorruptPayload(t *testing.T) {
	store, mr := newTestStore(t)
	require.NoError(t, mr.Set("license:session:bad", "{not json"))

	_, err := store.Get(context.Background(), "bad")
	assert.ErrorIs(t, err, ierr.ErrSessionNotFound)
	assert.False(t, mr.Exists("license:session:bad"))
}
