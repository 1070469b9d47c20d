package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "first"))
	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", token)

	require.NoError(t, store.Save(ctx, "second"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting twice stays quiet
	require.NoError(t, store.Delete(ctx))
}

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	store, err := NewRedis(rdb, "", "token", 0)
	require.NoError(t, err)
	return store, mr
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, store.Path())

	exerciseStore(t, store)
}

func TestFilePermissionsAndBlankContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	store, err := NewFile(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "abc"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewFile(" ")
	assert.Error(t, err)
}

func TestFileRespectsCanceledContext(t *testing.T) {
	store, err := NewFile(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Save(ctx, "abc"), context.Canceled)
}

func TestRedis(t *testing.T) {
	store, mr := newRedisStore(t)
	assert.Equal(t, "sg:token", store.Key())

	exerciseStore(t, store)

	require.NoError(t, store.Save(context.Background(), "persisted"))
	got, err := mr.Get("sg:token")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}

func TestRedisTTL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store, err := NewRedis(rdb, "app", "alice", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), "tok"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store, err := NewRedis(rdb, "", "token", 0)
	require.NoError(t, err)
	mr.Close()

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, store.Save(context.Background(), "x"), ErrUnavailable)
}

func TestNewRedisValidation(t *testing.T) {
	_, err := NewRedis(nil, "", "token", 0)
	assert.Error(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	_, err = NewRedis(rdb, "", "", 0)
	assert.Error(t, err)
	_, err = NewRedis(rdb, "", "token", -time.Second)
	assert.Error(t, err)
}
