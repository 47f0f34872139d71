package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rmtracer/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKVStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.json")
	ctx := context.Background()

	store, err := NewFileKVStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))

	val, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	// Reopen: state survives
	store2, err := NewFileKVStore(path)
	require.NoError(t, err)
	val, err = store2.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", val)

	require.NoError(t, store2.Delete(ctx, "a"))
	_, err = store2.Get(ctx, "a")
	var notFound *domain.KeyNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestFileKVStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "station.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileKVStore(path)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "anything")
	var notFound *domain.KeyNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRedisKVStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisKVStore(client)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "queue", "[]"))
	val, err := store.Get(ctx, "queue")
	require.NoError(t, err)
	assert.Equal(t, "[]", val)

	require.NoError(t, store.Delete(ctx, "queue"))
	_, err = store.Get(ctx, "queue")
	var notFound *domain.KeyNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

type failingStore struct{ err error }

func (f *failingStore) Get(ctx context.Context, key string) (string, error) { return "", f.err }
func (f *failingStore) Set(ctx context.Context, key, value string) error    { return f.err }
func (f *failingStore) Delete(ctx context.Context, key string) error        { return f.err }

func TestFailoverSwitchesToFallback(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingStore{err: errors.New("connection refused")}
	fallback := NewMemoryKVStore()
	store := NewFailoverKVStore(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	// Value landed in the fallback
	val, err = fallback.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestFailoverRecoversPrimaryAfterInterval(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemoryKVStore()
	fallback := NewMemoryKVStore()
	store := NewFailoverKVStore(primary, fallback, &logger)
	ctx := context.Background()

	require.NoError(t, primary.Set(ctx, "k", "primary"))
	require.NoError(t, fallback.Set(ctx, "k", "fallback"))

	store.isDown.Store(true)

	// Inside the retry interval the fallback answers
	store.lastCheck.Store(time.Now().UnixNano())
	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "fallback", val)

	// Once the interval has passed the primary is probed and wins
	store.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	val, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "primary", val)
	assert.False(t, store.isDown.Load())
}

func TestFailoverConcurrentAccess(t *testing.T) {
	logger := zerolog.Nop()
	primary := &failingStore{err: errors.New("connection refused")}
	fallback := NewMemoryKVStore()
	store := NewFailoverKVStore(primary, fallback, &logger)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Set(ctx, "k", "v")
				_, _ = store.Get(ctx, "k")
			}
		}()
	}
	wg.Wait()

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestFailoverMissingKeyIsNotAFailure(t *testing.T) {
	logger := zerolog.Nop()
	primary := NewMemoryKVStore()
	fallback := NewMemoryKVStore()
	store := NewFailoverKVStore(primary, fallback, &logger)
	ctx := context.Background()

	_, err := store.Get(ctx, "absent")
	var notFound *domain.KeyNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.False(t, store.isDown.Load())
}
