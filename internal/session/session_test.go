package session

import (
	"context"
	"testing"

	"rmtracer/internal/models"
	"rmtracer/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileSurvivesRestart(t *testing.T) {
	logger := zerolog.Nop()
	kv := repository.NewMemoryKVStore()
	ctx := context.Background()

	m := NewManager(ctx, kv, &logger)
	_, ok := m.CurrentUserID()
	assert.False(t, ok)

	require.NoError(t, m.SignIn(ctx, &models.User{ID: "user-1", Email: "petugas@rs.example", Role: models.RolePetugas}))

	id, ok := m.CurrentUserID()
	require.True(t, ok)
	assert.Equal(t, "user-1", id)

	// New manager over the same store restores the profile
	m2 := NewManager(ctx, kv, &logger)
	id, ok = m2.CurrentUserID()
	require.True(t, ok)
	assert.Equal(t, "user-1", id)
	assert.Equal(t, "petugas@rs.example", m2.Profile().Email)
}

func TestCorruptProfileCacheIsEvicted(t *testing.T) {
	logger := zerolog.Nop()
	kv := repository.NewMemoryKVStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, models.ProfileCacheKey, "{broken"))

	m := NewManager(ctx, kv, &logger)
	_, ok := m.CurrentUserID()
	assert.False(t, ok)

	// The corrupt value is gone from the store
	_, err := kv.Get(ctx, models.ProfileCacheKey)
	assert.Error(t, err)
}

func TestSignOutClearsCache(t *testing.T) {
	logger := zerolog.Nop()
	kv := repository.NewMemoryKVStore()
	ctx := context.Background()

	m := NewManager(ctx, kv, &logger)
	require.NoError(t, m.SignIn(ctx, &models.User{ID: "user-1"}))
	m.SignOut(ctx)

	_, ok := m.CurrentUserID()
	assert.False(t, ok)

	m2 := NewManager(ctx, kv, &logger)
	_, ok = m2.CurrentUserID()
	assert.False(t, ok)
}
