package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rmtracer/internal/domain"
	"rmtracer/internal/models"

	"github.com/rs/zerolog"
)

// Manager holds the signed-in profile for the station and caches it in the
// KV store so a restart does not sign the operator out. A corrupt cached
// profile is evicted, not repaired.
type Manager struct {
	kv     domain.KVStore
	logger *zerolog.Logger

	mu      sync.RWMutex
	profile *models.User
}

func NewManager(ctx context.Context, kv domain.KVStore, logger *zerolog.Logger) *Manager {
	m := &Manager{kv: kv, logger: logger}

	raw, err := kv.Get(ctx, models.ProfileCacheKey)
	if err != nil {
		var notFound *domain.KeyNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn().Err(err).Msg("Failed to read cached profile")
		}
		return m
	}

	var profile models.User
	if err := json.Unmarshal([]byte(raw), &profile); err != nil || profile.ID == "" {
		logger.Warn().Msg("Corrupt cached profile, evicting")
		if err := kv.Delete(ctx, models.ProfileCacheKey); err != nil {
			logger.Warn().Err(err).Msg("Failed to evict corrupt profile cache")
		}
		return m
	}

	m.profile = &profile
	logger.Info().Str("email", profile.Email).Msg("Restored cached profile")
	return m
}

// CurrentUserID returns the acting account ID, when signed in.
func (m *Manager) CurrentUserID() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.profile == nil {
		return "", false
	}
	return m.profile.ID, true
}

// Profile returns a copy of the signed-in profile, or nil.
func (m *Manager) Profile() *models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// SignIn stores the profile and caches it.
func (m *Manager) SignIn(ctx context.Context, profile *models.User) error {
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profile has no ID")
	}

	m.mu.Lock()
	m.profile = profile
	m.mu.Unlock()

	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := m.kv.Set(ctx, models.ProfileCacheKey, string(raw)); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// SignOut clears the profile and its cache.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.profile = nil
	m.mu.Unlock()

	if err := m.kv.Delete(ctx, models.ProfileCacheKey); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to clear profile cache")
	}
}
