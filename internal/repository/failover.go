package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"rmtracer/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverKVStore wraps a primary store with a fallback. After a primary
// failure all calls go to the fallback; the primary is retried once a
// minute. A missing key is a normal answer, not a failure.
type FailoverKVStore struct {
	primary  domain.KVStore
	fallback domain.KVStore
	logger   *zerolog.Logger
	isDown   atomic.Bool

	// lastCheck holds the unix nanos of the last failed primary probe;
	// Get goroutines race on it, so it is atomic like the down flag.
	lastCheck atomic.Int64
}

func NewFailoverKVStore(primary, fallback domain.KVStore, logger *zerolog.Logger) *FailoverKVStore {
	return &FailoverKVStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverKVStore) Get(ctx context.Context, key string) (string, error) {
	if !r.isDown.Load() {
		val, err := r.primary.Get(ctx, key)
		if err == nil || isNotFound(err) {
			return val, err
		}
		r.markDown(err)
	}

	// Try to recover after 1 minute
	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		val, err := r.primary.Get(ctx, key)
		if err == nil || isNotFound(err) {
			r.isDown.Store(false)
			return val, err
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.Get(ctx, key)
}

func (r *FailoverKVStore) Set(ctx context.Context, key, value string) error {
	if !r.isDown.Load() {
		err := r.primary.Set(ctx, key, value)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Set(ctx, key, value)
}

func (r *FailoverKVStore) Delete(ctx context.Context, key string) error {
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, key)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Delete(ctx, key)
}

func (r *FailoverKVStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary store failed, falling back")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func isNotFound(err error) bool {
	var notFound *domain.KeyNotFoundError
	return errors.As(err, &notFound)
}
