package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rmtracer/internal/domain"
	"rmtracer/internal/metrics"
	"rmtracer/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the durable offline mutation queue. The whole queue is kept in
// memory and persisted as one JSON array under a single key, so the stored
// value is always a complete, ordered snapshot. Order is strictly FIFO by
// enqueue time.
type Store struct {
	kv     domain.KVStore
	key    string
	logger *zerolog.Logger

	mu      sync.Mutex
	items   []models.QueuedMutation
	changes chan struct{}
}

// NewStore loads any persisted queue from the KV store. A corrupt or
// unreadable persisted value starts the queue empty; nothing else is
// salvaged from it.
func NewStore(ctx context.Context, kv domain.KVStore, logger *zerolog.Logger) *Store {
	s := &Store{
		kv:      kv,
		key:     models.QueueKey,
		logger:  logger,
		changes: make(chan struct{}, 1),
	}

	raw, err := kv.Get(ctx, s.key)
	if err != nil {
		var notFound *domain.KeyNotFoundError
		if !errors.As(err, &notFound) {
			logger.Warn().Err(err).Msg("Failed to load offline queue, starting empty")
		}
		metrics.SetQueueDepth(0)
		return s
	}

	if err := json.Unmarshal([]byte(raw), &s.items); err != nil {
		logger.Warn().Err(err).Msg("Corrupt offline queue in store, starting empty")
		s.items = nil
	}
	metrics.SetQueueDepth(len(s.items))
	return s
}

// Enqueue appends a mutation, assigning its ID and timestamp, and persists
// the new snapshot. The returned copy is what was stored.
func (s *Store) Enqueue(ctx context.Context, mutationType string, payload models.MutationPayload) (models.QueuedMutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := models.QueuedMutation{
		ID:        uuid.NewString(),
		Type:      mutationType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	s.items = append(s.items, item)
	if err := s.persist(ctx); err != nil {
		s.items = s.items[:len(s.items)-1]
		return models.QueuedMutation{}, err
	}

	s.logger.Info().Str("id", item.ID).Str("type", item.Type).Int("depth", len(s.items)).Msg("Mutation queued")
	s.notifyChange()
	return item, nil
}

// Dequeue removes the item with the given ID. Unknown IDs are a no-op, so
// removal after a successful sync is idempotent.
func (s *Store) Dequeue(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.items {
		if item.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			if err := s.persist(ctx); err != nil {
				s.logger.Error().Err(err).Str("id", id).Msg("Failed to persist queue after dequeue")
			}
			s.notifyChange()
			return
		}
	}
}

// List returns a copy of the queue in FIFO order.
func (s *Store) List() []models.QueuedMutation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.QueuedMutation, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the current queue depth.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Changes signals after every enqueue or dequeue. The channel carries no
// payload and is never closed; a slow reader sees at most one pending tick.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) persist(ctx context.Context) error {
	raw, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	metrics.SetQueueDepth(len(s.items))
	return nil
}

func (s *Store) notifyChange() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
