package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rmtracer/internal/domain"
	"rmtracer/internal/models"
)

// DeadLetter is a mutation the engine gave up on, kept for inspection.
type DeadLetter struct {
	Mutation models.QueuedMutation `json:"mutation"`
	Reason   string                `json:"reason"`
}

// ListDeadLetters reads the dead-letter list from the KV store. A corrupt
// value reads as empty.
func ListDeadLetters(ctx context.Context, kv domain.KVStore) ([]DeadLetter, error) {
	raw, err := kv.Get(ctx, models.DeadLetterKey)
	if err != nil {
		var notFound *domain.KeyNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read dead letters: %w", err)
	}

	var letters []DeadLetter
	if err := json.Unmarshal([]byte(raw), &letters); err != nil {
		return nil, nil
	}
	return letters, nil
}

func pushDeadLetter(ctx context.Context, kv domain.KVStore, item models.QueuedMutation, reason string) error {
	letters, err := ListDeadLetters(ctx, kv)
	if err != nil {
		return err
	}
	letters = append(letters, DeadLetter{Mutation: item, Reason: reason})

	raw, err := json.Marshal(letters)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letters: %w", err)
	}
	if err := kv.Set(ctx, models.DeadLetterKey, string(raw)); err != nil {
		return fmt.Errorf("failed to persist dead letters: %w", err)
	}
	return nil
}
