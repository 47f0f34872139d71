package notify

import (
	"fmt"
	"sync"
	"time"

	"rmtracer/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// Notification is one user-facing message. CanUndo marks that an undo can
// be requested by ID within the undo window.
type Notification struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CanUndo   bool      `json:"can_undo"`
	CreatedAt time.Time `json:"created_at"`
}

type undoEntry struct {
	fn       func()
	deadline time.Time
}

// Hub fans notifications out to subscribers and tracks pending undo
// actions until their window expires.
type Hub struct {
	logger zerolog.Logger

	mu          sync.Mutex
	subscribers map[chan Notification]struct{}
	undos       map[string]undoEntry
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		logger:      logger.With().Str("component", "notify").Logger(),
		subscribers: map[chan Notification]struct{}{},
		undos:       map[string]undoEntry{},
	}
}

// Subscribe registers a listener. The returned cancel must be called when
// the listener goes away. A slow listener loses messages rather than
// blocking the publisher.
func (h *Hub) Subscribe() (<-chan Notification, func()) {
	ch := make(chan Notification, 16)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Success(message string, undo func()) {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     LevelSuccess,
		Message:   message,
		CanUndo:   undo != nil,
		CreatedAt: time.Now(),
	}
	if undo != nil {
		h.mu.Lock()
		h.undos[n.ID] = undoEntry{fn: undo, deadline: n.CreatedAt.Add(models.UndoTimeout)}
		h.mu.Unlock()
	}
	h.publish(n)
}

func (h *Hub) Error(message string)   { h.publishLevel(LevelError, message) }
func (h *Hub) Warning(message string) { h.publishLevel(LevelWarning, message) }
func (h *Hub) Info(message string)    { h.publishLevel(LevelInfo, message) }

// Undo runs the undo action attached to a notification, once, inside its
// window.
func (h *Hub) Undo(id string) error {
	h.mu.Lock()
	entry, ok := h.undos[id]
	if ok {
		delete(h.undos, id)
	}
	h.expireLocked()
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending undo for %s", id)
	}
	if time.Now().After(entry.deadline) {
		return fmt.Errorf("undo window expired for %s", id)
	}
	entry.fn()
	return nil
}

func (h *Hub) publishLevel(level, message string) {
	h.publish(Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

func (h *Hub) publish(n Notification) {
	h.logger.Debug().Str("level", n.Level).Str("message", n.Message).Msg("Notification")

	h.mu.Lock()
	defer h.mu.Unlock()

	h.expireLocked()
	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
}

func (h *Hub) expireLocked() {
	now := time.Now()
	for id, entry := range h.undos {
		if now.After(entry.deadline) {
			delete(h.undos, id)
		}
	}
}
