package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventTracerCreated  = "tracer_created"
	EventTracerDeleted  = "tracer_deleted"
	EventPatientCreated = "patient_created"
	EventPatientUpdated = "patient_updated"
	EventPatientDeleted = "patient_deleted"
	EventActivityLogged = "activity_logged"
)

// TracerEventPayload is the minimal movement snapshot for event consumers
// (dashboard realtime stream).
type TracerEventPayload struct {
	TracerID   string    `json:"tracer_id"`
	PatientID  string    `json:"patient_id"`
	NoRM       string    `json:"no_rm,omitempty"`
	LocationID string    `json:"location_id"`
	StaffID    string    `json:"staff_id,omitempty"`
	UserID     string    `json:"user_id"`
	EventTime  time.Time `json:"event_time"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string]map[int]EventHandler
	nextID      int
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string]map[int]EventHandler)}
}

// Subscribe registers a handler for a given event type. The empty type
// subscribes to every event. The returned func removes the handler.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[int]EventHandler)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[eventType], id)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	var handlers []EventHandler
	for _, h := range b.subscribers[event.Type] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subscribers[""] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
