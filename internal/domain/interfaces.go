package domain

import (
	"context"
	"errors"
	"time"

	"rmtracer/internal/models"
)

// ErrNotFound marks a lookup miss across Backend implementations, as
// opposed to a transport or server failure.
var ErrNotFound = errors.New("not found")

// Backend is the mutation/lookup surface the sync engine and the scan flow
// write against. The station talks to it over HTTP; the server implements
// the same operations directly on its database.
type Backend interface {
	LookupPatientByRecordNumber(ctx context.Context, noRM string) (*models.Patient, error)
	InsertTracer(ctx context.Context, rec *models.Tracer) (*models.Tracer, error)
	DeleteTracer(ctx context.Context, id string) error
	AppendActivityLog(ctx context.Context, entry *models.ActivityLog) error
	CurrentLocation(ctx context.Context, patientID string) (*models.Tracer, error)
	Ping(ctx context.Context) error
}

// KVStore is a small durable key-value store for station-local state
// (offline queue, dead letters, cached profile).
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// KeyNotFoundError is returned by KVStore.Get for absent keys.
type KeyNotFoundError struct{ Key string }

func (e *KeyNotFoundError) Error() string { return "key not found: " + e.Key }

// Queue is the offline mutation queue as seen by its consumers. The UI side
// only appends and reads; only the sync engine removes entries.
type Queue interface {
	Enqueue(ctx context.Context, mutationType string, payload models.MutationPayload) (models.QueuedMutation, error)
	Dequeue(ctx context.Context, id string)
	List() []models.QueuedMutation
	Len() int
	Changes() <-chan struct{}
}

// Identity exposes the acting account, when one is available.
type Identity interface {
	CurrentUserID() (string, bool)
}

// Notifier accepts leveled, timed user notifications. Undo, when non-nil,
// is offered to the user for the notification's duration.
type Notifier interface {
	Success(message string, undo func())
	Error(message string)
	Warning(message string)
	Info(message string)
}

// ConnectivitySignal reports backend reachability and its transitions.
type ConnectivitySignal interface {
	Online() bool
	Transitions() <-chan bool
}

// EventPublisher mirrors the events bus publish side.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// TracerService records and takes back folder movements.
type TracerService interface {
	RecordMovement(ctx context.Context, rec *models.Tracer) (*models.Tracer, error)
	UndoMovement(ctx context.Context, tracerID string, actorID string, noRM string) error
	History(ctx context.Context, patientID string, limit int) ([]models.Tracer, error)
	CurrentLocation(ctx context.Context, patientID string) (*models.Tracer, error)
}

// PatientService wraps patient CRUD with auditing.
type PatientService interface {
	Create(ctx context.Context, p *models.Patient, actorID string) error
	Update(ctx context.Context, p *models.Patient, actorID string) error
	Delete(ctx context.Context, id string, actorID string) error
	Get(ctx context.Context, id string) (*models.Patient, error)
	GetByNoRM(ctx context.Context, noRM string) (*models.Patient, error)
	Search(ctx context.Context, query string, limit, offset int) ([]models.Patient, int64, error)
}

// ActivityRecorder appends audit entries.
type ActivityRecorder interface {
	LogActivity(ctx context.Context, userID, aksi, noRM string, details map[string]interface{}) error
	ListActivity(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int64, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}
