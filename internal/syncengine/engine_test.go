package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"rmtracer/internal/domain"
	"rmtracer/internal/models"
	"rmtracer/internal/queue"
	"rmtracer/internal/repository"

	"github.com/rs/zerolog"
)

type fakeBackend struct {
	mu       sync.Mutex
	patients map[string]*models.Patient // keyed by no_rm
	inserted []models.Tracer
	logs     []models.ActivityLog

	insertErr  error
	lookupErr  error
	logErr     error
	insertGate chan struct{} // when set, InsertTracer blocks until closed
}

func (b *fakeBackend) LookupPatientByRecordNumber(ctx context.Context, noRM string) (*models.Patient, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lookupErr != nil {
		return nil, b.lookupErr
	}
	p, ok := b.patients[noRM]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", noRM, domain.ErrNotFound)
	}
	return p, nil
}

func (b *fakeBackend) InsertTracer(ctx context.Context, rec *models.Tracer) (*models.Tracer, error) {
	if b.insertGate != nil {
		<-b.insertGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.insertErr != nil {
		return nil, b.insertErr
	}
	b.inserted = append(b.inserted, *rec)
	return rec, nil
}

func (b *fakeBackend) DeleteTracer(ctx context.Context, id string) error { return nil }

func (b *fakeBackend) AppendActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.logErr != nil {
		return b.logErr
	}
	b.logs = append(b.logs, *entry)
	return nil
}

func (b *fakeBackend) CurrentLocation(ctx context.Context, patientID string) (*models.Tracer, error) {
	return nil, domain.ErrNotFound
}

func (b *fakeBackend) Ping(ctx context.Context) error { return nil }

type fakeIdentity struct{ userID string }

func (f *fakeIdentity) CurrentUserID() (string, bool) { return f.userID, f.userID != "" }

type fakeNotifier struct {
	mu        sync.Mutex
	successes []string
}

func (f *fakeNotifier) Success(msg string, undo func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, msg)
}
func (f *fakeNotifier) Error(msg string)   {}
func (f *fakeNotifier) Warning(msg string) {}
func (f *fakeNotifier) Info(msg string)    {}

type fakeConnectivity struct {
	online bool
	ch     chan bool
}

func (f *fakeConnectivity) Online() bool             { return f.online }
func (f *fakeConnectivity) Transitions() <-chan bool { return f.ch }

type fixture struct {
	engine  *Engine
	queue   *queue.Store
	backend *fakeBackend
	notify  *fakeNotifier
	conn    *fakeConnectivity
	kv      *repository.MemoryKVStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	kv := repository.NewMemoryKVStore()
	q := queue.NewStore(context.Background(), kv, &logger)
	backend := &fakeBackend{patients: map[string]*models.Patient{}}
	notify := &fakeNotifier{}
	conn := &fakeConnectivity{online: true, ch: make(chan bool, 1)}
	engine := New(q, backend, &fakeIdentity{userID: "user-1"}, notify, conn, kv, &logger, Options{})
	return &fixture{engine: engine, queue: q, backend: backend, notify: notify, conn: conn, kv: kv}
}

func enqueue(t *testing.T, f *fixture, payload models.MutationPayload) models.QueuedMutation {
	t.Helper()
	item, err := f.queue.Enqueue(context.Background(), models.MutationLocationUpdate, payload)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return item
}

func TestDrainSyncsInOrderAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}

	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-b", UserID: "user-1"})
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-c", UserID: "user-1"})

	f.engine.drain(ctx)

	if got := len(f.backend.inserted); got != 3 {
		t.Fatalf("expected 3 inserts, got %d", got)
	}
	for i, want := range []string{"loc-a", "loc-b", "loc-c"} {
		if f.backend.inserted[i].LocationID != want {
			t.Errorf("insert %d: expected %s, got %s", i, want, f.backend.inserted[i].LocationID)
		}
	}
	if f.queue.Len() != 0 {
		t.Errorf("expected empty queue, got %d", f.queue.Len())
	}
	if len(f.notify.successes) != 1 {
		t.Fatalf("expected 1 success notification, got %d", len(f.notify.successes))
	}
	if f.notify.successes[0] != "Berhasil menyinkronkan 3 data" {
		t.Errorf("unexpected notification: %q", f.notify.successes[0])
	}
}

func TestDrainPreservesOriginalTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}
	item := enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})

	f.engine.drain(ctx)

	if len(f.backend.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(f.backend.inserted))
	}
	if !f.backend.inserted[0].CreatedAt.Equal(item.Timestamp) {
		t.Errorf("event time not preserved: queued %v, inserted %v",
			item.Timestamp, f.backend.inserted[0].CreatedAt)
	}
}

func TestUnknownPatientGoesToDeadLetter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}

	enqueue(t, f, models.MutationPayload{NoRM: "RM-99999999", LocationID: "loc-a", UserID: "user-1"})
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-b", UserID: "user-1"})

	f.engine.drain(ctx)

	// The unknown record is gone from the queue and did not block the next item
	if f.queue.Len() != 0 {
		t.Fatalf("expected empty queue, got %d", f.queue.Len())
	}
	if len(f.backend.inserted) != 1 || f.backend.inserted[0].LocationID != "loc-b" {
		t.Fatalf("expected only the known patient to sync, got %+v", f.backend.inserted)
	}

	letters, err := ListDeadLetters(ctx, f.kv)
	if err != nil {
		t.Fatalf("list dead letters: %v", err)
	}
	if len(letters) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(letters))
	}
	if letters[0].Mutation.Payload.NoRM != "RM-99999999" {
		t.Errorf("wrong mutation dead-lettered: %s", letters[0].Mutation.Payload.NoRM)
	}

	// Only one item synced, so the notification counts one
	if len(f.notify.successes) != 1 || f.notify.successes[0] != "Berhasil menyinkronkan 1 data" {
		t.Errorf("unexpected notifications: %v", f.notify.successes)
	}
}

func TestTransientFailureKeepsItemForRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})

	f.backend.insertErr = errors.New("500 internal server error")
	f.engine.drain(ctx)

	if f.queue.Len() != 1 {
		t.Fatalf("expected item kept for retry, queue len %d", f.queue.Len())
	}
	if len(f.notify.successes) != 0 {
		t.Fatalf("expected no notification on failed pass, got %v", f.notify.successes)
	}

	// Next pass succeeds and drains it
	f.backend.insertErr = nil
	f.engine.drain(ctx)

	if f.queue.Len() != 0 {
		t.Fatalf("expected queue drained on retry, len %d", f.queue.Len())
	}
	if len(f.backend.inserted) != 1 {
		t.Fatalf("expected 1 insert after retry, got %d", len(f.backend.inserted))
	}
}

func TestFailedItemDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080002"] = &models.Patient{ID: "p2", NoRM: "RM-26080002"}

	// First item hits a transient lookup failure, second has its patient ID
	f.backend.lookupErr = errors.New("timeout")
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})
	enqueue(t, f, models.MutationPayload{PatientID: "p2", LocationID: "loc-b", UserID: "user-1"})

	f.engine.drain(ctx)

	if f.queue.Len() != 1 {
		t.Fatalf("expected 1 item left, got %d", f.queue.Len())
	}
	if len(f.backend.inserted) != 1 || f.backend.inserted[0].PatientID != "p2" {
		t.Fatalf("expected second item to sync past the failed first, got %+v", f.backend.inserted)
	}
}

func TestAuditFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}
	f.backend.logErr = errors.New("audit endpoint down")
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})

	f.engine.drain(ctx)

	// The movement still counts as synced
	if f.queue.Len() != 0 {
		t.Fatalf("expected queue drained, len %d", f.queue.Len())
	}
	if len(f.notify.successes) != 1 {
		t.Fatalf("expected success notification, got %v", f.notify.successes)
	}
}

func TestNoPassWhenOfflineOrSignedOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})

	f.conn.online = false
	f.engine.drain(ctx)
	if len(f.backend.inserted) != 0 {
		t.Fatal("expected no sync while offline")
	}

	f.conn.online = true
	f.engine.identity = &fakeIdentity{}
	f.engine.drain(ctx)
	if len(f.backend.inserted) != 0 {
		t.Fatal("expected no sync without a signed-in user")
	}
}

func TestConcurrentDrainsDoNotOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})

	gate := make(chan struct{})
	f.backend.insertGate = gate

	done := make(chan struct{})
	go func() {
		f.engine.drain(ctx)
		close(done)
	}()

	// Wait for the first pass to take the guard
	deadline := time.After(2 * time.Second)
	for !f.engine.Syncing() {
		select {
		case <-deadline:
			t.Fatal("first pass never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	// A second drain while one is in flight returns without doing anything
	f.engine.drain(ctx)

	close(gate)
	<-done

	if len(f.backend.inserted) != 1 {
		t.Fatalf("expected exactly 1 insert, got %d", len(f.backend.inserted))
	}
}

func TestOnlineTransitionTriggersDrain(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.backend.patients["RM-26080001"] = &models.Patient{ID: "p1", NoRM: "RM-26080001"}
	enqueue(t, f, models.MutationPayload{NoRM: "RM-26080001", LocationID: "loc-a", UserID: "user-1"})
	// Swallow the enqueue tick so only the transition can trigger
	select {
	case <-f.queue.Changes():
	default:
	}

	go f.engine.Run(ctx)
	f.conn.ch <- true

	deadline := time.After(2 * time.Second)
	for f.queue.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("queue not drained after online transition")
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestDebounceCollapsesBursts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan struct{}, 16)
	out := debounce(ctx, 30*time.Millisecond, in)

	for i := 0; i < 10; i++ {
		in <- struct{}{}
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("expected a tick after the burst settled")
	}

	// No second tick without new input
	select {
	case <-out:
		t.Fatal("unexpected extra tick")
	case <-time.After(80 * time.Millisecond):
	}
}
