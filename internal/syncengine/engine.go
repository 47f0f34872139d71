package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"rmtracer/internal/domain"
	"rmtracer/internal/metrics"
	"rmtracer/internal/models"

	"github.com/rs/zerolog"
)

// Engine drains the offline queue against the backend. A pass runs when
// the queue is non-empty, the backend is reachable and an actor identity
// is present; at most one pass is in flight at any time.
type Engine struct {
	queue        domain.Queue
	backend      domain.Backend
	identity     domain.Identity
	notifier     domain.Notifier
	connectivity domain.ConnectivitySignal
	kv           domain.KVStore
	logger       zerolog.Logger

	debounceWindow time.Duration
	syncing        atomic.Bool
	manual         chan struct{}
}

type Options struct {
	// DebounceWindow coalesces queue-change triggers. Zero means the
	// default of 2s.
	DebounceWindow time.Duration
}

func New(q domain.Queue, backend domain.Backend, identity domain.Identity,
	notifier domain.Notifier, conn domain.ConnectivitySignal, kv domain.KVStore,
	logger *zerolog.Logger, opts Options) *Engine {

	window := opts.DebounceWindow
	if window <= 0 {
		window = models.DefaultSyncDebounce
	}

	return &Engine{
		queue:          q,
		backend:        backend,
		identity:       identity,
		notifier:       notifier,
		connectivity:   conn,
		kv:             kv,
		logger:         logger.With().Str("component", "syncengine").Logger(),
		debounceWindow: window,
		manual:         make(chan struct{}, 1),
	}
}

// Syncing reports whether a drain pass is currently in flight.
func (e *Engine) Syncing() bool {
	return e.syncing.Load()
}

// SyncNow requests an immediate drain pass.
func (e *Engine) SyncNow() {
	select {
	case e.manual <- struct{}{}:
	default:
	}
}

// Run reacts to triggers until the context is cancelled: the backend
// coming back online, the queue changing (debounced), and manual requests.
func (e *Engine) Run(ctx context.Context) {
	queueTicks := debounce(ctx, e.debounceWindow, e.queue.Changes())

	for {
		select {
		case <-ctx.Done():
			return
		case online := <-e.connectivity.Transitions():
			if online {
				e.drain(ctx)
			}
		case <-queueTicks:
			e.drain(ctx)
		case <-e.manual:
			e.drain(ctx)
		}
	}
}

// drain runs one pass over the queue. Items are processed in FIFO order;
// a failing item stays queued and never blocks the ones behind it.
func (e *Engine) drain(ctx context.Context) {
	if e.queue.Len() == 0 || !e.connectivity.Online() {
		return
	}
	userID, ok := e.identity.CurrentUserID()
	if !ok {
		e.logger.Debug().Msg("No signed-in user, skipping sync pass")
		return
	}
	if !e.syncing.CompareAndSwap(false, true) {
		return
	}
	defer e.syncing.Store(false)

	metrics.IncSyncPass()
	items := e.queue.List()
	e.logger.Info().Int("pending", len(items)).Msg("Starting sync pass")

	synced := 0
	for _, item := range items {
		switch e.processItem(ctx, item, userID) {
		case itemSynced:
			e.queue.Dequeue(ctx, item.ID)
			metrics.IncSyncItem("synced")
			synced++
		case itemDropped:
			e.queue.Dequeue(ctx, item.ID)
			metrics.IncSyncItem("dropped")
		case itemFailed:
			metrics.IncSyncItem("failed")
		}
	}

	e.logger.Info().Int("synced", synced).Int("remaining", e.queue.Len()).Msg("Sync pass finished")
	if synced > 0 {
		e.notifier.Success(fmt.Sprintf("Berhasil menyinkronkan %d data", synced), nil)
	}
}

type itemResult int

const (
	itemSynced itemResult = iota
	itemFailed
	itemDropped
)

func (e *Engine) processItem(ctx context.Context, item models.QueuedMutation, userID string) itemResult {
	if item.Type != models.MutationLocationUpdate {
		e.logger.Error().Str("id", item.ID).Str("type", item.Type).Msg("Unknown mutation type, dropping")
		e.deadLetter(ctx, item, "unknown mutation type")
		return itemDropped
	}

	payload := item.Payload

	// Scans taken fully offline carry only the record number; resolve it
	// now that the backend is reachable.
	patientID := payload.PatientID
	if patientID == "" && payload.NoRM != "" {
		patient, err := e.backend.LookupPatientByRecordNumber(ctx, payload.NoRM)
		if errors.Is(err, domain.ErrNotFound) {
			e.logger.Error().Str("no_rm", payload.NoRM).Msg("Patient not found, dropping queued mutation")
			e.deadLetter(ctx, item, "patient not found: "+payload.NoRM)
			return itemDropped
		}
		if err != nil {
			e.logger.Warn().Err(err).Str("no_rm", payload.NoRM).Msg("Patient lookup failed, keeping item for retry")
			return itemFailed
		}
		patientID = patient.ID
	}

	if patientID == "" {
		e.logger.Error().Str("id", item.ID).Msg("Queued mutation has no resolvable patient, dropping")
		e.deadLetter(ctx, item, "no resolvable patient")
		return itemDropped
	}

	actorID := payload.UserID
	if actorID == "" {
		actorID = userID
	}

	rec := &models.Tracer{
		PatientID:  patientID,
		LocationID: payload.LocationID,
		StaffID:    payload.StaffID,
		Keterangan: payload.Note,
		UserID:     actorID,
		CreatedAt:  item.Timestamp, // preserve the original event time
	}

	if _, err := e.backend.InsertTracer(ctx, rec); err != nil {
		e.logger.Warn().Err(err).Str("id", item.ID).Msg("Tracer insert failed, keeping item for retry")
		return itemFailed
	}

	// Audit is best-effort: the movement is already recorded.
	entry := &models.ActivityLog{
		UserID: actorID,
		Aksi:   models.ActionUpdateStatusSync,
		NoRM:   payload.NoRM,
		Details: fmt.Sprintf(`{"location_id":%q,"note":%q,"synced_at":%q,"original_time":%q}`,
			payload.LocationID, payload.Note,
			time.Now().Format(time.RFC3339), item.Timestamp.Format(time.RFC3339)),
	}
	if err := e.backend.AppendActivityLog(ctx, entry); err != nil {
		e.logger.Warn().Err(err).Str("id", item.ID).Msg("Audit log write failed after sync")
	}

	return itemSynced
}

func (e *Engine) deadLetter(ctx context.Context, item models.QueuedMutation, reason string) {
	if err := pushDeadLetter(ctx, e.kv, item, reason); err != nil {
		e.logger.Error().Err(err).Str("id", item.ID).Msg("Failed to record dead letter")
	}
}
