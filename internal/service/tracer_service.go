package service

import (
	"context"
	"errors"
	"fmt"

	"rmtracer/internal/database"
	"rmtracer/internal/domain"
	"rmtracer/internal/events"
	"rmtracer/internal/metrics"
	"rmtracer/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrPickerRequired is returned when a movement to a non-storage
	// location names no staff member picking up the file.
	ErrPickerRequired = errors.New("staff member required for this destination")

	// ErrLocationRequired is returned for movements without a destination.
	ErrLocationRequired = errors.New("location is required")
)

type TracerService struct {
	db       *database.DB
	eventBus domain.EventPublisher
	recorder domain.ActivityRecorder
	logger   *zerolog.Logger
}

func NewTracerService(db *database.DB, eventBus domain.EventPublisher, recorder domain.ActivityRecorder, logger *zerolog.Logger) *TracerService {
	return &TracerService{
		db:       db,
		eventBus: eventBus,
		recorder: recorder,
		logger:   logger,
	}
}

// RecordMovement validates the destination and writes the movement. Files
// going back to a storage location need no picking staff member; every
// other destination does.
func (s *TracerService) RecordMovement(ctx context.Context, rec *models.Tracer) (*models.Tracer, error) {
	if rec.LocationID == "" {
		return nil, ErrLocationRequired
	}

	loc, err := s.db.GetLocation(ctx, rec.LocationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("location %s: %w", rec.LocationID, domain.ErrNotFound)
		}
		return nil, err
	}
	if !loc.IsStorage && rec.StaffID == "" {
		return nil, ErrPickerRequired
	}

	patient, err := s.db.GetPatient(ctx, rec.PatientID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("patient %s: %w", rec.PatientID, domain.ErrNotFound)
		}
		return nil, err
	}

	if err := s.db.InsertTracer(ctx, rec); err != nil {
		return nil, err
	}
	metrics.IncTracerInsert()

	// Audit and events are best-effort once the movement is stored
	if s.recorder != nil {
		aksi := models.ActionUpdateStatus
		if err := s.recorder.LogActivity(ctx, rec.UserID, aksi, patient.NoRM, map[string]interface{}{
			"tracer_id":   rec.ID,
			"location_id": rec.LocationID,
			"staff_id":    rec.StaffID,
			"note":        rec.Keterangan,
		}); err != nil {
			s.logger.Warn().Err(err).Str("tracer_id", rec.ID).Msg("Failed to write audit entry for movement")
		}
	}

	s.publishTracerEvent(events.EventTracerCreated, rec, patient.NoRM)
	return rec, nil
}

// UndoMovement deletes a just-recorded movement. The undo window is
// enforced by the caller holding the undo affordance, not here.
func (s *TracerService) UndoMovement(ctx context.Context, tracerID string, actorID string, noRM string) error {
	if err := s.db.DeleteTracer(ctx, tracerID); err != nil {
		return err
	}

	if s.recorder != nil {
		if err := s.recorder.LogActivity(ctx, actorID, models.ActionUndoUpdateStatus, noRM, map[string]interface{}{
			"tracer_id": tracerID,
		}); err != nil {
			s.logger.Warn().Err(err).Str("tracer_id", tracerID).Msg("Failed to write audit entry for undo")
		}
	}

	if s.eventBus != nil {
		if err := s.eventBus.PublishJSON(events.EventTracerDeleted, map[string]string{"tracer_id": tracerID}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish tracer_deleted event")
		}
	}
	return nil
}

func (s *TracerService) History(ctx context.Context, patientID string, limit int) ([]models.Tracer, error) {
	return s.db.GetTracerHistory(ctx, patientID, limit)
}

func (s *TracerService) CurrentLocation(ctx context.Context, patientID string) (*models.Tracer, error) {
	rec, err := s.db.GetCurrentLocation(ctx, patientID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func (s *TracerService) publishTracerEvent(eventType string, rec *models.Tracer, noRM string) {
	if s.eventBus == nil {
		return
	}
	payload := events.TracerEventPayload{
		TracerID:   rec.ID,
		PatientID:  rec.PatientID,
		NoRM:       noRM,
		LocationID: rec.LocationID,
		StaffID:    rec.StaffID,
		UserID:     rec.UserID,
		EventTime:  rec.CreatedAt,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
