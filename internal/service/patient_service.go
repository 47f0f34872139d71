package service

import (
	"context"
	"errors"

	"rmtracer/internal/database"
	"rmtracer/internal/domain"
	"rmtracer/internal/events"
	"rmtracer/internal/models"

	"github.com/rs/zerolog"
)

type PatientService struct {
	db       *database.DB
	eventBus domain.EventPublisher
	recorder domain.ActivityRecorder
	logger   *zerolog.Logger
}

func NewPatientService(db *database.DB, eventBus domain.EventPublisher, recorder domain.ActivityRecorder, logger *zerolog.Logger) *PatientService {
	return &PatientService{
		db:       db,
		eventBus: eventBus,
		recorder: recorder,
		logger:   logger,
	}
}

// Create registers a patient. Missing record numbers are generated and the
// QR value is derived from the record number when absent.
func (s *PatientService) Create(ctx context.Context, p *models.Patient, actorID string) error {
	if p.NoRM == "" {
		p.NoRM = models.GenerateNoRM()
	}
	if p.QRCode == "" {
		p.QRCode = models.QRValue(p.NoRM)
	}

	if err := s.db.CreatePatient(ctx, p); err != nil {
		return err
	}

	s.audit(ctx, actorID, models.ActionCreatePatient, p.NoRM, map[string]interface{}{"nama": p.Nama})
	s.publish(events.EventPatientCreated, p)
	return nil
}

func (s *PatientService) Update(ctx context.Context, p *models.Patient, actorID string) error {
	if err := s.db.UpdatePatient(ctx, p); err != nil {
		return err
	}

	s.audit(ctx, actorID, models.ActionUpdatePatient, p.NoRM, map[string]interface{}{"nama": p.Nama})
	s.publish(events.EventPatientUpdated, p)
	return nil
}

func (s *PatientService) Delete(ctx context.Context, id string, actorID string) error {
	p, err := s.db.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return domain.ErrNotFound
		}
		return err
	}

	if err := s.db.DeletePatient(ctx, id); err != nil {
		return err
	}

	s.audit(ctx, actorID, models.ActionDeletePatient, p.NoRM, nil)
	s.publish(events.EventPatientDeleted, p)
	return nil
}

func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	p, err := s.db.GetPatient(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (s *PatientService) GetByNoRM(ctx context.Context, noRM string) (*models.Patient, error) {
	p, err := s.db.GetPatientByNoRM(ctx, noRM)
	if errors.Is(err, database.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

func (s *PatientService) Search(ctx context.Context, query string, limit, offset int) ([]models.Patient, int64, error) {
	return s.db.SearchPatients(ctx, query, limit, offset)
}

func (s *PatientService) audit(ctx context.Context, actorID, aksi, noRM string, details map[string]interface{}) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.LogActivity(ctx, actorID, aksi, noRM, details); err != nil {
		s.logger.Warn().Err(err).Str("aksi", aksi).Msg("Failed to write audit entry")
	}
}

func (s *PatientService) publish(eventType string, p *models.Patient) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, map[string]string{
		"patient_id": p.ID,
		"no_rm":      p.NoRM,
	}); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
