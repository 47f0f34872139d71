package station

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rmtracer/internal/domain"
	"rmtracer/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptyCode is returned for scans with no usable record number.
	ErrEmptyCode = errors.New("scanned code is empty")

	// ErrNotSignedIn is returned when no operator identity is available.
	ErrNotSignedIn = errors.New("no signed-in operator")
)

// ScanRequest is one QR scan plus the chosen destination.
type ScanRequest struct {
	Code       string `json:"code"`
	LocationID string `json:"location_id"`
	StaffID    string `json:"staff_id,omitempty"`
	Note       string `json:"note,omitempty"`
}

// ScanResult reports what happened to a scan: recorded directly against
// the backend, or queued for later sync.
type ScanResult struct {
	Status  string          `json:"status"` // recorded | queued
	NoRM    string          `json:"no_rm"`
	Patient *models.Patient `json:"patient,omitempty"`
	Tracer  *models.Tracer  `json:"tracer,omitempty"`
}

const (
	StatusRecorded = "recorded"
	StatusQueued   = "queued"
)

// Service runs the scan flow: write through to the backend when it is
// reachable, fall back to the offline queue when it is not.
type Service struct {
	backend  domain.Backend
	queue    domain.Queue
	conn     domain.ConnectivitySignal
	identity domain.Identity
	notifier domain.Notifier
	logger   zerolog.Logger
}

func NewService(backend domain.Backend, queue domain.Queue, conn domain.ConnectivitySignal,
	identity domain.Identity, notifier domain.Notifier, logger *zerolog.Logger) *Service {
	return &Service{
		backend:  backend,
		queue:    queue,
		conn:     conn,
		identity: identity,
		notifier: notifier,
		logger:   logger.With().Str("component", "station").Logger(),
	}
}

func (s *Service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	noRM := models.ParseQRValue(req.Code)
	if noRM == "" {
		return nil, ErrEmptyCode
	}
	if strings.TrimSpace(req.LocationID) == "" {
		return nil, fmt.Errorf("location_id is required")
	}

	userID, ok := s.identity.CurrentUserID()
	if !ok {
		return nil, ErrNotSignedIn
	}

	if !s.conn.Online() {
		return s.enqueue(ctx, noRM, "", req, userID)
	}

	patient, err := s.backend.LookupPatientByRecordNumber(ctx, noRM)
	if errors.Is(err, domain.ErrNotFound) {
		s.notifier.Error(fmt.Sprintf("Berkas %s tidak ditemukan", noRM))
		return nil, fmt.Errorf("record number %s: %w", noRM, domain.ErrNotFound)
	}
	if err != nil {
		// Backend went away mid-scan; treat it like an offline scan
		s.logger.Warn().Err(err).Msg("Lookup failed, queueing scan")
		return s.enqueue(ctx, noRM, "", req, userID)
	}

	rec := &models.Tracer{
		PatientID:  patient.ID,
		LocationID: req.LocationID,
		StaffID:    req.StaffID,
		Keterangan: req.Note,
		UserID:     userID,
	}
	created, err := s.backend.InsertTracer(ctx, rec)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.notifier.Error("Lokasi tujuan tidak ditemukan")
			return nil, err
		}
		s.logger.Warn().Err(err).Msg("Movement write failed, queueing scan")
		return s.enqueue(ctx, noRM, patient.ID, req, userID)
	}

	s.logScan(ctx, userID, noRM, req)

	tracerID := created.ID
	s.notifier.Success(fmt.Sprintf("Berkas %s: status diperbarui", noRM), func() {
		undoCtx, cancel := context.WithTimeout(context.Background(), models.UndoTimeout)
		defer cancel()
		if err := s.backend.DeleteTracer(undoCtx, tracerID); err != nil {
			s.logger.Error().Err(err).Str("tracer_id", tracerID).Msg("Undo failed")
			s.notifier.Error("Gagal membatalkan perubahan")
			return
		}
		s.notifier.Info("Perubahan dibatalkan")
	})

	return &ScanResult{Status: StatusRecorded, NoRM: noRM, Patient: patient, Tracer: created}, nil
}

func (s *Service) enqueue(ctx context.Context, noRM, patientID string, req ScanRequest, userID string) (*ScanResult, error) {
	_, err := s.queue.Enqueue(ctx, models.MutationLocationUpdate, models.MutationPayload{
		PatientID:  patientID,
		NoRM:       noRM,
		LocationID: req.LocationID,
		StaffID:    req.StaffID,
		Note:       req.Note,
		UserID:     userID,
	})
	if err != nil {
		s.notifier.Error("Gagal menyimpan scan offline")
		return nil, fmt.Errorf("failed to queue scan: %w", err)
	}

	s.notifier.Info(fmt.Sprintf("Berkas %s disimpan offline, menunggu sinkronisasi", noRM))
	return &ScanResult{Status: StatusQueued, NoRM: noRM}, nil
}

// logScan records the SCAN_QR audit entry. Best-effort: a failed audit
// write never fails the scan.
func (s *Service) logScan(ctx context.Context, userID, noRM string, req ScanRequest) {
	entry := &models.ActivityLog{
		UserID:  userID,
		Aksi:    models.ActionScanQR,
		NoRM:    noRM,
		Details: fmt.Sprintf(`{"location_id":%q}`, req.LocationID),
	}
	if err := s.backend.AppendActivityLog(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("no_rm", noRM).Msg("Failed to write scan audit entry")
	}
}
