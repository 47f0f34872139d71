package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"rmtracer/internal/database"
	"rmtracer/internal/domain"
	"rmtracer/internal/models"
	"rmtracer/internal/service"
)

// tracerRequest is the movement write sent by stations. CreatedAt carries
// the original event time for offline-synced movements; zero means now.
type tracerRequest struct {
	PatientID  string    `json:"patient_id"`
	LocationID string    `json:"location_id"`
	StaffID    string    `json:"staff_id,omitempty"`
	Keterangan string    `json:"keterangan,omitempty"`
	UserID     string    `json:"user_id"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

func (s *HTTPServer) handleTracer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req tracerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	rec := &models.Tracer{
		PatientID:  req.PatientID,
		LocationID: req.LocationID,
		StaffID:    req.StaffID,
		Keterangan: req.Keterangan,
		UserID:     req.UserID,
		CreatedAt:  req.CreatedAt,
	}

	rec, err := s.tracers.RecordMovement(r.Context(), rec)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLocationRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrPickerRequired):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to record movement")
		}
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *HTTPServer) handleTracerByID(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/tracer/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "tracer id is required")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	noRM := strings.TrimSpace(r.URL.Query().Get("no_rm"))
	if err := s.tracers.UndoMovement(r.Context(), id, actorID(r), noRM); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tracer not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete movement")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *HTTPServer) handleTracerHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	history, err := s.tracers.History(r.Context(), patientID, intQuery(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *HTTPServer) handleTracerCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
	if patientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	rec, err := s.tracers.CurrentLocation(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no movements recorded")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get current location")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
