package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"rmtracer/internal/database"
	"rmtracer/internal/domain"
	"rmtracer/internal/models"
)

func (s *HTTPServer) handlePatients(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := intQuery(r, "limit", models.DefaultPageSize)
		offset := intQuery(r, "offset", 0)

		patients, total, err := s.patients.Search(r.Context(), query, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to search patients")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"patients": patients, "total": total})

	case http.MethodPost:
		var p models.Patient
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if p.Nama == "" {
			writeError(w, http.StatusBadRequest, "nama is required")
			return
		}

		if err := s.patients.Create(r.Context(), &p, actorID(r)); err != nil {
			if errors.Is(err, database.ErrDuplicateNoRM) {
				writeError(w, http.StatusConflict, "record number already exists")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to create patient")
			return
		}
		writeJSON(w, http.StatusCreated, p)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handlePatientLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	noRM := strings.TrimSpace(r.URL.Query().Get("no_rm"))
	if noRM == "" {
		writeError(w, http.StatusBadRequest, "no_rm is required")
		return
	}

	p, err := s.patients.GetByNoRM(r.Context(), noRM)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "patient not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up patient")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HTTPServer) handlePatientByID(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/patients/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "patient id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.patients.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "patient not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to get patient")
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		var p models.Patient
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		p.ID = id

		if err := s.patients.Update(r.Context(), &p, actorID(r)); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "patient not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to update patient")
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodDelete:
		if err := s.patients.Delete(r.Context(), id, actorID(r)); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				writeError(w, http.StatusNotFound, "patient not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to delete patient")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func intQuery(r *http.Request, name string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	tail = strings.TrimSpace(tail)
	if tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}
