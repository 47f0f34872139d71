package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rmtracer/internal/database"
	"rmtracer/internal/models"
)

func (s *HTTPServer) handleLocations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		locations, err := s.db.GetLocations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get locations")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locations": locations})

	case http.MethodPost:
		var loc models.Location
		if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if loc.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if err := s.db.CreateLocation(r.Context(), &loc); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create location")
			return
		}
		writeJSON(w, http.StatusCreated, loc)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleLocationByID(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/locations/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "location id is required")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var loc models.Location
		if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		loc.ID = id
		if err := s.db.UpdateLocation(r.Context(), &loc); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "location not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to update location")
			return
		}
		writeJSON(w, http.StatusOK, loc)

	case http.MethodDelete:
		if err := s.db.DeleteLocation(r.Context(), id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				writeError(w, http.StatusNotFound, "location not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to delete location")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleStaff(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var (
			staff []models.Staff
			err   error
		)
		if r.URL.Query().Get("active") == "true" {
			staff, err = s.db.GetActiveStaff(r.Context())
		} else {
			staff, err = s.db.GetAllStaff(r.Context())
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get staff")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"staff": staff})

	case http.MethodPost:
		var st models.Staff
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if st.Nama == "" {
			writeError(w, http.StatusBadRequest, "nama is required")
			return
		}
		if err := s.db.CreateStaff(r.Context(), &st); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to create staff")
			return
		}
		writeJSON(w, http.StatusCreated, st)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleStaffByID(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/staff/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "staff id is required")
		return
	}
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var st models.Staff
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st.ID = id
	if err := s.db.UpdateStaff(r.Context(), &st); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "staff not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update staff")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleUserLookup resolves a sign-in email to an account. Stations use it
// to establish their operator identity.
func (s *HTTPServer) handleUserLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	u, err := s.db.GetUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up user")
		return
	}
	if !u.IsActive {
		writeError(w, http.StatusForbidden, "user is inactive")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := models.ActivityFilter{
			UserID: strings.TrimSpace(r.URL.Query().Get("user_id")),
			Aksi:   strings.TrimSpace(r.URL.Query().Get("aksi")),
			NoRM:   strings.TrimSpace(r.URL.Query().Get("no_rm")),
			Limit:  intQuery(r, "limit", models.DefaultPageSize),
			Offset: intQuery(r, "offset", 0),
		}
		if from := r.URL.Query().Get("from"); from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid from timestamp")
				return
			}
			filter.From = t
		}
		if to := r.URL.Query().Get("to"); to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid to timestamp")
				return
			}
			filter.To = t
		}

		logs, total, err := s.activity.ListActivity(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list activity")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs, "total": total})

	case http.MethodPost:
		var entry struct {
			UserID  string                 `json:"user_id"`
			Aksi    string                 `json:"aksi"`
			NoRM    string                 `json:"no_rm"`
			Details map[string]interface{} `json:"details"`
		}
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if entry.Aksi == "" {
			writeError(w, http.StatusBadRequest, "aksi is required")
			return
		}
		if err := s.activity.LogActivity(r.Context(), entry.UserID, entry.Aksi, entry.NoRM, entry.Details); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to append activity")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "logged"})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assemble stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *HTTPServer) handleTracerExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, err := time.Parse("2006-01-02", r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
		return
	}
	// Include the whole end day
	end = end.Add(24*time.Hour - time.Nanosecond)

	f, err := s.reporter.TracerReport(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("tracer_%s_to_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if err := f.Write(w); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stream report")
	}
}
