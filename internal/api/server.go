package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rmtracer/internal/config"
	"rmtracer/internal/database"
	"rmtracer/internal/events"
	"rmtracer/internal/export"
	"rmtracer/internal/metrics"
	"rmtracer/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the backend API consumed by scan stations and the
// dashboard.
type HTTPServer struct {
	cfg      config.APIConfig
	db       *database.DB
	patients *service.PatientService
	tracers  *service.TracerService
	activity *service.ActivityService
	stats    *service.DashboardService
	reporter *export.Reporter
	bus      *events.EventBus
	logger   zerolog.Logger

	server *http.Server
	auth   *HTTPAuth
}

func NewHTTPServer(cfg config.APIConfig, db *database.DB,
	patients *service.PatientService, tracers *service.TracerService,
	activity *service.ActivityService, stats *service.DashboardService,
	reporter *export.Reporter, bus *events.EventBus, logger *zerolog.Logger) *HTTPServer {

	srv := &HTTPServer{
		cfg:      cfg,
		db:       db,
		patients: patients,
		tracers:  tracers,
		activity: activity,
		stats:    stats,
		reporter: reporter,
		bus:      bus,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/ping", srv.handlePing)
	mux.HandleFunc("/api/v1/patients", srv.handlePatients)
	mux.HandleFunc("/api/v1/patients/lookup", srv.handlePatientLookup)
	mux.HandleFunc("/api/v1/patients/", srv.handlePatientByID)
	mux.HandleFunc("/api/v1/tracer", srv.handleTracer)
	mux.HandleFunc("/api/v1/tracer/history", srv.handleTracerHistory)
	mux.HandleFunc("/api/v1/tracer/current", srv.handleTracerCurrent)
	mux.HandleFunc("/api/v1/tracer/", srv.handleTracerByID)
	mux.HandleFunc("/api/v1/locations", srv.handleLocations)
	mux.HandleFunc("/api/v1/locations/", srv.handleLocationByID)
	mux.HandleFunc("/api/v1/staff", srv.handleStaff)
	mux.HandleFunc("/api/v1/staff/", srv.handleStaffByID)
	mux.HandleFunc("/api/v1/users/lookup", srv.handleUserLookup)
	mux.HandleFunc("/api/v1/activity", srv.handleActivity)
	mux.HandleFunc("/api/v1/dashboard/stats", srv.handleDashboardStats)
	mux.HandleFunc("/api/v1/exports/tracer", srv.handleTracerExport)
	mux.HandleFunc("/api/v1/events", srv.handleEvents)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return srv
}

// Handler returns the configured handler chain, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// actorID is the acting account for audit entries, sent by stations.
func actorID(r *http.Request) string {
	return r.Header.Get("x-user-id")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush lets SSE responses stream through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
