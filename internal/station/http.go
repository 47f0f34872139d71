package station

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rmtracer/internal/domain"
	"rmtracer/internal/notify"
	"rmtracer/internal/session"
	"rmtracer/internal/syncengine"

	"github.com/rs/zerolog"
)

// HTTPServer is the local surface the scan UI talks to.
type HTTPServer struct {
	service *Service
	queue   domain.Queue
	engine  *syncengine.Engine
	conn    domain.ConnectivitySignal
	session *session.Manager
	hub     *notify.Hub
	kv      domain.KVStore
	logger  zerolog.Logger
	server  *http.Server
}

func NewHTTPServer(port int, service *Service, queue domain.Queue, engine *syncengine.Engine,
	conn domain.ConnectivitySignal, sess *session.Manager, hub *notify.Hub,
	kv domain.KVStore, logger *zerolog.Logger) *HTTPServer {

	srv := &HTTPServer{
		service: service,
		queue:   queue,
		engine:  engine,
		conn:    conn,
		session: sess,
		hub:     hub,
		kv:      kv,
		logger:  logger.With().Str("component", "station-http").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/scan", srv.handleScan)
	mux.HandleFunc("/queue", srv.handleQueue)
	mux.HandleFunc("/deadletter", srv.handleDeadLetter)
	mux.HandleFunc("/sync", srv.handleSync)
	mux.HandleFunc("/status", srv.handleStatus)
	mux.HandleFunc("/notifications", srv.handleNotifications)
	mux.HandleFunc("/undo/", srv.handleUndo)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv
}

// Handler returns the route table, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Station UI listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.service.Scan(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyCode):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNotSignedIn):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items := s.queue.List()
	writeJSON(w, http.StatusOK, map[string]any{"pending": items, "count": len(items)})
}

func (s *HTTPServer) handleDeadLetter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	letters, err := syncengine.ListDeadLetters(r.Context(), s.kv)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read dead letters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dead_letters": letters, "count": len(letters)})
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.engine.SyncNow()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync requested"})
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	status := map[string]any{
		"online":  s.conn.Online(),
		"syncing": s.engine.Syncing(),
		"pending": s.queue.Len(),
	}
	if profile := s.session.Profile(); profile != nil {
		status["user"] = map[string]string{
			"id":    profile.ID,
			"email": profile.Email,
			"nama":  profile.Nama,
			"role":  profile.Role,
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// handleNotifications streams toasts to the UI as server-sent events.
func (s *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case n := <-stream:
			raw, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (s *HTTPServer) handleUndo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/undo/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "notification id is required")
		return
	}

	if err := s.hub.Undo(id); err != nil {
		writeError(w, http.StatusGone, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "undone"})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
