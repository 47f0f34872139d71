package api

import (
	"fmt"
	"net/http"

	"rmtracer/internal/events"
)

// handleEvents streams domain events as server-sent events. Dashboards use
// this in place of a hosted realtime channel.
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
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
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Buffered so a slow client drops events instead of blocking the bus
	stream := make(chan *events.Event, 32)
	unsubscribe := s.bus.Subscribe("", func(e *events.Event) error {
		select {
		case stream <- e:
		default:
		}
		return nil
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-stream:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, e.Payload)
			flusher.Flush()
		}
	}
}
