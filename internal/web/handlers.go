package web

import (
	"encoding/json"
	"net/http"
	"time"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *TelemetryBroadcaster
	heartbeat   time.Duration
}

// NewHandlers creates handlers with the given dependencies.
func NewHandlers(broadcaster *TelemetryBroadcaster) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		heartbeat:   30 * time.Second,
	}
}

// HandleTelemetry returns the latest snapshot as JSON, 503 before the first tick.
func (h *Handlers) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.Broadcaster.Latest()
	if !ok {
		http.Error(w, "no telemetry yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleTelemetryStream handles GET /telemetry/stream for SSE.
func (h *Handlers) HandleTelemetryStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
