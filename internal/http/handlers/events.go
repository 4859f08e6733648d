package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamvio/streamvio/internal/transcode"
)

// EventsHandler streams job lifecycle events over SSE.
type EventsHandler struct {
	bus               *transcode.Bus
	logger            *slog.Logger
	heartbeatInterval time.Duration
}

// NewEventsHandler creates a new SSE events handler.
func NewEventsHandler(bus *transcode.Bus, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		bus:               bus,
		logger:            logger.With(slog.String("component", "sse")),
		heartbeatInterval: 30 * time.Second,
	}
}

// SetHeartbeatInterval overrides the heartbeat interval (for testing).
func (h *EventsHandler) SetHeartbeatInterval(interval time.Duration) {
	h.heartbeatInterval = interval
}

// Register mounts the SSE route on the router. Registered directly on chi
// because SSE does not fit the request/response model of the API layer.
func (h *EventsHandler) Register(router chi.Router) {
	router.Get("/api/v1/events", h.HandleEvents)
}

// HandleEvents streams bus events to the client until it disconnects.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.bus.Subscribe(64)
	defer h.bus.Unsubscribe(sub.ID)

	rc := http.NewResponseController(w)

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()

	// Initial comment establishes the connection and triggers onopen in
	// browsers.
	fmt.Fprintf(w, ":connected\n\n")
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ":heartbeat %d\n\n", time.Now().Unix())
			if err := rc.Flush(); err != nil {
				return
			}
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				h.logger.Debug("SSE write failed, client likely disconnected",
					slog.String("event_type", string(event.Type)),
					slog.String("error", err.Error()),
				)
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

// writeSSEEvent writes one event in SSE format, in a single write.
func writeSSEEvent(w http.ResponseWriter, event transcode.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, data)
	n, err := w.Write([]byte(message))
	if err != nil {
		return err
	}
	if n < len(message) {
		return fmt.Errorf("short write: wrote %d of %d bytes", n, len(message))
	}
	return nil
}
