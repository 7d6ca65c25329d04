// Package api provides HTTP API handlers for the printcam streamer.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/printcam/internal/store"
)

// Cap on how many events one request may ask for.
const maxEventLimit = 500

// EventsHandler handles HTTP requests for the motion event log.
type EventsHandler struct {
	store *store.Store
}

// NewEventsHandler creates a new EventsHandler with the given store.
func NewEventsHandler(s *store.Store) *EventsHandler {
	return &EventsHandler{store: s}
}

// Response types

type eventResponse struct {
	ID        string  `json:"id"`
	Metric    float64 `json:"metric"`
	Snapshot  string  `json:"snapshot"`
	CreatedAt string  `json:"created_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
	Total  int             `json:"total"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP implements the http.Handler interface. The event log is
// read-only over HTTP; events are created only by the detector.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.list(w, r)
}

// list handles GET /api/events with an optional ?limit=N parameter.
func (h *EventsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxEventLimit {
			writeError(w, http.StatusBadRequest, "limit must be in 1..500")
			return
		}
		limit = n
	}

	events, err := h.store.Events().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	total, err := h.store.Events().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count events")
		return
	}

	resp := listEventsResponse{
		Events: make([]eventResponse, 0, len(events)),
		Total:  total,
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, eventResponse{
			ID:        ev.ID,
			Metric:    ev.Metric,
			Snapshot:  ev.Snapshot,
			CreatedAt: ev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
