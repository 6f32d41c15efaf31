package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health-check endpoints.
type HealthHandler struct {
	pending func() int
}

// NewHealthHandler takes a func reporting the number of pending codes, exposed
// by the "stats" action. nil disables it.
func NewHealthHandler(pending func() int) *HealthHandler {
	return &HealthHandler{pending: pending}
}

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "stats":
		if h.pending == nil {
			writeError(w, http.StatusNotFound, "stats disabled")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"pending_codes": h.pending()})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
