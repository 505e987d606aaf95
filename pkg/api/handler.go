package api

import (
	"encoding/json"
	"net/http"
)

// Handler provides the health and paid-status endpoints
type Handler struct {
	config Config
}

// Health reports that the process is up. It does not touch the store.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, HealthResponse{OK: true, Service: h.config.ServiceName})
}

// Check answers whether the email in the request belongs to a paying user.
// It always answers 200; lookup failures read as {"paid":false}.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	status := h.config.Querier.PaidStatus(r.Context(), h.config.GetEmail(r))
	h.writeJSON(w, r, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil && h.config.OnError != nil {
		h.config.OnError(w, r, err)
	}
}
