package handlers

import (
	"context"
	"net/http"
	"time"

	"markbook/backend/internal/gateway/util"
)

// Pinger is anything that can report backend reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports whether the store is reachable
type HealthHandler struct {
	Store Pinger
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		util.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
