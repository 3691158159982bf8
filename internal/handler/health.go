package handler

import "net/http"

// Health reports whether the API can reach its database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("health check", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
