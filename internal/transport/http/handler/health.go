package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "action") == "ping" {
		writeStatus(w, http.StatusOK, "pong")
		return
	}
	writeStatus(w, http.StatusBadRequest, "Unknown action")
}
