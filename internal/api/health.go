package api

import (
	"net/http"
	"time"

	"github.com/harshite737-crypto/haste/internal/api/respond"
	"github.com/harshite737-crypto/haste/internal/health"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	service    func() bool
	components []health.HealthChecker
}

// NewHealthHandler reports service as the overall flag and lists every
// component's cached state. A nil service falls back to "all components up".
func NewHealthHandler(service func() bool, components ...health.HealthChecker) *HealthHandler {
	h := &HealthHandler{service: service, components: components}
	if h.service == nil {
		h.service = h.allHealthy
	}
	return h
}

func (h *HealthHandler) allHealthy() bool {
	for _, c := range h.components {
		if !c.IsHealthy() {
			return false
		}
	}
	return true
}

// CheckHealth handles GET /api/health
// Always returns 200; body reports healthy/unhealthy. 500 indicates handler failure only.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	status := "unhealthy"
	if h.service() {
		status = "healthy"
	}
	components := make(map[string]string, len(h.components))
	for _, c := range h.components {
		if c.IsHealthy() {
			components[c.Name()] = "healthy"
		} else {
			components[c.Name()] = "unhealthy"
		}
	}
	response := map[string]interface{}{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().Format(time.RFC3339),
	}
	respond.WriteJSON(w, http.StatusOK, response)
}
