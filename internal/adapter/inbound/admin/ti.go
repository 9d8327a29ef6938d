package admin

import (
	"net/http"

	"github.com/vigilwaf/vigil/internal/domain/ti"
)

// handleTILookup resolves a single indicator against the named provider,
// through the restriction short-circuit, cache, and rate limiter the
// TIOrchestrator implements.
func (h *Handler) handleTILookup(w http.ResponseWriter, r *http.Request) {
	if h.ti == nil {
		h.respondError(w, http.StatusNotImplemented, "threat intelligence not configured")
		return
	}
	provider := r.PathValue("provider")
	indType := r.URL.Query().Get("type")
	value := r.URL.Query().Get("value")
	if indType == "" || value == "" {
		h.respondError(w, http.StatusBadRequest, "type and value query parameters are required")
		return
	}

	result, err := h.ti.Lookup(r.Context(), provider, ti.Indicator{Type: indType, Value: value})
	if err != nil {
		h.respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}
