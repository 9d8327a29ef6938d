package admin

import (
	"net/http"
	"strconv"
	"time"
)

// handleAcknowledgeAlert moves an alert to "acknowledged". Open to any
// authenticated user, not just admin/analyst: spec's role policy lets
// non-admin users read analytics and acknowledge alerts.
func (h *Handler) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.store.AcknowledgeAlert(r.Context(), id); err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	logs, err := h.store.Logs(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}
	h.respondJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.Alerts(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("severity"))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	h.respondJSON(w, http.StatusOK, alerts)
}

// handleKPIs, handleTraffic, handleOWASP and handleHeatmap all read
// directly from the concrete sqlstore handle: these are aggregate queries
// the EventStore port deliberately doesn't abstract, since no adapter other
// than sqlstore will ever answer them.
func (h *Handler) handleKPIs(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.db.KPIs(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to compute kpis")
		return
	}
	h.respondJSON(w, http.StatusOK, kpis)
}

func (h *Handler) handleTraffic(w http.ResponseWriter, r *http.Request) {
	traffic, err := h.db.Traffic(r.Context(), time.Now())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to compute traffic")
		return
	}
	h.respondJSON(w, http.StatusOK, traffic)
}

func (h *Handler) handleOWASP(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.db.OWASPBreakdown(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to compute owasp breakdown")
		return
	}
	h.respondJSON(w, http.StatusOK, breakdown)
}

func (h *Handler) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	cells, err := h.db.Heatmap(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to compute heatmap")
		return
	}
	var peak int
	for _, row := range cells {
		for _, n := range row {
			peak = max(peak, n)
		}
	}
	var normalized [7][24]float64
	for d, row := range cells {
		for hr, n := range row {
			if peak > 0 {
				normalized[d][hr] = float64(n) / float64(peak)
			}
		}
	}
	h.respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) handleSysLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	logs, err := h.store.SysLogs(r.Context(), limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list syslogs")
		return
	}
	h.respondJSON(w, http.StatusOK, logs)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
