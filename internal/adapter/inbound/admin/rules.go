package admin

import (
	"net/http"
	"strconv"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

// handleListRules returns the static, YAML-loaded signature set's current
// state. Pattern and description are fixed at startup; only Enabled is
// runtime-mutable, through handleSetRuleEnabled.
func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	if h.signatures == nil {
		h.respondJSON(w, http.StatusOK, []struct{}{})
		return
	}
	h.respondJSON(w, http.StatusOK, h.signatures.List())
}

// handleSetRuleEnabled toggles a static signature rule's enabled flag. The
// rule set itself is immutable at runtime; only this flag can change.
func (h *Handler) handleSetRuleEnabled(w http.ResponseWriter, r *http.Request) {
	if h.signatures == nil {
		h.respondError(w, http.StatusNotImplemented, "signature engine not configured")
		return
	}
	id := r.PathValue("id")
	var req enabledRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.signatures.SetEnabled(id, req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

type customSignatureRequest struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

func (h *Handler) handleListCustomSignatures(w http.ResponseWriter, r *http.Request) {
	sigs, err := h.store.CustomSignatures(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list signatures")
		return
	}
	h.respondJSON(w, http.StatusOK, sigs)
}

func (h *Handler) handleCreateCustomSignature(w http.ResponseWriter, r *http.Request) {
	var req customSignatureRequest
	if err := h.readJSON(r, &req); err != nil || req.Expression == "" {
		h.respondError(w, http.StatusBadRequest, "name and expression are required")
		return
	}
	id, err := h.store.CreateCustomSignature(r.Context(), req.Name, req.Expression)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to create signature")
		return
	}
	h.reloadCustomSignatures(r)
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) handleSetCustomSignatureEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req enabledRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.SetCustomSignatureEnabled(r.Context(), id, req.Enabled); err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to update signature")
		return
	}
	h.reloadCustomSignatures(r)
	w.WriteHeader(http.StatusNoContent)
}

// reloadCustomSignatures refreshes the Detection Pipeline's live compiled
// rule set after any signature mutation. Errors are not fatal to the HTTP
// response already committed; a failed reload just means the previous rule
// set stays in effect until the next successful mutation.
func (h *Handler) reloadCustomSignatures(r *http.Request) {
	if h.customSigs == nil {
		return
	}
	sigs, err := h.store.CustomSignatures(r.Context())
	if err != nil {
		return
	}
	entries := make([]ReloadEntry, 0, len(sigs))
	for _, s := range sigs {
		entries = append(entries, ReloadEntry{ID: strconv.FormatInt(s.ID, 10), Expression: s.Expression, Enabled: s.Enabled})
	}
	h.customSigs.Reload(entries)
}

// settingsResponse is the GET|PUT /api/settings wire shape: the live
// verdict thresholds plus the upstream/ML-service URLs and the
// safe-traffic logging flag, mirroring the reference implementation's
// WAF_SETTINGS dict.
type settingsResponse struct {
	VeryHigh       float64 `json:"very_high"`
	High           float64 `json:"high"`
	Medium         float64 `json:"medium"`
	Low            float64 `json:"low"`
	UpstreamURL    string  `json:"upstream_url"`
	MLServiceURL   string  `json:"ml_service_url"`
	LogSafeTraffic bool    `json:"log_safe_traffic"`
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if h.thresholds == nil || h.settings == nil {
		h.respondError(w, http.StatusNotImplemented, "settings not configured")
		return
	}
	vh, hi, med, lo := (*h.thresholds).Get()
	upstreamURL, mlServiceURL, logSafe := (*h.settings).Get()
	h.respondJSON(w, http.StatusOK, settingsResponse{
		VeryHigh: vh, High: hi, Medium: med, Low: lo,
		UpstreamURL: upstreamURL, MLServiceURL: mlServiceURL, LogSafeTraffic: logSafe,
	})
}

func (h *Handler) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	if h.thresholds == nil || h.settings == nil {
		h.respondError(w, http.StatusNotImplemented, "settings not configured")
		return
	}
	var req settingsResponse
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := (*h.thresholds).Set(req.VeryHigh, req.High, req.Medium, req.Low); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := (*h.settings).Set(req.UpstreamURL, req.MLServiceURL, req.LogSafeTraffic); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleIngestLog is the Detection Pipeline's authenticated target for
// forwarding non-safe Request Records to the Event Store, and it derives
// the attack type from the record's reason before persisting.
func (h *Handler) handleIngestLog(w http.ResponseWriter, r *http.Request) {
	var log controlplane.WAFLog
	if err := h.readJSON(r, &log); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if log.AttackType == "" {
		log.AttackType = controlplane.AttackTypeFromReason(log.Reason)
	}
	id, err := h.store.InsertWAFLog(r.Context(), log)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to persist log")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}
