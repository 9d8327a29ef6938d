package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vigilwaf/vigil/internal/domain/controlplane"
)

func (h *Handler) handleListRestrictions(w http.ResponseWriter, r *http.Request) {
	restrictions, err := h.store.Restrictions(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list restrictions")
		return
	}
	h.respondJSON(w, http.StatusOK, restrictions)
}

type restrictionRequest struct {
	Type   string `json:"type"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (h *Handler) handleCreateRestriction(w http.ResponseWriter, r *http.Request) {
	var req restrictionRequest
	if err := h.readJSON(r, &req); err != nil || req.Value == "" {
		h.respondError(w, http.StatusBadRequest, "type and value are required")
		return
	}
	typ := controlplane.RestrictionType(req.Type)
	switch typ {
	case controlplane.RestrictionIP, controlplane.RestrictionHash, controlplane.RestrictionDomain:
	default:
		h.respondError(w, http.StatusBadRequest, "type must be ip, hash, or domain")
		return
	}
	id, err := h.store.CreateRestriction(r.Context(), controlplane.Restriction{
		Type: typ, Value: req.Value, Reason: req.Reason, CreatedAt: time.Now(),
	})
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to create restriction")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleDeleteRestriction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.store.DeleteRestriction(r.Context(), id); err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to delete restriction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type suspiciousProfileRequest struct {
	Identifier string `json:"identifier"`
	Notes      string `json:"notes"`
}

func (h *Handler) handleCreateSuspiciousProfile(w http.ResponseWriter, r *http.Request) {
	var req suspiciousProfileRequest
	if err := h.readJSON(r, &req); err != nil || req.Identifier == "" {
		h.respondError(w, http.StatusBadRequest, "identifier is required")
		return
	}
	id, err := h.store.CreateSuspiciousUserProfile(r.Context(), req.Identifier, req.Notes)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to create profile")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type whitelistRequest struct {
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

func (h *Handler) handleCreateWhitelistEntry(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if err := h.readJSON(r, &req); err != nil || req.Pattern == "" {
		h.respondError(w, http.StatusBadRequest, "pattern is required")
		return
	}
	id, err := h.store.CreateWhitelistEntry(r.Context(), req.Pattern, req.Reason)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to create whitelist entry")
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}
