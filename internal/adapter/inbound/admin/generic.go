package admin

import "net/http"

// genericWriteRequest is the POST/PUT /api/db/{table}[/{id}] body: an
// arbitrary column-name-keyed map. The registry silently drops any key that
// doesn't name a column in the table's fixed projection.
type genericWriteRequest map[string]any

// handleGenericList and handleGenericGet expose the sqlstore generic-table
// registry directly: GenericRead itself rejects any table not in the
// closed allow-list, so this layer only needs to surface that error as 404.
func (h *Handler) handleGenericList(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	rows, err := h.db.GenericRead(r.Context(), table, "")
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleGenericGet(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	id := r.PathValue("id")
	rows, err := h.db.GenericRead(r.Context(), table, id)
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if len(rows) == 0 {
		h.respondError(w, http.StatusNotFound, "not found")
		return
	}
	h.respondJSON(w, http.StatusOK, rows[0])
}

// handleGenericCreate inserts one row into table, returning its new id.
func (h *Handler) handleGenericCreate(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	var req genericWriteRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := h.db.GenericCreate(r.Context(), table, req)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleGenericUpdate applies a partial update to one row of table.
func (h *Handler) handleGenericUpdate(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	id := r.PathValue("id")
	var req genericWriteRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.db.GenericUpdate(r.Context(), table, id, req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGenericDelete(w http.ResponseWriter, r *http.Request) {
	table := r.PathValue("table")
	id := r.PathValue("id")
	if err := h.db.GenericDelete(r.Context(), table, id); err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
