package web

import (
	"net/http"

	"garage-api/internal/app"
)

func (h *Handler) createPart(w http.ResponseWriter, r *http.Request) {
	var req app.PartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.CreatePart(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, p)
}

func (h *Handler) updatePart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid part id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.PartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.UpdatePart(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) getPart(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid part id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	p, err := h.svc.GetPart(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, p)
}

func (h *Handler) listParts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.ListParts(r.Context(), q.Get("category"), q.Get("low_stock") == "true")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid part id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.PartID = id
	result, err := h.svc.AdjustStock(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListLowStock(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}
