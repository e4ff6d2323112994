package web

import (
	"net/http"
	"strconv"

	"garage-api/internal/app"
)

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var req app.CreateCustomerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCustomer(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid customer id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	result, err := h.svc.GetCustomer(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListCustomers(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid customer id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.AddVehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CustomerID = id
	v, err := h.svc.AddVehicle(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, v)
}

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	var req app.CreateJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	j, err := h.svc.CreateJob(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, j)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid job id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	j, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, j)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customerID, _ := strconv.Atoi(q.Get("customer_id"))
	result, err := h.svc.ListJobs(r.Context(), customerID, q.Get("status"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) updateJobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid job id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	j, err := h.svc.UpdateJobStatus(r.Context(), id, req.Status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, j)
}
