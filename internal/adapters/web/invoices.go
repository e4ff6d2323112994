package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"garage-api/internal/app"
)

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req app.CreateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, inv)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customerID, _ := strconv.Atoi(q.Get("customer_id"))
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.svc.ListInvoices(r.Context(), app.ListInvoicesRequest{
		Status:     q.Get("status"),
		CustomerID: customerID,
		From:       q.Get("from"),
		To:         q.Get("to"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.UpdateInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.UpdateInvoice(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Deleted bool `json:"deleted"`
	}
	writeJSON(w, response{Deleted: true})
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.RecordPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := h.svc.RecordPayment(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, inv)
}

func (h *Handler) payMobileMoney(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.MobileMoneyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.InitializeMobileMoneyPayment(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, session)
}

func (h *Handler) payOnline(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	var req app.OnlinePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.svc.InitializeOnlinePayment(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, session)
}

// verifyPayment handles the browser redirect back from the gateway.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		writeError(w, r, "payment reference is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.VerifyPayment(r.Context(), reference)
	if err != nil {
		countVerification("error")
		writeDomainError(w, r, err)
		return
	}
	if result.Paid {
		countVerification("paid")
	} else {
		countVerification("unpaid")
	}
	writeJSON(w, result)
}

func (h *Handler) listOverdueInvoices(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListOverdueInvoices(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) sendReminder(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, "invalid invoice id", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if err := h.svc.SendPaymentReminder(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	type response struct {
		Sent bool `json:"sent"`
	}
	writeJSON(w, response{Sent: true})
}
