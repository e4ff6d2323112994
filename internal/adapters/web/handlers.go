package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"garage-api/internal/app"
)

// WebhookVerifier authenticates gateway webhook deliveries by their
// body signature.
type WebhookVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc       app.ApplicationService
	webhooks  WebhookVerifier
	jwtSecret string
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, webhooks WebhookVerifier, allowedOrigins, jwtSecret string) http.Handler {
	h := &Handler{
		svc:       svc,
		webhooks:  webhooks,
		jwtSecret: jwtSecret,
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Metrics)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Get("/metrics", MetricsHandler().ServeHTTP)
	r.Post("/api/auth/login", h.login)
	r.Post("/api/auth/logout", h.logout)

	// Gateway callbacks: the webhook is authenticated by signature, and the
	// browser-redirect verify endpoint carries only a reference.
	r.Post("/api/webhooks/paystack", h.paystackWebhook)
	r.Get("/api/invoices/verify/{reference}", h.verifyPayment)

	// ── Protected API routes (return 401 JSON if unauthenticated) ────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/api/auth/me", h.me)
		r.With(h.RequireAdmin).Post("/api/users", h.createUser)
		r.With(h.RequireAdmin).Get("/api/audit", h.auditTrail)

		// Customers, vehicles, jobs
		r.Get("/api/customers", h.listCustomers)
		r.Post("/api/customers", h.createCustomer)
		r.Get("/api/customers/{id}", h.getCustomer)
		r.Post("/api/customers/{id}/vehicles", h.addVehicle)
		r.Get("/api/jobs", h.listJobs)
		r.Post("/api/jobs", h.createJob)
		r.Get("/api/jobs/{id}", h.getJob)
		r.Patch("/api/jobs/{id}/status", h.updateJobStatus)

		// Inventory
		r.Get("/api/parts", h.listParts)
		r.Post("/api/parts", h.createPart)
		r.Get("/api/parts/low-stock", h.listLowStock)
		r.Get("/api/parts/{id}", h.getPart)
		r.Put("/api/parts/{id}", h.updatePart)
		r.Post("/api/parts/{id}/adjust-stock", h.adjustStock)

		// Invoices
		r.Get("/api/invoices", h.listInvoices)
		r.Post("/api/invoices", h.createInvoice)
		r.Get("/api/invoices/overdue", h.listOverdueInvoices)
		r.Get("/api/invoices/{id}", h.getInvoice)
		r.Put("/api/invoices/{id}", h.updateInvoice)
		r.With(h.RequireAdmin).Delete("/api/invoices/{id}", h.deleteInvoice)
		r.Post("/api/invoices/{id}/payment", h.recordPayment)
		r.Post("/api/invoices/{id}/pay/mobile-money", h.payMobileMoney)
		r.Post("/api/invoices/{id}/pay/online", h.payOnline)
		r.Post("/api/invoices/{id}/send-reminder", h.sendReminder)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// idParam extracts a numeric {id} URL parameter.
func idParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
