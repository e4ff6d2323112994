package app

import (
	"context"

	"garage-api/internal/core"
)

// ApplicationService is the single interface transport adapters call. It
// decouples presentation from business logic. Implementations must contain no
// display logic of any kind.
type ApplicationService interface {
	// AuthenticateUser verifies credentials and returns a session on success.
	AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error)

	// GetUser returns a user profile by ID.
	GetUser(ctx context.Context, userID int) (*UserResult, error)

	// CreateUser provisions a dashboard account. Admin only at the transport
	// layer.
	CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error)

	// GetAuditTrail returns the recorded actions against one entity, newest
	// first.
	GetAuditTrail(ctx context.Context, entityType string, entityID int) ([]core.AuditEntry, error)

	// CreateCustomer registers a new customer.
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*core.Customer, error)

	// GetCustomer returns a customer with their vehicles.
	GetCustomer(ctx context.Context, customerID int) (*CustomerResult, error)

	// ListCustomers returns customers, optionally filtered by a name/phone search.
	ListCustomers(ctx context.Context, search string) (*CustomerListResult, error)

	// AddVehicle registers a vehicle against a customer.
	AddVehicle(ctx context.Context, req AddVehicleRequest) (*core.Vehicle, error)

	// CreateJob opens a repair job, allocating its job number.
	CreateJob(ctx context.Context, req CreateJobRequest) (*core.Job, error)

	// GetJob returns a single repair job.
	GetJob(ctx context.Context, jobID int) (*core.Job, error)

	// ListJobs returns jobs, optionally filtered by customer and status.
	ListJobs(ctx context.Context, customerID int, status string) (*JobListResult, error)

	// UpdateJobStatus moves a job through its workflow. Starting a job sends
	// the customer a best-effort SMS.
	UpdateJobStatus(ctx context.Context, jobID int, status string) (*core.Job, error)

	// CreatePart adds a part to inventory.
	CreatePart(ctx context.Context, req PartRequest) (*core.Part, error)

	// UpdatePart replaces a part's attributes.
	UpdatePart(ctx context.Context, partID int, req PartRequest) (*core.Part, error)

	// GetPart returns a single part.
	GetPart(ctx context.Context, partID int) (*core.Part, error)

	// ListParts returns parts, optionally filtered by category or low stock.
	ListParts(ctx context.Context, category string, lowStockOnly bool) (*PartListResult, error)

	// AdjustStock applies a manual ADD/REMOVE/SET stock correction.
	AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockAdjustmentResult, error)

	// ListLowStock returns parts at or below their reorder level.
	ListLowStock(ctx context.Context) (*PartListResult, error)

	// CreateInvoice creates an invoice in DRAFT, decrementing part stock where
	// available. The whole operation is atomic.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*core.Invoice, error)

	// GetInvoice returns an invoice with its items.
	GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error)

	// ListInvoices returns a filtered, paginated invoice page.
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoicePageResult, error)

	// UpdateInvoice applies a sparse patch. Only ADMIN actors may modify PAID
	// invoices.
	UpdateInvoice(ctx context.Context, invoiceID int, req UpdateInvoiceRequest) (*core.Invoice, error)

	// DeleteInvoice removes a non-PAID invoice.
	DeleteInvoice(ctx context.Context, invoiceID int) error

	// RecordPayment registers a manual payment against an invoice.
	RecordPayment(ctx context.Context, invoiceID int, req RecordPaymentRequest) (*core.Invoice, error)

	// InitializeMobileMoneyPayment pushes a mobile money prompt to the
	// customer's phone.
	InitializeMobileMoneyPayment(ctx context.Context, invoiceID int, req MobileMoneyRequest) (*core.PaymentSession, error)

	// InitializeOnlinePayment starts a hosted checkout session.
	InitializeOnlinePayment(ctx context.Context, invoiceID int, req OnlinePaymentRequest) (*core.PaymentSession, error)

	// VerifyPayment reconciles a gateway reference onto its invoice.
	// Idempotent for already-applied references.
	VerifyPayment(ctx context.Context, reference string) (*VerifyPaymentResult, error)

	// ListOverdueInvoices returns unpaid invoices past their due date.
	ListOverdueInvoices(ctx context.Context) (*InvoicePageResult, error)

	// SendPaymentReminder dispatches a reminder SMS for an unpaid invoice.
	SendPaymentReminder(ctx context.Context, invoiceID int) error
}
