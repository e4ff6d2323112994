package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"garage-api/internal/core"
)

// actorKey carries the authenticated user's ID through a request context so
// mutations can be attributed in the audit log.
type actorKey struct{}

// WithActor returns a context carrying the acting user's ID.
func WithActor(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

// actorID extracts the acting user, if any.
func actorID(ctx context.Context) *int {
	if id, ok := ctx.Value(actorKey{}).(int); ok {
		return &id
	}
	return nil
}

type appService struct {
	pool      *pgxpool.Pool
	invoices  core.InvoiceService
	inventory core.InventoryService
	customers core.CustomerService
	users     core.UserService
	audit     core.AuditService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	pool *pgxpool.Pool,
	invoices core.InvoiceService,
	inventory core.InventoryService,
	customers core.CustomerService,
	users core.UserService,
	audit core.AuditService,
) ApplicationService {
	return &appService{
		pool:      pool,
		invoices:  invoices,
		inventory: inventory,
		customers: customers,
		users:     users,
		audit:     audit,
	}
}

// ── Auth ─────────────────────────────────────────────────────────────────────

func (s *appService) AuthenticateUser(ctx context.Context, username, password string) (*UserSession, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			return nil, core.Validationf("invalid username or password")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, core.Validationf("account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, core.Validationf("invalid username or password")
	}

	return &UserSession{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     user.Role,
	}, nil
}

func (s *appService) GetUser(ctx context.Context, userID int) (*UserResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserResult{User: user}, nil
}

func (s *appService) CreateUser(ctx context.Context, req CreateUserRequest) (*core.User, error) {
	if len(req.Password) < 8 {
		return nil, core.Validationf("password must be at least 8 characters")
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Create(ctx, req.Username, req.Name, hash, req.Role)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "user.create", "user", user.ID, map[string]string{"role": user.Role})
	return user, nil
}

func (s *appService) GetAuditTrail(ctx context.Context, entityType string, entityID int) ([]core.AuditEntry, error) {
	return s.audit.ListForEntity(ctx, entityType, entityID)
}

// ── Customers / vehicles / jobs ──────────────────────────────────────────────

func (s *appService) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*core.Customer, error) {
	c, err := s.customers.CreateCustomer(ctx, core.CustomerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "customer.create", "customer", c.ID, nil)
	return c, nil
}

func (s *appService) GetCustomer(ctx context.Context, customerID int) (*CustomerResult, error) {
	c, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.customers.ListVehicles(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &CustomerResult{Customer: c, Vehicles: vehicles}, nil
}

func (s *appService) ListCustomers(ctx context.Context, search string) (*CustomerListResult, error) {
	customers, err := s.customers.ListCustomers(ctx, search)
	if err != nil {
		return nil, err
	}
	return &CustomerListResult{Customers: customers}, nil
}

func (s *appService) AddVehicle(ctx context.Context, req AddVehicleRequest) (*core.Vehicle, error) {
	return s.customers.AddVehicle(ctx, core.VehicleInput{
		CustomerID:  req.CustomerID,
		Make:        req.Make,
		Model:       req.Model,
		PlateNumber: req.PlateNumber,
		Year:        req.Year,
	})
}

func (s *appService) CreateJob(ctx context.Context, req CreateJobRequest) (*core.Job, error) {
	j, err := s.customers.CreateJob(ctx, core.JobInput{
		CustomerID: req.CustomerID,
		VehicleID:  req.VehicleID,
		Complaint:  req.Complaint,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "job.create", "job", j.ID, nil)
	return j, nil
}

func (s *appService) GetJob(ctx context.Context, jobID int) (*core.Job, error) {
	return s.customers.GetJob(ctx, jobID)
}

func (s *appService) ListJobs(ctx context.Context, customerID int, status string) (*JobListResult, error) {
	var st *core.JobStatus
	if status != "" {
		v := core.JobStatus(status)
		st = &v
	}
	jobs, err := s.customers.ListJobs(ctx, customerID, st)
	if err != nil {
		return nil, err
	}
	return &JobListResult{Jobs: jobs}, nil
}

func (s *appService) UpdateJobStatus(ctx context.Context, jobID int, status string) (*core.Job, error) {
	j, err := s.customers.UpdateJobStatus(ctx, jobID, core.JobStatus(status))
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "job.status", "job", jobID, map[string]string{"status": status})
	return j, nil
}

// ── Inventory ────────────────────────────────────────────────────────────────

func (s *appService) CreatePart(ctx context.Context, req PartRequest) (*core.Part, error) {
	p, err := s.inventory.CreatePart(ctx, partInput(req))
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "part.create", "part", p.ID, nil)
	return p, nil
}

func (s *appService) UpdatePart(ctx context.Context, partID int, req PartRequest) (*core.Part, error) {
	p, err := s.inventory.UpdatePart(ctx, partID, partInput(req))
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "part.update", "part", partID, nil)
	return p, nil
}

func partInput(req PartRequest) core.PartInput {
	return core.PartInput{
		PartName:     req.PartName,
		Category:     req.Category,
		StockQty:     req.StockQty,
		ReorderLevel: req.ReorderLevel,
		UnitCost:     req.UnitCost,
		SellingPrice: req.SellingPrice,
		Supplier:     req.Supplier,
		Notes:        req.Notes,
	}
}

func (s *appService) GetPart(ctx context.Context, partID int) (*core.Part, error) {
	return s.inventory.GetPart(ctx, partID)
}

func (s *appService) ListParts(ctx context.Context, category string, lowStockOnly bool) (*PartListResult, error) {
	parts, err := s.inventory.ListParts(ctx, category, lowStockOnly)
	if err != nil {
		return nil, err
	}
	return &PartListResult{Parts: parts}, nil
}

func (s *appService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockAdjustmentResult, error) {
	newQty, err := s.inventory.AdjustStock(ctx, req.PartID, req.Quantity, core.StockAdjustmentMode(req.Mode))
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "part.adjust_stock", "part", req.PartID, map[string]any{
		"mode":     req.Mode,
		"quantity": req.Quantity,
		"new_qty":  newQty,
		"reason":   req.Reason,
	})

	p, err := s.inventory.GetPart(ctx, req.PartID)
	if err != nil {
		return nil, err
	}
	return &StockAdjustmentResult{
		PartID:   req.PartID,
		NewQty:   newQty,
		LowStock: p.IsLowStock(),
		Mode:     req.Mode,
	}, nil
}

func (s *appService) ListLowStock(ctx context.Context) (*PartListResult, error) {
	parts, err := s.inventory.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	return &PartListResult{Parts: parts}, nil
}

// ── Invoices ─────────────────────────────────────────────────────────────────

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*core.Invoice, error) {
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	items := make([]core.InvoiceItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = core.InvoiceItemInput{
			PartID:      item.PartID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}

	inv, err := s.invoices.Create(ctx, core.CreateInvoiceInput{
		CustomerID: req.CustomerID,
		JobID:      req.JobID,
		DueDate:    dueDate,
		Tax:        req.Tax,
		Discount:   req.Discount,
		Notes:      req.Notes,
		Items:      items,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "invoice.create", "invoice", inv.ID, map[string]string{
		"invoice_number": inv.InvoiceNumber,
		"total":          inv.Total.String(),
	})
	return inv, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, core.Validationf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &t, nil
}

func (s *appService) GetInvoice(ctx context.Context, invoiceID int) (*core.Invoice, error) {
	return s.invoices.Get(ctx, invoiceID)
}

func (s *appService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoicePageResult, error) {
	filter := core.InvoiceFilter{Page: req.Page, Limit: req.Limit}
	if req.Status != "" {
		st := core.InvoiceStatus(req.Status)
		filter.Status = &st
	}
	if req.CustomerID != 0 {
		filter.CustomerID = &req.CustomerID
	}
	var err error
	if filter.From, err = parseDate(req.From); err != nil {
		return nil, err
	}
	if filter.To, err = parseDate(req.To); err != nil {
		return nil, err
	}

	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page, limit := req.Page, req.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return &InvoicePageResult{Invoices: invoices, Total: total, Page: page, Limit: limit}, nil
}

func (s *appService) UpdateInvoice(ctx context.Context, invoiceID int, req UpdateInvoiceRequest) (*core.Invoice, error) {
	in := core.UpdateInvoiceInput{
		Subtotal: req.Subtotal,
		Tax:      req.Tax,
		Discount: req.Discount,
		Total:    req.Total,
		Notes:    req.Notes,
	}
	if req.DueDate != nil {
		d, err := parseDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		in.DueDate = d
	}
	if req.Status != nil {
		st := core.InvoiceStatus(*req.Status)
		in.Status = &st
	}

	inv, err := s.invoices.Update(ctx, invoiceID, in, s.actorIsAdmin(ctx))
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "invoice.update", "invoice", invoiceID, nil)
	return inv, nil
}

// actorIsAdmin resolves the acting user's role; anonymous or unknown actors
// are not admins.
func (s *appService) actorIsAdmin(ctx context.Context) bool {
	id := actorID(ctx)
	if id == nil {
		return false
	}
	user, err := s.users.GetByID(ctx, *id)
	if err != nil {
		return false
	}
	return user.Role == "ADMIN"
}

func (s *appService) DeleteInvoice(ctx context.Context, invoiceID int) error {
	if err := s.invoices.Delete(ctx, invoiceID); err != nil {
		return err
	}
	s.audit.Record(ctx, actorID(ctx), "invoice.delete", "invoice", invoiceID, nil)
	return nil
}

func (s *appService) RecordPayment(ctx context.Context, invoiceID int, req RecordPaymentRequest) (*core.Invoice, error) {
	method := core.PaymentMethod(req.Method)
	switch method {
	case core.PaymentCash, core.PaymentMobileMoney, core.PaymentCard, core.PaymentBankTransfer:
	default:
		return nil, core.Validationf("invalid payment method %q", req.Method)
	}

	inv, err := s.invoices.RecordPayment(ctx, invoiceID, req.Amount, method, req.Reference, req.Notes)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actorID(ctx), "invoice.record_payment", "invoice", invoiceID, map[string]string{
		"amount": req.Amount.String(),
		"method": req.Method,
		"status": string(inv.Status),
	})
	return inv, nil
}

func (s *appService) InitializeMobileMoneyPayment(ctx context.Context, invoiceID int, req MobileMoneyRequest) (*core.PaymentSession, error) {
	return s.invoices.InitializeMobileMoneyPayment(ctx, invoiceID, req.Phone, req.Provider)
}

func (s *appService) InitializeOnlinePayment(ctx context.Context, invoiceID int, req OnlinePaymentRequest) (*core.PaymentSession, error) {
	return s.invoices.InitializeOnlinePayment(ctx, invoiceID, req.Email)
}

func (s *appService) VerifyPayment(ctx context.Context, reference string) (*VerifyPaymentResult, error) {
	inv, verification, err := s.invoices.VerifyPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	if inv != nil {
		s.audit.Record(ctx, nil, "invoice.verify_payment", "invoice", inv.ID, map[string]string{
			"reference": reference,
			"channel":   verification.Channel,
		})
	}
	return &VerifyPaymentResult{
		Paid:         inv != nil,
		Invoice:      inv,
		Verification: verification,
	}, nil
}

func (s *appService) ListOverdueInvoices(ctx context.Context) (*InvoicePageResult, error) {
	invoices, err := s.invoices.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}
	return &InvoicePageResult{Invoices: invoices, Total: len(invoices), Page: 1, Limit: len(invoices)}, nil
}

func (s *appService) SendPaymentReminder(ctx context.Context, invoiceID int) error {
	if err := s.invoices.SendPaymentReminder(ctx, invoiceID); err != nil {
		return err
	}
	s.audit.Record(ctx, actorID(ctx), "invoice.send_reminder", "invoice", invoiceID, nil)
	return nil
}

// HashPassword is used by user provisioning (seed tooling) so the bcrypt cost
// stays in one place.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
