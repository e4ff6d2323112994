package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// InvoiceService owns the invoice lifecycle: creation with inventory
// decrement, manual payment recording, gateway payment initialization, and
// idempotent reconciliation of asynchronous payment verification.
//
// All state transitions happen inside database transactions with the invoice
// row locked; notification dispatch and session bookkeeping happen after
// commit and never roll a committed transition back.
type InvoiceService interface {
	Create(ctx context.Context, in CreateInvoiceInput) (*Invoice, error)
	Get(ctx context.Context, invoiceID int) (*Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error)
	// Update applies a sparse patch. PAID invoices reject changes unless the
	// caller holds elevated privilege (allowPaid).
	Update(ctx context.Context, invoiceID int, in UpdateInvoiceInput, allowPaid bool) (*Invoice, error)
	// Delete removes a non-PAID invoice and its items. Stock decremented at
	// creation time is intentionally not restored.
	Delete(ctx context.Context, invoiceID int) error

	// RecordPayment registers a manual payment. A single payment covering the
	// full total transitions the invoice to PAID; anything less moves it to
	// SENT, or to PARTIALLY_PAID when the invoice is already OVERDUE or
	// PARTIALLY_PAID. Overpayment is rejected, not clamped.
	RecordPayment(ctx context.Context, invoiceID int, amount decimal.Decimal, method PaymentMethod, reference, notes string) (*Invoice, error)

	// InitializeMobileMoneyPayment pushes a payment prompt to the customer's
	// phone. No invoice state is persisted until verification succeeds.
	InitializeMobileMoneyPayment(ctx context.Context, invoiceID int, phone, provider string) (*PaymentSession, error)
	// InitializeOnlinePayment starts a hosted checkout session.
	InitializeOnlinePayment(ctx context.Context, invoiceID int, email string) (*PaymentSession, error)

	// VerifyPayment reconciles a gateway reference onto its invoice. Safe to
	// call repeatedly: a reference already applied is a no-op success. A nil
	// invoice with a nil error means the gateway reported the payment as not
	// (yet) successful.
	VerifyPayment(ctx context.Context, reference string) (*Invoice, *PaymentVerification, error)

	// ListOverdue returns unpaid invoices whose due date has passed.
	ListOverdue(ctx context.Context) ([]Invoice, error)
	// SendPaymentReminder dispatches a reminder SMS. Unlike completion
	// notifications, a provider failure here is surfaced to the caller.
	SendPaymentReminder(ctx context.Context, invoiceID int) error
}

type invoiceService struct {
	pool      *pgxpool.Pool
	numbers   NumberService
	inventory InventoryService
	gateway   PaymentGateway
	notifier  Notifier
	sessions  SessionStore // optional; nil disables session tracking
	appURL    string
	log       zerolog.Logger
}

// NewInvoiceService wires the state machine with its collaborators. Gateway,
// notifier, and session store are injected so tests can substitute fakes.
func NewInvoiceService(
	pool *pgxpool.Pool,
	numbers NumberService,
	inventory InventoryService,
	gateway PaymentGateway,
	notifier Notifier,
	sessions SessionStore,
	appURL string,
) InvoiceService {
	return &invoiceService{
		pool:      pool,
		numbers:   numbers,
		inventory: inventory,
		gateway:   gateway,
		notifier:  notifier,
		sessions:  sessions,
		appURL:    appURL,
		log:       log.With().Str("component", "invoice").Logger(),
	}
}

// NewPaymentReference builds a globally unique gateway reference:
// prefix, millisecond timestamp, and a short random suffix.
func NewPaymentReference(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), suffix)
}

// ── Creation ─────────────────────────────────────────────────────────────────

func (s *invoiceService) Create(ctx context.Context, in CreateInvoiceInput) (*Invoice, error) {
	if len(in.Items) == 0 {
		return nil, Validationf("invoice requires at least one item")
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, Validationf("item %d: quantity must be positive", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return nil, Validationf("item %d: unit price cannot be negative", i+1)
		}
	}
	if in.Tax.IsNegative() || in.Discount.IsNegative() {
		return nil, Validationf("tax and discount cannot be negative")
	}

	subtotal := decimal.Zero
	for _, item := range in.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	total := subtotal.Sub(in.Discount).Add(in.Tax)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var customerExists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)", in.CustomerID).Scan(&customerExists); err != nil {
		return nil, fmt.Errorf("failed to check customer %d: %w", in.CustomerID, err)
	}
	if !customerExists {
		return nil, NotFoundf("customer %d not found", in.CustomerID)
	}

	if in.JobID != nil {
		var jobCustomerID int
		err := tx.QueryRow(ctx, "SELECT customer_id FROM jobs WHERE id = $1", *in.JobID).Scan(&jobCustomerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("job %d not found", *in.JobID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check job %d: %w", *in.JobID, err)
		}
		if jobCustomerID != in.CustomerID {
			return nil, Validationf("job %d does not belong to customer %d", *in.JobID, in.CustomerID)
		}
	}

	invoiceNumber, err := s.numbers.NextInvoiceNumberTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	var invoiceID int
	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, customer_id, job_id, issue_date, due_date,
		                      subtotal, tax, discount, total, status, notes)
		VALUES ($1, $2, $3, NOW(), $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, invoiceNumber, in.CustomerID, in.JobID, in.DueDate,
		subtotal, in.Tax, in.Discount, total, InvoiceDraft, in.Notes,
	).Scan(&invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert invoice: %w", err)
	}

	for i, item := range in.Items {
		// Best-effort stock accounting: an item that oversells its part keeps
		// the line but leaves stock untouched, and the skip is recorded on
		// the item rather than hidden.
		decremented := false
		if item.PartID != nil {
			var partExists bool
			if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM parts WHERE id = $1)", *item.PartID).Scan(&partExists); err != nil {
				return nil, fmt.Errorf("failed to check part %d: %w", *item.PartID, err)
			}
			if !partExists {
				return nil, NotFoundf("part %d not found", *item.PartID)
			}
			decremented, err = s.inventory.DecrementIfAvailableTx(ctx, tx, *item.PartID, item.Quantity)
			if err != nil {
				return nil, err
			}
		}

		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, part_id, description, quantity, unit_price, line_total, stock_decremented)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, invoiceID, item.PartID, item.Description, item.Quantity, item.UnitPrice, lineTotal, decremented)
		if err != nil {
			return nil, fmt.Errorf("failed to insert invoice item %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit invoice creation: %w", err)
	}

	return s.Get(ctx, invoiceID)
}

// ── Reads ────────────────────────────────────────────────────────────────────

const invoiceColumns = `
	i.id, i.invoice_number, i.customer_id, c.name, c.phone, COALESCE(c.email, ''),
	i.job_id, COALESCE(j.job_number, ''),
	COALESCE(NULLIF(TRIM(COALESCE(v.make, '') || ' ' || COALESCE(v.model, '')), ''), ''),
	i.issue_date, i.due_date, i.subtotal, i.tax, i.discount, i.total, i.status,
	COALESCE(i.notes, ''), i.payment_method, i.payment_date, i.payment_ref,
	i.created_at, i.updated_at`

const invoiceJoins = `
	FROM invoices i
	JOIN customers c ON c.id = i.customer_id
	LEFT JOIN jobs j ON j.id = i.job_id
	LEFT JOIN vehicles v ON v.id = j.vehicle_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var method *string
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &inv.CustomerName, &inv.CustomerPhone, &inv.CustomerEmail,
		&inv.JobID, &inv.JobNumber, &inv.Vehicle,
		&inv.IssueDate, &inv.DueDate, &inv.Subtotal, &inv.Tax, &inv.Discount, &inv.Total, &inv.Status,
		&inv.Notes, &method, &inv.PaymentDate, &inv.PaymentRef,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if method != nil {
		m := PaymentMethod(*method)
		inv.PaymentMethod = &m
	}
	return &inv, nil
}

func (s *invoiceService) Get(ctx context.Context, invoiceID int) (*Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		"SELECT"+invoiceColumns+invoiceJoins+" WHERE i.id = $1", invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("invoice %d not found", invoiceID)
		}
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	items, err := s.fetchItems(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (s *invoiceService) fetchItems(ctx context.Context, invoiceID int) ([]InvoiceItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT it.id, it.invoice_id, it.part_id, COALESCE(p.part_name, ''),
		       it.description, it.quantity, it.unit_price, it.line_total, it.stock_decremented
		FROM invoice_items it
		LEFT JOIN parts p ON p.id = it.part_id
		WHERE it.invoice_id = $1
		ORDER BY it.id
	`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoice items: %w", err)
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.PartID, &it.PartName,
			&it.Description, &it.Quantity, &it.UnitPrice, &it.LineTotal, &it.StockDecremented); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *invoiceService) List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where += fmt.Sprintf(" AND "+cond, len(args))
	}
	if filter.Status != nil {
		add("i.status = $%d", *filter.Status)
	}
	if filter.CustomerID != nil {
		add("i.customer_id = $%d", *filter.CustomerID)
	}
	if filter.From != nil {
		add("i.issue_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("i.issue_date <= $%d", *filter.To)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices i"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	query := "SELECT" + invoiceColumns + invoiceJoins + where +
		fmt.Sprintf(" ORDER BY i.created_at DESC LIMIT %d OFFSET %d", limit, (page-1)*limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	invoices, err := collectInvoices(rows)
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func collectInvoices(rows pgx.Rows) ([]Invoice, error) {
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

func (s *invoiceService) ListOverdue(ctx context.Context) ([]Invoice, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT"+invoiceColumns+invoiceJoins+`
		WHERE i.status IN ($1, $2, $3) AND i.due_date IS NOT NULL AND i.due_date < NOW()
		ORDER BY i.due_date ASC`,
		InvoiceSent, InvoicePartiallyPaid, InvoiceOverdue)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue invoices: %w", err)
	}
	defer rows.Close()

	return collectInvoices(rows)
}

// ── Update / Delete ──────────────────────────────────────────────────────────

func (s *invoiceService) Update(ctx context.Context, invoiceID int, in UpdateInvoiceInput, allowPaid bool) (*Invoice, error) {
	var status InvoiceStatus
	err := s.pool.QueryRow(ctx, "SELECT status FROM invoices WHERE id = $1", invoiceID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("invoice %d not found", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if status == InvoicePaid && !allowPaid {
		return nil, InvalidStatef("cannot modify paid invoice")
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.DueDate != nil {
		set("due_date", *in.DueDate)
	}
	if in.Subtotal != nil {
		set("subtotal", *in.Subtotal)
	}
	if in.Tax != nil {
		set("tax", *in.Tax)
	}
	if in.Discount != nil {
		set("discount", *in.Discount)
	}
	if in.Total != nil {
		set("total", *in.Total)
	}
	if in.Status != nil {
		set("status", *in.Status)
	}
	if in.Notes != nil {
		set("notes", *in.Notes)
	}

	args = append(args, invoiceID)
	query := fmt.Sprintf("UPDATE invoices SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("failed to update invoice %d: %w", invoiceID, err)
	}

	return s.Get(ctx, invoiceID)
}

func (s *invoiceService) Delete(ctx context.Context, invoiceID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status InvoiceStatus
	err = tx.QueryRow(ctx, "SELECT status FROM invoices WHERE id = $1 FOR UPDATE", invoiceID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFoundf("invoice %d not found", invoiceID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}
	if status == InvoicePaid {
		return InvalidStatef("cannot delete paid invoice")
	}

	if err := s.restoreStockOnDelete(ctx, tx, invoiceID); err != nil {
		return err
	}

	// invoice_items cascade with the invoice row
	if _, err := tx.Exec(ctx, "DELETE FROM invoices WHERE id = $1", invoiceID); err != nil {
		return fmt.Errorf("failed to delete invoice %d: %w", invoiceID, err)
	}

	return tx.Commit(ctx)
}

// restoreStockOnDelete is a deliberate no-op: deleting an invoice does not put
// decremented stock back. Parts billed on a deleted invoice are usually
// already installed on the vehicle, so the physical count did go down. Kept as
// a named step so a future product decision can add restoration here.
func (s *invoiceService) restoreStockOnDelete(ctx context.Context, tx pgx.Tx, invoiceID int) error {
	return nil
}

// ── Manual payment ───────────────────────────────────────────────────────────

func (s *invoiceService) RecordPayment(ctx context.Context, invoiceID int, amount decimal.Decimal, method PaymentMethod, reference, notes string) (*Invoice, error) {
	if amount.IsNegative() || amount.IsZero() {
		return nil, Validationf("payment amount must be positive")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status InvoiceStatus
	var total decimal.Decimal
	var existingNotes *string
	err = tx.QueryRow(ctx,
		"SELECT status, total, notes FROM invoices WHERE id = $1 FOR UPDATE", invoiceID,
	).Scan(&status, &total, &existingNotes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("invoice %d not found", invoiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	if status == InvoicePaid {
		return nil, InvalidStatef("invoice already paid")
	}
	if amount.GreaterThan(total) {
		return nil, Validationf("payment amount cannot exceed invoice total")
	}

	// A partial payment lands on SENT, except when the invoice already carries
	// an OVERDUE or PARTIALLY_PAID status; moving those back to SENT would
	// walk the state machine backwards, so they settle on PARTIALLY_PAID.
	newStatus := InvoiceSent
	switch {
	case amount.GreaterThanOrEqual(total):
		newStatus = InvoicePaid
	case status == InvoiceOverdue || status == InvoicePartiallyPaid:
		newStatus = InvoicePartiallyPaid
	}
	if newStatus != status && !CanTransition(status, newStatus) {
		return nil, InvalidStatef("invoice cannot move from %s to %s", status, newStatus)
	}

	mergedNotes := mergePaymentNotes(existingNotes, notes)
	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1, payment_method = $2, payment_date = NOW(), payment_ref = NULLIF($3, ''),
		    notes = $4, updated_at = NOW()
		WHERE id = $5
	`, newStatus, method, reference, mergedNotes, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment on invoice %d: %w", invoiceID, err)
	}

	if err := insertPaymentEvent(ctx, tx, invoiceID, amount, method, reference, notes); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}

	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if newStatus == InvoicePaid {
		s.notifyPaymentCompleted(ctx, inv)
	}
	return inv, nil
}

func mergePaymentNotes(existing *string, paymentNote string) string {
	base := ""
	if existing != nil {
		base = *existing
	}
	if paymentNote == "" {
		return base
	}
	return strings.TrimSpace(base + "\n\nPayment: " + paymentNote)
}

func insertPaymentEvent(ctx context.Context, tx pgx.Tx, invoiceID int, amount decimal.Decimal, method PaymentMethod, reference, notes string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_events (invoice_id, amount, method, reference, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
	`, invoiceID, amount, method, reference, notes)
	if err != nil {
		return fmt.Errorf("failed to insert payment event: %w", err)
	}
	return nil
}

// ── Gateway payments ─────────────────────────────────────────────────────────

func (s *invoiceService) InitializeMobileMoneyPayment(ctx context.Context, invoiceID int, phone, provider string) (*PaymentSession, error) {
	inv, err := s.payableInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if phone == "" {
		return nil, Validationf("phone number is required for mobile money payment")
	}
	if provider == "" {
		provider = "mtn"
	}

	reference := NewPaymentReference("MM_" + inv.InvoiceNumber)
	session, err := s.gateway.ChargeMobileMoney(ctx, MobileMoneyChargeInput{
		Amount:    inv.Total,
		Phone:     phone,
		Provider:  provider,
		Reference: reference,
		Metadata:  s.metadataFor(inv),
	})
	if err != nil {
		return nil, err
	}

	session.Provider = provider
	session.Phone = phone
	session.DisplayText = fmt.Sprintf(
		"Mobile money payment initiated. Please check your %s phone for the payment prompt.",
		strings.ToUpper(provider))
	s.trackSession(ctx, session, inv)
	return session, nil
}

func (s *invoiceService) InitializeOnlinePayment(ctx context.Context, invoiceID int, email string) (*PaymentSession, error) {
	inv, err := s.payableInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = inv.CustomerEmail
	}
	if email == "" {
		return nil, Validationf("an email address is required for online payment")
	}

	reference := NewPaymentReference("PAY_" + inv.InvoiceNumber)
	session, err := s.gateway.Initialize(ctx, InitializePaymentInput{
		Amount:    inv.Total,
		Email:     email,
		Reference: reference,
		Metadata:  s.metadataFor(inv),
	})
	if err != nil {
		return nil, err
	}

	s.trackSession(ctx, session, inv)
	return session, nil
}

// payableInvoice loads an invoice and rejects payment attempts against PAID
// or CANCELLED ones before any gateway call is made.
func (s *invoiceService) payableInvoice(ctx context.Context, invoiceID int) (*Invoice, error) {
	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case InvoicePaid:
		return nil, InvalidStatef("invoice already paid")
	case InvoiceCancelled:
		return nil, InvalidStatef("invoice is cancelled")
	}
	return inv, nil
}

func (s *invoiceService) metadataFor(inv *Invoice) PaymentMetadata {
	return PaymentMetadata{
		InvoiceID:    inv.ID,
		CustomerID:   inv.CustomerID,
		CustomerName: inv.CustomerName,
		Phone:        inv.CustomerPhone,
		Description:  "Payment for Invoice " + inv.InvoiceNumber,
	}
}

// trackSession records the initialized session for dashboard visibility.
// Best-effort: the invoice remains side-effect-free until verification.
func (s *invoiceService) trackSession(ctx context.Context, session *PaymentSession, inv *Invoice) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.Put(ctx, session, s.metadataFor(inv)); err != nil {
		s.log.Warn().Err(err).Str("reference", session.Reference).Msg("failed to track payment session")
	}
}

// ── Verification / reconciliation ────────────────────────────────────────────

func (s *invoiceService) VerifyPayment(ctx context.Context, reference string) (*Invoice, *PaymentVerification, error) {
	verification, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if !verification.Succeeded() {
		return nil, verification, nil
	}

	invoiceID := verification.Metadata.InvoiceID
	if invoiceID == 0 {
		return nil, verification, Validationf("invoice id not found in payment metadata")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, verification, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status InvoiceStatus
	var paymentRef *string
	err = tx.QueryRow(ctx,
		"SELECT status, payment_ref FROM invoices WHERE id = $1 FOR UPDATE", invoiceID,
	).Scan(&status, &paymentRef)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, verification, NotFoundf("invoice %d not found", invoiceID)
	}
	if err != nil {
		return nil, verification, fmt.Errorf("failed to fetch invoice %d: %w", invoiceID, err)
	}

	if status == InvoicePaid {
		// Repeat verification of an applied reference is a no-op success:
		// no second payment event, no second notification, paymentDate kept.
		if paymentRef != nil && *paymentRef == reference {
			inv, err := s.Get(ctx, invoiceID)
			return inv, verification, err
		}
		return nil, verification, InvalidStatef("invoice already paid")
	}

	method := methodFromChannel(verification.Channel)
	paidAt := verification.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices
		SET status = $1, payment_method = $2, payment_date = $3, payment_ref = $4, updated_at = NOW()
		WHERE id = $5
	`, InvoicePaid, method, paidAt, reference, invoiceID)
	if err != nil {
		return nil, verification, fmt.Errorf("failed to apply verified payment to invoice %d: %w", invoiceID, err)
	}

	if err := insertPaymentEvent(ctx, tx, invoiceID, verification.Amount, method, reference, "gateway verification"); err != nil {
		return nil, verification, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, verification, fmt.Errorf("failed to commit verified payment: %w", err)
	}

	if s.sessions != nil {
		if err := s.sessions.Delete(ctx, reference); err != nil {
			s.log.Warn().Err(err).Str("reference", reference).Msg("failed to clear payment session")
		}
	}

	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, verification, err
	}
	s.notifyPaymentCompleted(ctx, inv)
	return inv, verification, nil
}

func methodFromChannel(channel string) PaymentMethod {
	switch strings.ToLower(channel) {
	case "mobile_money":
		return PaymentMobileMoney
	case "bank_transfer", "bank":
		return PaymentBankTransfer
	default:
		return PaymentCard
	}
}

// ── Notifications ────────────────────────────────────────────────────────────

// notifyPaymentCompleted fires the completion SMS after the payment is
// committed. A provider failure is logged and swallowed: a failed SMS must
// never undo a recorded payment.
func (s *invoiceService) notifyPaymentCompleted(ctx context.Context, inv *Invoice) {
	data := NotificationData{
		CustomerName:  inv.CustomerName,
		InvoiceNumber: inv.InvoiceNumber,
		JobNumber:     inv.JobNumber,
		Vehicle:       inv.Vehicle,
		Amount:        inv.Total,
	}
	if data.JobNumber == "" {
		data.JobNumber = inv.InvoiceNumber
	}
	if data.Vehicle == "" {
		data.Vehicle = "Vehicle"
	}
	if err := s.notifier.Notify(ctx, inv.CustomerPhone, NotifyPaymentCompleted, data); err != nil {
		s.log.Warn().Err(err).Str("invoice", inv.InvoiceNumber).Msg("payment completion SMS failed")
	}
}

func (s *invoiceService) SendPaymentReminder(ctx context.Context, invoiceID int) error {
	inv, err := s.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status == InvoicePaid {
		return InvalidStatef("cannot send reminder for paid invoice")
	}

	data := NotificationData{
		CustomerName:  inv.CustomerName,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        inv.Total,
		PaymentLink:   fmt.Sprintf("%s/pay/%d", s.appURL, inv.ID),
	}
	if inv.DueDate != nil {
		data.DueDate = inv.DueDate.Format("2006-01-02")
	}
	if err := s.notifier.Notify(ctx, inv.CustomerPhone, NotifyPaymentReminder, data); err != nil {
		return Upstreamf(err, "failed to send payment reminder")
	}
	return nil
}
