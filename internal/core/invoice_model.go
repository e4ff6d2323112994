package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice.
//
//	DRAFT → SENT / PARTIALLY_PAID → PAID (terminal)
//	OVERDUE is derived from SENT + a past due date.
//	CANCELLED is an alternate terminal reachable only from non-PAID states.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceSent          InvoiceStatus = "SENT"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceOverdue       InvoiceStatus = "OVERDUE"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

var validNext = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceDraft:         {InvoiceSent: true, InvoicePartiallyPaid: true, InvoicePaid: true, InvoiceCancelled: true},
	InvoiceSent:          {InvoicePartiallyPaid: true, InvoicePaid: true, InvoiceOverdue: true, InvoiceCancelled: true},
	InvoicePartiallyPaid: {InvoicePaid: true, InvoiceOverdue: true, InvoiceCancelled: true},
	InvoiceOverdue:       {InvoicePartiallyPaid: true, InvoicePaid: true, InvoiceCancelled: true},
	InvoicePaid:          {},
	InvoiceCancelled:     {},
}

// CanTransition reports whether moving an invoice from one status to another
// is a legal state-machine step. PAID and CANCELLED are terminal.
func CanTransition(from, to InvoiceStatus) bool {
	return validNext[from][to]
}

// PaymentMethod identifies how an invoice was settled.
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentMobileMoney  PaymentMethod = "MOBILE_MONEY"
	PaymentCard         PaymentMethod = "CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
)

// Invoice is a billing document for a customer, optionally tied to a repair
// job. Total is computed at creation/update time only; recording a payment
// never recalculates it.
type Invoice struct {
	ID            int             `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	CustomerID    int             `json:"customer_id"`
	CustomerName  string          `json:"customer_name"` // joined from customers
	CustomerPhone string          `json:"customer_phone"`
	CustomerEmail string          `json:"customer_email"`
	JobID         *int            `json:"job_id,omitempty"`
	JobNumber     string          `json:"job_number,omitempty"` // joined from jobs
	Vehicle       string          `json:"vehicle,omitempty"`    // "Make Model" joined via jobs
	IssueDate     time.Time       `json:"issue_date"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	Status        InvoiceStatus   `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	PaymentMethod *PaymentMethod  `json:"payment_method,omitempty"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`
	PaymentRef    *string         `json:"payment_ref,omitempty"`
	Items         []InvoiceItem   `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// InvoiceItem is one billed line on an invoice. StockDecremented records
// whether the referenced part's stock was actually reduced at creation time;
// an item that oversold a part keeps its line but leaves stock untouched.
type InvoiceItem struct {
	ID               int             `json:"id"`
	InvoiceID        int             `json:"invoice_id"`
	PartID           *int            `json:"part_id,omitempty"`
	PartName         string          `json:"part_name,omitempty"` // joined from parts
	Description      string          `json:"description"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineTotal        decimal.Decimal `json:"line_total"`
	StockDecremented bool            `json:"stock_decremented"`
}

// InvoiceItemInput is one line of a CreateInvoiceInput.
type InvoiceItemInput struct {
	PartID      *int
	Description string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// CreateInvoiceInput is the input for creating a new invoice.
type CreateInvoiceInput struct {
	CustomerID int
	JobID      *int
	DueDate    *time.Time
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	Notes      string
	Items      []InvoiceItemInput
}

// UpdateInvoiceInput is a sparse patch; nil fields are left unchanged.
// Totals are not recomputed automatically; a caller changing amounts must
// supply a consistent set.
type UpdateInvoiceInput struct {
	DueDate  *time.Time
	Tax      *decimal.Decimal
	Discount *decimal.Decimal
	Subtotal *decimal.Decimal
	Total    *decimal.Decimal
	Status   *InvoiceStatus
	Notes    *string
}

// InvoiceFilter narrows List queries.
type InvoiceFilter struct {
	Status     *InvoiceStatus
	CustomerID *int
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

// PaymentEvent is the audit record of a recorded or verified payment.
type PaymentEvent struct {
	ID         int             `json:"id"`
	InvoiceID  int             `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}
