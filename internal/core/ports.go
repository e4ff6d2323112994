package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMetadata travels with a gateway transaction so an asynchronous
// verification can be reconciled back onto the right invoice.
type PaymentMetadata struct {
	InvoiceID    int    `json:"invoiceId,string"`
	CustomerID   int    `json:"customerId,string"`
	CustomerName string `json:"customerName,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Description  string `json:"description,omitempty"`
}

// InitializePaymentInput starts a hosted (card/redirect) payment.
type InitializePaymentInput struct {
	Amount    decimal.Decimal
	Email     string
	Reference string
	Metadata  PaymentMetadata
}

// MobileMoneyChargeInput pushes a payment prompt to a customer's phone.
type MobileMoneyChargeInput struct {
	Amount    decimal.Decimal
	Phone     string
	Provider  string // mtn, vodafone, tigo
	Reference string
	Metadata  PaymentMetadata
}

// PaymentSession is an externally-hosted payment attempt identified by a
// reference, not yet confirmed. Initialization is side-effect-free on the
// invoice: no state is persisted until verification succeeds.
type PaymentSession struct {
	Reference        string          `json:"reference"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	AuthorizationURL string          `json:"authorization_url,omitempty"`
	AccessCode       string          `json:"access_code,omitempty"`
	Provider         string          `json:"provider,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	DisplayText      string          `json:"display_text,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PaymentVerification is the gateway's normalized answer to "did this
// reference get paid". Amount is in major currency units.
type PaymentVerification struct {
	Status    string          `json:"status"` // "success" or a gateway-specific failure state
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Channel   string          `json:"channel"` // mobile_money, card, bank_transfer
	PaidAt    time.Time       `json:"paid_at"`
	Metadata  PaymentMetadata `json:"metadata"`
}

// Succeeded reports whether the gateway confirmed the payment.
func (v *PaymentVerification) Succeeded() bool { return v.Status == "success" }

// PaymentGateway is the external payment provider boundary. Implementations
// must not mutate invoice state; the invoice service owns all transitions.
type PaymentGateway interface {
	Initialize(ctx context.Context, in InitializePaymentInput) (*PaymentSession, error)
	ChargeMobileMoney(ctx context.Context, in MobileMoneyChargeInput) (*PaymentSession, error)
	Verify(ctx context.Context, reference string) (*PaymentVerification, error)
}

// NotificationKind selects a message template.
type NotificationKind string

const (
	NotifyJobStarted       NotificationKind = "JOB_STARTED"
	NotifyPaymentReminder  NotificationKind = "PAYMENT_REMINDER"
	NotifyPaymentCompleted NotificationKind = "PAYMENT_COMPLETED"
)

// NotificationData carries the template fields. Unused fields are ignored by
// templates that do not need them.
type NotificationData struct {
	CustomerName  string
	InvoiceNumber string
	JobNumber     string
	Vehicle       string
	Amount        decimal.Decimal
	DueDate       string
	PaymentLink   string
	MechanicName  string
}

// Notifier dispatches a templated text message to a customer. Errors from a
// Notifier never abort an invoice operation; callers log and move on, except
// where sending the message is the operation itself (payment reminders).
type Notifier interface {
	Notify(ctx context.Context, phone string, kind NotificationKind, data NotificationData) error
}

// SessionStore keeps ephemeral records of initialized payment sessions so a
// dashboard can show "awaiting payment". It is best-effort: a store failure
// must never fail payment initialization or verification.
type SessionStore interface {
	Put(ctx context.Context, session *PaymentSession, meta PaymentMetadata) error
	Get(ctx context.Context, reference string) (*PaymentSession, error)
	Delete(ctx context.Context, reference string) error
}
