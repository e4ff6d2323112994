package app

import (
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest is the input for registering a customer.
type CreateCustomerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// CreateUserRequest provisions a dashboard account.
type CreateUserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"` // ADMIN or STAFF
}

// AddVehicleRequest is the input for registering a customer's vehicle.
type AddVehicleRequest struct {
	CustomerID  int    `json:"customer_id"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	PlateNumber string `json:"plate_number"`
	Year        int    `json:"year"`
}

// CreateJobRequest is the input for opening a repair job.
type CreateJobRequest struct {
	CustomerID int    `json:"customer_id"`
	VehicleID  *int   `json:"vehicle_id"`
	Complaint  string `json:"complaint"`
}

// PartRequest creates or updates an inventory part.
type PartRequest struct {
	PartName     string          `json:"part_name"`
	Category     string          `json:"category"`
	StockQty     int             `json:"stock_qty"`
	ReorderLevel int             `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Supplier     string          `json:"supplier"`
	Notes        string          `json:"notes"`
}

// AdjustStockRequest is a manual stock correction.
type AdjustStockRequest struct {
	PartID   int    `json:"part_id"`
	Quantity int    `json:"quantity"`
	Mode     string `json:"mode"` // ADD, REMOVE, SET
	Reason   string `json:"reason"`
}

// InvoiceItemRequest is one line of a CreateInvoiceRequest.
type InvoiceItemRequest struct {
	PartID      *int            `json:"part_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateInvoiceRequest is the input for creating an invoice.
type CreateInvoiceRequest struct {
	CustomerID int                  `json:"customer_id"`
	JobID      *int                 `json:"job_id"`
	DueDate    string               `json:"due_date"` // YYYY-MM-DD, optional
	Tax        decimal.Decimal      `json:"tax"`
	Discount   decimal.Decimal      `json:"discount"`
	Notes      string               `json:"notes"`
	Items      []InvoiceItemRequest `json:"items"`
}

// UpdateInvoiceRequest is a sparse patch; nil fields are left unchanged.
type UpdateInvoiceRequest struct {
	DueDate  *string          `json:"due_date"`
	Subtotal *decimal.Decimal `json:"subtotal"`
	Tax      *decimal.Decimal `json:"tax"`
	Discount *decimal.Decimal `json:"discount"`
	Total    *decimal.Decimal `json:"total"`
	Status   *string          `json:"status"`
	Notes    *string          `json:"notes"`
}

// ListInvoicesRequest filters and paginates invoice listings.
type ListInvoicesRequest struct {
	Status     string `json:"status"`
	CustomerID int    `json:"customer_id"`
	From       string `json:"from"` // YYYY-MM-DD
	To         string `json:"to"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
}

// RecordPaymentRequest registers a manual payment.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"` // CASH, MOBILE_MONEY, CARD, BANK_TRANSFER
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

// MobileMoneyRequest starts a mobile money charge.
type MobileMoneyRequest struct {
	Phone    string `json:"phone"`
	Provider string `json:"provider"` // mtn, vodafone, tigo
}

// OnlinePaymentRequest starts a hosted checkout session.
type OnlinePaymentRequest struct {
	Email string `json:"email"`
}
