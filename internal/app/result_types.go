package app

import "garage-api/internal/core"

// UserSession is the authenticated identity handed to the web adapter for
// token issuance.
type UserSession struct {
	UserID   int
	Username string
	Name     string
	Role     string
}

// UserResult is returned by GetUser.
type UserResult struct {
	User *core.User
}

// CustomerResult is returned by GetCustomer: the customer plus their vehicles.
type CustomerResult struct {
	Customer *core.Customer `json:"customer"`
	Vehicles []core.Vehicle `json:"vehicles"`
}

// CustomerListResult is returned by ListCustomers.
type CustomerListResult struct {
	Customers []core.Customer `json:"customers"`
}

// JobListResult is returned by ListJobs.
type JobListResult struct {
	Jobs []core.Job `json:"jobs"`
}

// PartListResult is returned by ListParts and ListLowStock.
type PartListResult struct {
	Parts []core.Part `json:"parts"`
}

// StockAdjustmentResult reports the outcome of a manual stock correction.
type StockAdjustmentResult struct {
	PartID   int    `json:"part_id"`
	NewQty   int    `json:"new_qty"`
	LowStock bool   `json:"low_stock"`
	Mode     string `json:"mode"`
}

// InvoicePageResult is one page of an invoice listing.
type InvoicePageResult struct {
	Invoices []core.Invoice `json:"invoices"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	Limit    int            `json:"limit"`
}

// VerifyPaymentResult is returned by VerifyPayment. Invoice is nil when the
// gateway reported the payment as not (yet) successful.
type VerifyPaymentResult struct {
	Paid         bool                      `json:"paid"`
	Invoice      *core.Invoice             `json:"invoice,omitempty"`
	Verification *core.PaymentVerification `json:"verification"`
}
