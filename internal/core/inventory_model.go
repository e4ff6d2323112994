package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Part is a stocked component: quantity on hand, reorder threshold, and
// pricing. Part names are unique case-insensitively.
type Part struct {
	ID           int             `json:"id"`
	PartName     string          `json:"part_name"`
	Category     string          `json:"category"`
	StockQty     int             `json:"stock_qty"`
	ReorderLevel int             `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Supplier     string          `json:"supplier,omitempty"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLowStock reports whether the part is at or below its reorder level.
func (p *Part) IsLowStock() bool { return p.StockQty <= p.ReorderLevel }

// IsOutOfStock reports whether the part has no stock at all.
func (p *Part) IsOutOfStock() bool { return p.StockQty == 0 }

// PartInput creates or updates a part. Selling price must exceed unit cost.
type PartInput struct {
	PartName     string
	Category     string
	StockQty     int
	ReorderLevel int
	UnitCost     decimal.Decimal
	SellingPrice decimal.Decimal
	Supplier     string
	Notes        string
}

// StockAdjustmentMode selects how AdjustStock interprets its quantity.
type StockAdjustmentMode string

const (
	StockAdd    StockAdjustmentMode = "ADD"
	StockRemove StockAdjustmentMode = "REMOVE"
	StockSet    StockAdjustmentMode = "SET"
)
