package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InventoryService is the parts stock ledger. Stock never goes negative:
// decrements are conditional updates, and manual removals clamp at zero.
type InventoryService interface {
	CreatePart(ctx context.Context, in PartInput) (*Part, error)
	UpdatePart(ctx context.Context, partID int, in PartInput) (*Part, error)
	GetPart(ctx context.Context, partID int) (*Part, error)
	ListParts(ctx context.Context, category string, lowStockOnly bool) ([]Part, error)

	// DecrementIfAvailable atomically reduces stock by qty if at least qty is
	// on hand, reporting whether the decrement applied.
	DecrementIfAvailable(ctx context.Context, partID, qty int) (bool, error)
	// DecrementIfAvailableTx is the same operation inside a caller-provided
	// transaction; invoice creation uses it so stock movement and item rows
	// commit or roll back together.
	DecrementIfAvailableTx(ctx context.Context, tx pgx.Tx, partID, qty int) (bool, error)

	// AdjustStock applies a manual correction. REMOVE and SET clamp at zero.
	// Returns the new quantity.
	AdjustStock(ctx context.Context, partID, qty int, mode StockAdjustmentMode) (int, error)

	// ListLowStock returns parts at or below their reorder level, most urgent
	// first (stock ascending, then reorder level descending).
	ListLowStock(ctx context.Context) ([]Part, error)
}

type inventoryService struct {
	pool *pgxpool.Pool
}

func NewInventoryService(pool *pgxpool.Pool) InventoryService {
	return &inventoryService{pool: pool}
}

const partColumns = `id, part_name, category, stock_qty, reorder_level, unit_cost, selling_price,
       COALESCE(supplier, ''), COALESCE(notes, ''), created_at, updated_at`

func scanPart(row pgx.Row) (*Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.PartName, &p.Category, &p.StockQty, &p.ReorderLevel,
		&p.UnitCost, &p.SellingPrice, &p.Supplier, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func validatePartInput(in PartInput) error {
	if in.PartName == "" {
		return Validationf("part name is required")
	}
	if in.StockQty < 0 {
		return Validationf("stock quantity cannot be negative")
	}
	if in.ReorderLevel < 0 {
		return Validationf("reorder level cannot be negative")
	}
	if in.UnitCost.IsNegative() {
		return Validationf("unit cost cannot be negative")
	}
	if !in.SellingPrice.GreaterThan(in.UnitCost) {
		return Validationf("selling price %s must exceed unit cost %s", in.SellingPrice, in.UnitCost)
	}
	return nil
}

func (s *inventoryService) CreatePart(ctx context.Context, in PartInput) (*Part, error) {
	if err := validatePartInput(in); err != nil {
		return nil, err
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM parts WHERE lower(part_name) = lower($1))", in.PartName,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check part name: %w", err)
	}
	if exists {
		return nil, Validationf("part %q already exists", in.PartName)
	}

	p, err := scanPart(s.pool.QueryRow(ctx, `
		INSERT INTO parts (part_name, category, stock_qty, reorder_level, unit_cost, selling_price, supplier, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+partColumns,
		in.PartName, in.Category, in.StockQty, in.ReorderLevel, in.UnitCost, in.SellingPrice, in.Supplier, in.Notes,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create part: %w", err)
	}
	return p, nil
}

func (s *inventoryService) UpdatePart(ctx context.Context, partID int, in PartInput) (*Part, error) {
	if err := validatePartInput(in); err != nil {
		return nil, err
	}

	p, err := scanPart(s.pool.QueryRow(ctx, `
		UPDATE parts
		SET part_name = $1, category = $2, stock_qty = $3, reorder_level = $4,
		    unit_cost = $5, selling_price = $6, supplier = $7, notes = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING `+partColumns,
		in.PartName, in.Category, in.StockQty, in.ReorderLevel, in.UnitCost, in.SellingPrice,
		in.Supplier, in.Notes, partID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("part %d not found", partID)
		}
		return nil, fmt.Errorf("failed to update part %d: %w", partID, err)
	}
	return p, nil
}

func (s *inventoryService) GetPart(ctx context.Context, partID int) (*Part, error) {
	p, err := scanPart(s.pool.QueryRow(ctx, "SELECT "+partColumns+" FROM parts WHERE id = $1", partID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("part %d not found", partID)
		}
		return nil, fmt.Errorf("failed to fetch part %d: %w", partID, err)
	}
	return p, nil
}

func (s *inventoryService) ListParts(ctx context.Context, category string, lowStockOnly bool) ([]Part, error) {
	query := "SELECT " + partColumns + " FROM parts WHERE 1=1"
	args := []any{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if lowStockOnly {
		query += " AND stock_qty <= reorder_level"
	}
	query += " ORDER BY part_name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	return collectParts(rows)
}

func (s *inventoryService) DecrementIfAvailable(ctx context.Context, partID, qty int) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ok, err := s.DecrementIfAvailableTx(ctx, tx, partID, qty)
	if err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit stock decrement: %w", err)
	}
	return ok, nil
}

// DecrementIfAvailableTx is a single conditional UPDATE, not read-then-write:
// two concurrent invoices both seeing "enough" stock cannot drive it negative.
func (s *inventoryService) DecrementIfAvailableTx(ctx context.Context, tx pgx.Tx, partID, qty int) (bool, error) {
	if qty <= 0 {
		return false, Validationf("decrement quantity must be positive, got %d", qty)
	}
	ct, err := tx.Exec(ctx, `
		UPDATE parts
		SET stock_qty = stock_qty - $2, updated_at = NOW()
		WHERE id = $1 AND stock_qty >= $2
	`, partID, qty)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock for part %d: %w", partID, err)
	}
	return ct.RowsAffected() == 1, nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, partID, qty int, mode StockAdjustmentMode) (int, error) {
	if qty < 0 {
		return 0, Validationf("adjustment quantity cannot be negative")
	}

	var expr string
	switch mode {
	case StockAdd:
		expr = "stock_qty + $2"
	case StockRemove:
		expr = "GREATEST(stock_qty - $2, 0)"
	case StockSet:
		expr = "GREATEST($2, 0)"
	default:
		return 0, Validationf("invalid stock adjustment type %q", mode)
	}

	var newQty int
	err := s.pool.QueryRow(ctx,
		"UPDATE parts SET stock_qty = "+expr+", updated_at = NOW() WHERE id = $1 RETURNING stock_qty",
		partID, qty,
	).Scan(&newQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, NotFoundf("part %d not found", partID)
		}
		return 0, fmt.Errorf("failed to adjust stock for part %d: %w", partID, err)
	}
	return newQty, nil
}

func (s *inventoryService) ListLowStock(ctx context.Context) ([]Part, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+partColumns+`
		FROM parts
		WHERE stock_qty <= reorder_level
		ORDER BY stock_qty ASC, reorder_level DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query low-stock parts: %w", err)
	}
	defer rows.Close()

	return collectParts(rows)
}

func collectParts(rows pgx.Rows) ([]Part, error) {
	var parts []Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.PartName, &p.Category, &p.StockQty, &p.ReorderLevel,
			&p.UnitCost, &p.SellingPrice, &p.Supplier, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
