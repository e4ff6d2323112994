package core_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"garage-api/internal/core"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	schema, err := os.ReadFile("../../migrations/001_schema.sql")
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE audit_log, payment_events, invoice_items, invoices, invoice_sequences,
			jobs, vehicles, parts, customers, users RESTART IDENTITY CASCADE;

		INSERT INTO customers (name, phone, email) VALUES
		('Kwame Mensah', '0244000001', 'kwame@example.com'),
		('Ama Owusu', '0244000002', NULL);

		INSERT INTO vehicles (customer_id, make, model, plate_number) VALUES
		(1, 'Toyota', 'Corolla', 'GR-1234-22'),
		(2, 'Honda', 'Civic', 'GR-5678-22');

		INSERT INTO jobs (job_number, customer_id, vehicle_id, status) VALUES
		('JOB-0001', 1, 1, 'IN_PROGRESS'),
		('JOB-0002', 2, 2, 'PENDING');

		INSERT INTO invoice_sequences (scope, last_number) VALUES ('job', 2);

		INSERT INTO parts (part_name, category, stock_qty, reorder_level, unit_cost, selling_price) VALUES
		('Brake Pad Set', 'brakes', 10, 3, 80.00, 150.00),
		('Oil Filter', 'filters', 2, 5, 15.00, 35.00);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// fakeGateway is an in-memory PaymentGateway for exercising the verification
// flow without network calls.
type fakeGateway struct {
	verification *core.PaymentVerification
	verifyCalls  int
}

func (g *fakeGateway) Initialize(ctx context.Context, in core.InitializePaymentInput) (*core.PaymentSession, error) {
	return &core.PaymentSession{
		Reference:        in.Reference,
		Amount:           in.Amount,
		Currency:         "GHS",
		AuthorizationURL: "https://checkout.example/" + in.Reference,
	}, nil
}

func (g *fakeGateway) ChargeMobileMoney(ctx context.Context, in core.MobileMoneyChargeInput) (*core.PaymentSession, error) {
	return &core.PaymentSession{Reference: in.Reference, Amount: in.Amount, Currency: "GHS"}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (*core.PaymentVerification, error) {
	g.verifyCalls++
	v := *g.verification
	v.Reference = reference
	return &v, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []core.NotificationKind
}

func (n *fakeNotifier) Notify(ctx context.Context, phone string, kind core.NotificationKind, data core.NotificationData) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind)
	return nil
}

func (n *fakeNotifier) count(kind core.NotificationKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, k := range n.sent {
		if k == kind {
			c++
		}
	}
	return c
}

func newTestInvoiceService(pool *pgxpool.Pool, gateway core.PaymentGateway, notifier core.Notifier) core.InvoiceService {
	return core.NewInvoiceService(
		pool,
		core.NewNumberService(pool),
		core.NewInventoryService(pool),
		gateway,
		notifier,
		nil,
		"http://localhost:8080",
	)
}

func intPtr(n int) *int { return &n }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestInvoice_CreateDecrementsStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		JobID:      intPtr(1),
		Tax:        dec("10.00"),
		Discount:   dec("50.00"),
		Items: []core.InvoiceItemInput{
			{PartID: intPtr(1), Description: "Brake Pad Set", Quantity: 4, UnitPrice: dec("150.00")},
			{Description: "Labour, brake service", Quantity: 1, UnitPrice: dec("200.00")},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if inv.InvoiceNumber != "INV-0001" {
		t.Errorf("expected INV-0001, got %s", inv.InvoiceNumber)
	}
	if inv.Status != core.InvoiceDraft {
		t.Errorf("expected DRAFT, got %s", inv.Status)
	}
	// 4*150 + 200 = 800; 800 - 50 + 10 = 760
	if !inv.Total.Equal(dec("760.00")) {
		t.Errorf("expected total 760.00, got %s", inv.Total)
	}
	if len(inv.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(inv.Items))
	}
	if !inv.Items[0].StockDecremented {
		t.Error("expected part item to have stock decremented")
	}
	if inv.Items[1].StockDecremented {
		t.Error("labour item should not claim a stock decrement")
	}

	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock_qty FROM parts WHERE id = 1").Scan(&stock); err != nil {
		t.Fatal(err)
	}
	if stock != 6 {
		t.Errorf("expected stock 6 after decrement, got %d", stock)
	}
}

func TestInvoice_CreateInsufficientStockKeepsLine(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	// part 2 has only 2 in stock
	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items: []core.InvoiceItemInput{
			{PartID: intPtr(2), Description: "Oil Filter", Quantity: 5, UnitPrice: dec("35.00")},
		},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if inv.Items[0].StockDecremented {
		t.Error("oversold item must not be marked as decremented")
	}
	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock_qty FROM parts WHERE id = 2").Scan(&stock); err != nil {
		t.Fatal(err)
	}
	if stock != 2 {
		t.Errorf("expected stock untouched at 2, got %d", stock)
	}
}

func TestInvoice_CreateValidatesJobOwnership(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	// job 2 belongs to customer 2
	_, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		JobID:      intPtr(2),
		Items: []core.InvoiceItemInput{
			{PartID: intPtr(1), Description: "Brake Pad Set", Quantity: 1, UnitPrice: dec("150.00")},
		},
	})
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	// nothing committed: no invoice, no stock movement, no number consumed
	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected no invoices after rollback, got %d", count)
	}
	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock_qty FROM parts WHERE id = 1").Scan(&stock); err != nil {
		t.Fatal(err)
	}
	if stock != 10 {
		t.Errorf("expected stock 10 after rollback, got %d", stock)
	}
}

func TestInvoice_SequentialNumbers(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	items := []core.InvoiceItemInput{{Description: "Diagnostics", Quantity: 1, UnitPrice: dec("100.00")}}

	first, err := svc.Create(ctx, core.CreateInvoiceInput{CustomerID: 1, Items: items})
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.Create(ctx, core.CreateInvoiceInput{CustomerID: 2, Items: items})
	if err != nil {
		t.Fatal(err)
	}

	if first.InvoiceNumber != "INV-0001" || second.InvoiceNumber != "INV-0002" {
		t.Errorf("expected INV-0001 then INV-0002, got %s and %s", first.InvoiceNumber, second.InvoiceNumber)
	}
}

func TestInvoice_ConcurrentCreateAllocatesDistinctNumbers(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	const workers = 8
	numbers := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := svc.Create(ctx, core.CreateInvoiceInput{
				CustomerID: 1,
				Items:      []core.InvoiceItemInput{{Description: "Diagnostics", Quantity: 1, UnitPrice: dec("100.00")}},
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- inv.InvoiceNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}

	seen := map[string]bool{}
	for n := range numbers {
		if seen[n] {
			t.Fatalf("invoice number %s allocated twice", n)
		}
		seen[n] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d distinct invoice numbers, got %d", workers, len(seen))
	}
}

func TestInvoice_RecordPaymentFull(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &fakeNotifier{}
	svc := newTestInvoiceService(pool, &fakeGateway{}, notifier)
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("500.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	paid, err := svc.RecordPayment(ctx, inv.ID, dec("500.00"), core.PaymentCash, "", "paid at counter")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if paid.Status != core.InvoicePaid {
		t.Errorf("expected PAID, got %s", paid.Status)
	}
	if paid.PaymentDate == nil {
		t.Error("expected payment date to be stamped")
	}
	if notifier.count(core.NotifyPaymentCompleted) != 1 {
		t.Errorf("expected 1 completion SMS, got %d", notifier.count(core.NotifyPaymentCompleted))
	}

	var events int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM payment_events WHERE invoice_id = $1", inv.ID).Scan(&events); err != nil {
		t.Fatal(err)
	}
	if events != 1 {
		t.Errorf("expected 1 payment event, got %d", events)
	}

	// a second payment against a PAID invoice is rejected
	_, err = svc.RecordPayment(ctx, inv.ID, dec("500.00"), core.PaymentCash, "", "")
	if core.KindOf(err) != core.KindInvalidState {
		t.Fatalf("expected invalid-state error on double payment, got %v", err)
	}
	if notifier.count(core.NotifyPaymentCompleted) != 1 {
		t.Error("rejected payment must not send another SMS")
	}
}

func TestInvoice_RecordPaymentPartialAndOverpayment(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &fakeNotifier{}
	svc := newTestInvoiceService(pool, &fakeGateway{}, notifier)
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("500.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.RecordPayment(ctx, inv.ID, dec("600.00"), core.PaymentCash, "", "")
	if core.KindOf(err) != core.KindValidation {
		t.Fatalf("expected validation error on overpayment, got %v", err)
	}

	partial, err := svc.RecordPayment(ctx, inv.ID, dec("200.00"), core.PaymentMobileMoney, "MM123", "")
	if err != nil {
		t.Fatalf("partial payment failed: %v", err)
	}
	if partial.Status != core.InvoiceSent {
		t.Errorf("expected SENT after partial payment, got %s", partial.Status)
	}
	if notifier.count(core.NotifyPaymentCompleted) != 0 {
		t.Error("partial payment must not send a completion SMS")
	}
}

func TestInvoice_RecordPaymentPartialOnOverdue(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &fakeNotifier{}
	svc := newTestInvoiceService(pool, &fakeGateway{}, notifier)
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("500.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = pool.Exec(ctx,
		"UPDATE invoices SET status = 'OVERDUE', due_date = NOW() - INTERVAL '7 days' WHERE id = $1", inv.ID)
	if err != nil {
		t.Fatal(err)
	}

	// a partial payment on an OVERDUE invoice is valid and lands on
	// PARTIALLY_PAID; OVERDUE cannot move back to SENT
	partial, err := svc.RecordPayment(ctx, inv.ID, dec("200.00"), core.PaymentCash, "", "")
	if err != nil {
		t.Fatalf("partial payment on overdue invoice failed: %v", err)
	}
	if partial.Status != core.InvoicePartiallyPaid {
		t.Errorf("expected PARTIALLY_PAID, got %s", partial.Status)
	}
	if notifier.count(core.NotifyPaymentCompleted) != 0 {
		t.Error("partial payment must not send a completion SMS")
	}

	// a second partial payment keeps the invoice at PARTIALLY_PAID
	again, err := svc.RecordPayment(ctx, inv.ID, dec("100.00"), core.PaymentCash, "", "")
	if err != nil {
		t.Fatalf("second partial payment failed: %v", err)
	}
	if again.Status != core.InvoicePartiallyPaid {
		t.Errorf("expected PARTIALLY_PAID after second partial, got %s", again.Status)
	}

	// settling in full still reaches PAID
	paid, err := svc.RecordPayment(ctx, inv.ID, dec("500.00"), core.PaymentCash, "", "")
	if err != nil {
		t.Fatalf("full payment failed: %v", err)
	}
	if paid.Status != core.InvoicePaid {
		t.Errorf("expected PAID, got %s", paid.Status)
	}
}

func TestInvoice_VerifyPaymentIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	notifier := &fakeNotifier{}
	gateway := &fakeGateway{}
	svc := newTestInvoiceService(pool, gateway, notifier)
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		JobID:      intPtr(1),
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("300.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	gateway.verification = &core.PaymentVerification{
		Status:   "success",
		Amount:   dec("300.00"),
		Currency: "GHS",
		Channel:  "mobile_money",
		Metadata: core.PaymentMetadata{InvoiceID: inv.ID, CustomerID: 1},
	}

	reference := "MM_INV-0001_1700000000000_ABC123"
	paid, _, err := svc.VerifyPayment(ctx, reference)
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if paid.Status != core.InvoicePaid {
		t.Errorf("expected PAID, got %s", paid.Status)
	}
	if paid.PaymentMethod == nil || *paid.PaymentMethod != core.PaymentMobileMoney {
		t.Errorf("expected MOBILE_MONEY method, got %v", paid.PaymentMethod)
	}
	if paid.PaymentRef == nil || *paid.PaymentRef != reference {
		t.Errorf("expected payment ref %s, got %v", reference, paid.PaymentRef)
	}

	// repeat verification of the same reference: no-op success
	again, _, err := svc.VerifyPayment(ctx, reference)
	if err != nil {
		t.Fatalf("repeat verification should succeed: %v", err)
	}
	if again.Status != core.InvoicePaid {
		t.Errorf("expected PAID on repeat, got %s", again.Status)
	}
	if notifier.count(core.NotifyPaymentCompleted) != 1 {
		t.Errorf("expected exactly 1 completion SMS, got %d", notifier.count(core.NotifyPaymentCompleted))
	}
	var events int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM payment_events WHERE invoice_id = $1", inv.ID).Scan(&events); err != nil {
		t.Fatal(err)
	}
	if events != 1 {
		t.Errorf("expected exactly 1 payment event, got %d", events)
	}
}

func TestInvoice_VerifyPaymentUnsuccessful(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	gateway := &fakeGateway{verification: &core.PaymentVerification{Status: "failed"}}
	svc := newTestInvoiceService(pool, gateway, &fakeNotifier{})
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("300.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	paid, verification, err := svc.VerifyPayment(ctx, "PAY_X_1_AAAAAA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if paid != nil {
		t.Error("failed verification must not return an invoice")
	}
	if verification == nil || verification.Succeeded() {
		t.Error("expected an unsuccessful verification result")
	}

	fresh, err := svc.Get(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Status != core.InvoiceDraft {
		t.Errorf("invoice must stay DRAFT after failed verification, got %s", fresh.Status)
	}
}

func TestInvoice_DeleteGuardsAndStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items: []core.InvoiceItemInput{
			{PartID: intPtr(1), Description: "Brake Pad Set", Quantity: 2, UnitPrice: dec("150.00")},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// stock is NOT restored on delete
	var stock int
	if err := pool.QueryRow(ctx, "SELECT stock_qty FROM parts WHERE id = 1").Scan(&stock); err != nil {
		t.Fatal(err)
	}
	if stock != 8 {
		t.Errorf("expected stock to stay at 8 after delete, got %d", stock)
	}

	// a PAID invoice cannot be deleted
	paid, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("100.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RecordPayment(ctx, paid.ID, dec("100.00"), core.PaymentCash, "", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, paid.ID); core.KindOf(err) != core.KindInvalidState {
		t.Fatalf("expected invalid-state error deleting a paid invoice, got %v", err)
	}
}

func TestInvoice_ListOverdue(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newTestInvoiceService(pool, &fakeGateway{}, &fakeNotifier{})
	ctx := context.Background()

	inv, err := svc.Create(ctx, core.CreateInvoiceInput{
		CustomerID: 1,
		Items:      []core.InvoiceItemInput{{Description: "Service", Quantity: 1, UnitPrice: dec("100.00")}},
	})
	if err != nil {
		t.Fatal(err)
	}

	// push it to SENT with a past due date
	_, err = pool.Exec(ctx,
		"UPDATE invoices SET status = 'SENT', due_date = NOW() - INTERVAL '3 days' WHERE id = $1", inv.ID)
	if err != nil {
		t.Fatal(err)
	}

	overdue, err := svc.ListOverdue(ctx)
	if err != nil {
		t.Fatalf("ListOverdue failed: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != inv.ID {
		t.Fatalf("expected exactly the overdue invoice, got %d results", len(overdue))
	}
}
