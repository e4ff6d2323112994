package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CustomerService manages customers, their vehicles, and repair jobs: the
// master data invoices hang off.
type CustomerService interface {
	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int) (*Customer, error)
	ListCustomers(ctx context.Context, search string) ([]Customer, error)

	AddVehicle(ctx context.Context, in VehicleInput) (*Vehicle, error)
	ListVehicles(ctx context.Context, customerID int) ([]Vehicle, error)

	CreateJob(ctx context.Context, in JobInput) (*Job, error)
	GetJob(ctx context.Context, jobID int) (*Job, error)
	ListJobs(ctx context.Context, customerID int, status *JobStatus) ([]Job, error)
	// UpdateJobStatus moves a job through PENDING → IN_PROGRESS → COMPLETED.
	// Starting a job notifies the customer; the SMS is best-effort.
	UpdateJobStatus(ctx context.Context, jobID int, status JobStatus) (*Job, error)
}

// CustomerInput creates a customer. Phone is mandatory; it is the SMS channel.
type CustomerInput struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// VehicleInput registers a vehicle against a customer.
type VehicleInput struct {
	CustomerID  int
	Make        string
	Model       string
	PlateNumber string
	Year        int
}

// JobInput opens a repair job. The job number is allocated server-side.
type JobInput struct {
	CustomerID int
	VehicleID  *int
	Complaint  string
}

type customerService struct {
	pool     *pgxpool.Pool
	numbers  NumberService
	notifier Notifier
}

func NewCustomerService(pool *pgxpool.Pool, numbers NumberService, notifier Notifier) CustomerService {
	return &customerService{pool: pool, numbers: numbers, notifier: notifier}
}

func (s *customerService) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	if in.Name == "" {
		return nil, Validationf("customer name is required")
	}
	if in.Phone == "" {
		return nil, Validationf("customer phone is required")
	}

	var c Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, email, address)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING id, name, phone, COALESCE(email, ''), COALESCE(address, ''), created_at
	`, in.Name, in.Phone, in.Email, in.Address,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &c, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int) (*Customer, error) {
	var c Customer
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, COALESCE(email, ''), COALESCE(address, ''), created_at
		FROM customers WHERE id = $1
	`, customerID).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("customer %d not found", customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch customer %d: %w", customerID, err)
	}
	return &c, nil
}

func (s *customerService) ListCustomers(ctx context.Context, search string) ([]Customer, error) {
	query := `
		SELECT id, name, phone, COALESCE(email, ''), COALESCE(address, ''), created_at
		FROM customers`
	args := []any{}
	if search != "" {
		query += " WHERE name ILIKE $1 OR phone LIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *customerService) AddVehicle(ctx context.Context, in VehicleInput) (*Vehicle, error) {
	if in.Make == "" || in.Model == "" {
		return nil, Validationf("vehicle make and model are required")
	}
	if _, err := s.GetCustomer(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	var v Vehicle
	err := s.pool.QueryRow(ctx, `
		INSERT INTO vehicles (customer_id, make, model, plate_number, year)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, customer_id, make, model, COALESCE(plate_number, ''), COALESCE(year, 0)
	`, in.CustomerID, in.Make, in.Model, in.PlateNumber, nullableInt(in.Year),
	).Scan(&v.ID, &v.CustomerID, &v.Make, &v.Model, &v.PlateNumber, &v.Year)
	if err != nil {
		return nil, fmt.Errorf("failed to add vehicle: %w", err)
	}
	return &v, nil
}

func nullableInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

func (s *customerService) ListVehicles(ctx context.Context, customerID int) ([]Vehicle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, customer_id, make, model, COALESCE(plate_number, ''), COALESCE(year, 0)
		FROM vehicles WHERE customer_id = $1 ORDER BY id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.Make, &v.Model, &v.PlateNumber, &v.Year); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *customerService) CreateJob(ctx context.Context, in JobInput) (*Job, error) {
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

	if in.VehicleID != nil {
		var vehicleCustomerID int
		err := tx.QueryRow(ctx, "SELECT customer_id FROM vehicles WHERE id = $1", *in.VehicleID).Scan(&vehicleCustomerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("vehicle %d not found", *in.VehicleID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check vehicle %d: %w", *in.VehicleID, err)
		}
		if vehicleCustomerID != in.CustomerID {
			return nil, Validationf("vehicle %d does not belong to customer %d", *in.VehicleID, in.CustomerID)
		}
	}

	jobNumber, err := s.numbers.NextJobNumberTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	var j Job
	err = tx.QueryRow(ctx, `
		INSERT INTO jobs (job_number, customer_id, vehicle_id, status, complaint)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''))
		RETURNING id, job_number, customer_id, vehicle_id, status, COALESCE(complaint, ''), created_at
	`, jobNumber, in.CustomerID, in.VehicleID, JobPending, in.Complaint,
	).Scan(&j.ID, &j.JobNumber, &j.CustomerID, &j.VehicleID, &j.Status, &j.Complaint, &j.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit job creation: %w", err)
	}
	return &j, nil
}

func (s *customerService) GetJob(ctx context.Context, jobID int) (*Job, error) {
	var j Job
	err := s.pool.QueryRow(ctx, `
		SELECT id, job_number, customer_id, vehicle_id, status, COALESCE(complaint, ''), created_at
		FROM jobs WHERE id = $1
	`, jobID).Scan(&j.ID, &j.JobNumber, &j.CustomerID, &j.VehicleID, &j.Status, &j.Complaint, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("job %d not found", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %d: %w", jobID, err)
	}
	return &j, nil
}

func (s *customerService) ListJobs(ctx context.Context, customerID int, status *JobStatus) ([]Job, error) {
	query := `
		SELECT id, job_number, customer_id, vehicle_id, status, COALESCE(complaint, ''), created_at
		FROM jobs WHERE 1=1`
	args := []any{}
	if customerID != 0 {
		args = append(args, customerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.JobNumber, &j.CustomerID, &j.VehicleID, &j.Status, &j.Complaint, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *customerService) UpdateJobStatus(ctx context.Context, jobID int, status JobStatus) (*Job, error) {
	switch status {
	case JobPending, JobInProgress, JobCompleted:
	default:
		return nil, Validationf("invalid job status %q", status)
	}

	var j Job
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs SET status = $1 WHERE id = $2
		RETURNING id, job_number, customer_id, vehicle_id, status, COALESCE(complaint, ''), created_at
	`, status, jobID,
	).Scan(&j.ID, &j.JobNumber, &j.CustomerID, &j.VehicleID, &j.Status, &j.Complaint, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("job %d not found", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update job %d: %w", jobID, err)
	}

	if status == JobInProgress {
		s.notifyJobStarted(ctx, &j)
	}
	return &j, nil
}

func (s *customerService) notifyJobStarted(ctx context.Context, j *Job) {
	c, err := s.GetCustomer(ctx, j.CustomerID)
	if err != nil {
		return
	}
	vehicle := "your vehicle"
	if j.VehicleID != nil {
		var make, model string
		if err := s.pool.QueryRow(ctx,
			"SELECT make, model FROM vehicles WHERE id = $1", *j.VehicleID,
		).Scan(&make, &model); err == nil {
			vehicle = make + " " + model
		}
	}
	// best-effort, same as payment notifications
	_ = s.notifier.Notify(ctx, c.Phone, NotifyJobStarted, NotificationData{
		CustomerName: c.Name,
		JobNumber:    j.JobNumber,
		Vehicle:      vehicle,
	})
}
