package core

import "time"

// Customer is a shop customer. Name and phone feed notification templates.
type Customer struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Vehicle belongs to a customer.
type Vehicle struct {
	ID          int    `json:"id"`
	CustomerID  int    `json:"customer_id"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	PlateNumber string `json:"plate_number"`
	Year        int    `json:"year,omitempty"`
}

// JobStatus is the workshop-side lifecycle of a repair job. Only existence
// and ownership matter to invoicing; the job workflow itself lives elsewhere.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
)

// Job is a repair job an invoice may reference.
type Job struct {
	ID         int       `json:"id"`
	JobNumber  string    `json:"job_number"`
	CustomerID int       `json:"customer_id"`
	VehicleID  *int      `json:"vehicle_id,omitempty"`
	Status     JobStatus `json:"status"`
	Complaint  string    `json:"complaint,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// User is an authenticated dashboard user.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"` // ADMIN or STAFF
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}
