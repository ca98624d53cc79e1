package models

import "time"

// FeeStatus represents the lifecycle of a fee invoice.
type FeeStatus string

const (
	FeeStatusPending FeeStatus = "PENDING"
	FeeStatusPaid    FeeStatus = "PAID"
	FeeStatusOverdue FeeStatus = "OVERDUE"
	FeeStatusWaived  FeeStatus = "WAIVED"
)

// Valid returns true when the status is a supported value.
func (s FeeStatus) Valid() bool {
	switch s {
	case FeeStatusPending, FeeStatusPaid, FeeStatusOverdue, FeeStatusWaived:
		return true
	default:
		return false
	}
}

// FeeInvoice represents an amount owed by a student.
type FeeInvoice struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Title     string    `db:"title" json:"title"`
	Amount    int64     `db:"amount" json:"amount"`
	DueDate   time.Time `db:"due_date" json:"due_date"`
	Status    FeeStatus `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// FeePayment records money received against an invoice.
type FeePayment struct {
	ID        string    `db:"id" json:"id"`
	InvoiceID string    `db:"invoice_id" json:"invoice_id"`
	Amount    int64     `db:"amount" json:"amount"`
	Method    string    `db:"method" json:"method"`
	Reference *string   `db:"reference" json:"reference,omitempty"`
	PaidAt    time.Time `db:"paid_at" json:"paid_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FeeInvoiceDetail enriches an invoice with student info and paid total.
type FeeInvoiceDetail struct {
	FeeInvoice
	StudentName string `db:"student_name" json:"student_name"`
	StudentNIS  string `db:"student_nis" json:"student_nis"`
	PaidAmount  int64  `db:"paid_amount" json:"paid_amount"`
}

// FeeFilter provides filters for listing invoices.
type FeeFilter struct {
	StudentID string
	Status    FeeStatus
	DueFrom   *time.Time
	DueTo     *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
