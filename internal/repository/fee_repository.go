package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/sims-api/internal/models"
)

// FeeRepository handles persistence of fee invoices and payments.
type FeeRepository struct {
	db *sqlx.DB
}

// NewFeeRepository constructs the repository.
func NewFeeRepository(db *sqlx.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// List returns invoices enriched with student info and paid totals.
func (r *FeeRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeInvoiceDetail, int, error) {
	base := `FROM fee_invoices f
LEFT JOIN students s ON s.id = f.student_id
LEFT JOIN LATERAL (SELECT COALESCE(SUM(p.amount), 0) AS paid_amount FROM fee_payments p WHERE p.invoice_id = f.id) pay ON true`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DueFrom != nil {
		conditions = append(conditions, fmt.Sprintf("f.due_date >= $%d", len(args)+1))
		args = append(args, *filter.DueFrom)
	}
	if filter.DueTo != nil {
		conditions = append(conditions, fmt.Sprintf("f.due_date <= $%d", len(args)+1))
		args = append(args, *filter.DueTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"due_date":     "f.due_date",
		"amount":       "f.amount",
		"student_name": "s.first_name",
		"created_at":   "f.created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "due_date"
	}
	column := allowedSorts[sortBy]
	if column == "" {
		column = "f.due_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT f.id, f.student_id, f.title, f.amount, f.due_date, f.status, f.created_at, f.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.nis AS student_nis, pay.paid_amount
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, column, order, size, offset)

	var invoices []models.FeeInvoiceDetail
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee invoices: %w", err)
	}
	return invoices, total, nil
}

// FindByID fetches an invoice by ID.
func (r *FeeRepository) FindByID(ctx context.Context, id string) (*models.FeeInvoice, error) {
	const query = `SELECT id, student_id, title, amount, due_date, status, created_at, updated_at FROM fee_invoices WHERE id = $1`
	var invoice models.FeeInvoice
	if err := r.db.GetContext(ctx, &invoice, query, id); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Create inserts a new invoice.
func (r *FeeRepository) Create(ctx context.Context, invoice *models.FeeInvoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	if invoice.Status == "" {
		invoice.Status = models.FeeStatusPending
	}
	const query = `INSERT INTO fee_invoices (id, student_id, title, amount, due_date, status, created_at, updated_at)
        VALUES (:id, :student_id, :title, :amount, :due_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create fee invoice: %w", err)
	}
	return nil
}

// UpdateStatus changes an invoice status.
func (r *FeeRepository) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	const query = `UPDATE fee_invoices SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update fee status: %w", err)
	}
	return nil
}

// CreatePayment records a payment against an invoice.
func (r *FeeRepository) CreatePayment(ctx context.Context, payment *models.FeePayment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	payment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO fee_payments (id, invoice_id, amount, method, reference, paid_at, created_at)
        VALUES (:id, :invoice_id, :amount, :method, :reference, :paid_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create fee payment: %w", err)
	}
	return nil
}

// PaidTotal sums payments recorded for an invoice.
func (r *FeeRepository) PaidTotal(ctx context.Context, invoiceID string) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM fee_payments WHERE invoice_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, invoiceID); err != nil {
		return 0, fmt.Errorf("sum fee payments: %w", err)
	}
	return total, nil
}

// MarkOverdue flips past-due PENDING invoices to OVERDUE and returns how many
// rows changed. Used by the scheduled overdue scan.
func (r *FeeRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `UPDATE fee_invoices SET status = $1, updated_at = $2 WHERE status = $3 AND due_date < $4`
	result, err := r.db.ExecContext(ctx, query, models.FeeStatusOverdue, time.Now().UTC(), models.FeeStatusPending, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("overdue rows affected: %w", err)
	}
	return affected, nil
}
