package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/pkg/config"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type feeRepository interface {
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeInvoiceDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.FeeInvoice, error)
	Create(ctx context.Context, invoice *models.FeeInvoice) error
	UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error
	CreatePayment(ctx context.Context, payment *models.FeePayment) error
	PaidTotal(ctx context.Context, invoiceID string) (int64, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

type feeStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateInvoiceRequest opens a fee invoice for a student.
type CreateInvoiceRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	Amount    int64     `json:"amount" validate:"required,gt=0"`
	DueDate   time.Time `json:"due_date" validate:"required"`
}

// RecordPaymentRequest registers money received against an invoice.
type RecordPaymentRequest struct {
	Amount    int64   `json:"amount" validate:"required,gt=0"`
	Method    string  `json:"method" validate:"required"`
	Reference *string `json:"reference,omitempty"`
}

// FeeService manages invoices and payments.
type FeeService struct {
	repo      feeRepository
	students  feeStudentReader
	cfg       config.FeesConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFeeService constructs FeeService.
func NewFeeService(repo feeRepository, students feeStudentReader, cfg config.FeesConfig, validate *validator.Validate, logger *zap.Logger) *FeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{repo: repo, students: students, cfg: cfg, validator: validate, logger: logger}
}

// List returns invoices with pagination metadata.
func (s *FeeService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeInvoiceDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown fee status %q", filter.Status))
	}
	invoices, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return invoices, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one invoice by ID.
func (s *FeeService) Get(ctx context.Context, id string) (*models.FeeInvoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invoice")
	}
	return invoice, nil
}

// CreateInvoice opens a PENDING invoice for a student.
func (s *FeeService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*models.FeeInvoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	invoice := &models.FeeInvoice{
		StudentID: req.StudentID,
		Title:     req.Title,
		Amount:    req.Amount,
		DueDate:   req.DueDate,
		Status:    models.FeeStatusPending,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	return invoice, nil
}

// RecordPayment registers a payment and marks the invoice PAID once the paid
// total covers the amount owed.
func (s *FeeService) RecordPayment(ctx context.Context, invoiceID string, req RecordPaymentRequest) (*models.FeePayment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	invoice, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.FeeStatusPaid || invoice.Status == models.FeeStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("invoice already %s", invoice.Status))
	}

	payment := &models.FeePayment{
		InvoiceID: invoice.ID,
		Amount:    req.Amount,
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    time.Now().UTC(),
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	paid, err := s.repo.PaidTotal(ctx, invoice.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to total payments")
	}
	if paid >= invoice.Amount {
		if err := s.repo.UpdateStatus(ctx, invoice.ID, models.FeeStatusPaid); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invoice paid")
		}
		s.logger.Info("invoice settled",
			zap.String("invoice_id", invoice.ID),
			zap.Int64("amount", invoice.Amount))
	}
	return payment, nil
}

// Waive marks an unsettled invoice WAIVED.
func (s *FeeService) Waive(ctx context.Context, invoiceID string) (*models.FeeInvoice, error) {
	invoice, err := s.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status == models.FeeStatusPaid || invoice.Status == models.FeeStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("invoice already %s", invoice.Status))
	}
	if err := s.repo.UpdateStatus(ctx, invoice.ID, models.FeeStatusWaived); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to waive invoice")
	}
	invoice.Status = models.FeeStatusWaived
	return invoice, nil
}

// OverdueScan marks past-due PENDING invoices OVERDUE, honoring the
// configured grace period. Returns the number of invoices flagged.
func (s *FeeService) OverdueScan(ctx context.Context) (int64, error) {
	asOf := time.Now().UTC().AddDate(0, 0, -s.cfg.GraceDays)
	flagged, err := s.repo.MarkOverdue(ctx, asOf)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag overdue invoices")
	}
	if flagged > 0 {
		s.logger.Info("invoices flagged overdue", zap.Int64("count", flagged))
	}
	return flagged, nil
}
