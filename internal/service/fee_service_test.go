package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/pkg/config"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type mockFeeRepo struct {
	invoices   map[string]models.FeeInvoice
	payments   []models.FeePayment
	paidTotal  int64
	statusSet  map[string]models.FeeStatus
	overdueCnt int64
	overdueAs  time.Time
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeInvoiceDetail, int, error) {
	return nil, 0, nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, id string) (*models.FeeInvoice, error) {
	if inv, ok := m.invoices[id]; ok {
		return &inv, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) Create(ctx context.Context, invoice *models.FeeInvoice) error {
	if m.invoices == nil {
		m.invoices = make(map[string]models.FeeInvoice)
	}
	if invoice.ID == "" {
		invoice.ID = "new-invoice"
	}
	m.invoices[invoice.ID] = *invoice
	return nil
}

func (m *mockFeeRepo) UpdateStatus(ctx context.Context, id string, status models.FeeStatus) error {
	if m.statusSet == nil {
		m.statusSet = make(map[string]models.FeeStatus)
	}
	m.statusSet[id] = status
	if inv, ok := m.invoices[id]; ok {
		inv.Status = status
		m.invoices[id] = inv
	}
	return nil
}

func (m *mockFeeRepo) CreatePayment(ctx context.Context, payment *models.FeePayment) error {
	m.payments = append(m.payments, *payment)
	return nil
}

func (m *mockFeeRepo) PaidTotal(ctx context.Context, invoiceID string) (int64, error) {
	return m.paidTotal, nil
}

func (m *mockFeeRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	m.overdueAs = asOf
	return m.overdueCnt, nil
}

type mockFeeStudents struct{}

func (m *mockFeeStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Student{ID: id, Active: true}, nil
}

func pendingInvoice() models.FeeInvoice {
	return models.FeeInvoice{
		ID:        "inv-1",
		StudentID: "s1",
		Title:     "Tuition September",
		Amount:    150000,
		DueDate:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		Status:    models.FeeStatusPending,
	}
}

func newFeeService(repo *mockFeeRepo, graceDays int) *FeeService {
	return NewFeeService(repo, &mockFeeStudents{}, config.FeesConfig{GraceDays: graceDays}, nil, nil)
}

func TestFeeServiceCreateInvoice(t *testing.T) {
	repo := &mockFeeRepo{}
	svc := newFeeService(repo, 0)

	invoice, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		StudentID: "s1",
		Title:     "Tuition September",
		Amount:    150000,
		DueDate:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, invoice.Status)
}

func TestFeeServiceCreateInvoiceUnknownStudent(t *testing.T) {
	svc := newFeeService(&mockFeeRepo{}, 0)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceRequest{
		StudentID: "missing",
		Title:     "Tuition",
		Amount:    100,
		DueDate:   time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestFeeServicePartialPaymentKeepsPending(t *testing.T) {
	repo := &mockFeeRepo{invoices: map[string]models.FeeInvoice{"inv-1": pendingInvoice()}, paidTotal: 50000}
	svc := newFeeService(repo, 0)

	payment, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 50000, Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), payment.Amount)
	assert.Empty(t, repo.statusSet)
}

func TestFeeServiceFullPaymentMarksPaid(t *testing.T) {
	repo := &mockFeeRepo{invoices: map[string]models.FeeInvoice{"inv-1": pendingInvoice()}, paidTotal: 150000}
	svc := newFeeService(repo, 0)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 150000, Method: "transfer"})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, repo.statusSet["inv-1"])
}

func TestFeeServicePaymentOnSettledInvoice(t *testing.T) {
	invoice := pendingInvoice()
	invoice.Status = models.FeeStatusPaid
	repo := &mockFeeRepo{invoices: map[string]models.FeeInvoice{"inv-1": invoice}}
	svc := newFeeService(repo, 0)

	_, err := svc.RecordPayment(context.Background(), "inv-1", RecordPaymentRequest{Amount: 100, Method: "cash"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.payments)
}

func TestFeeServiceWaive(t *testing.T) {
	repo := &mockFeeRepo{invoices: map[string]models.FeeInvoice{"inv-1": pendingInvoice()}}
	svc := newFeeService(repo, 0)

	invoice, err := svc.Waive(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusWaived, invoice.Status)
}

func TestFeeServiceWaivePaidInvoice(t *testing.T) {
	invoice := pendingInvoice()
	invoice.Status = models.FeeStatusPaid
	repo := &mockFeeRepo{invoices: map[string]models.FeeInvoice{"inv-1": invoice}}
	svc := newFeeService(repo, 0)

	_, err := svc.Waive(context.Background(), "inv-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestFeeServiceOverdueScanHonorsGrace(t *testing.T) {
	repo := &mockFeeRepo{overdueCnt: 3}
	svc := newFeeService(repo, 5)

	flagged, err := svc.OverdueScan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), flagged)

	expected := time.Now().UTC().AddDate(0, 0, -5)
	assert.WithinDuration(t, expected, repo.overdueAs, time.Minute)
}
