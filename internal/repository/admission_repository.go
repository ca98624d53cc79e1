package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/sims-api/internal/models"
)

// ErrStaleRecord is returned when a versioned update matched no rows because
// a concurrent writer committed first.
var ErrStaleRecord = errors.New("record version is stale")

// AdmissionRepository manages persistence for admission applications.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs an AdmissionRepository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

const admissionColumns = `id, application_date, applicant_name, birth_date, gender, email, phone, address,
        guardian_name, guardian_phone, grade_applied, previous_school, medical_notes,
        document_path, document_name, status, rejection_reason, student_id, version, created_at, updated_at`

// List returns admissions matching the provided filters.
func (r *AdmissionRepository) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error) {
	base := "FROM admissions"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.GradeApplied != "" {
		conditions = append(conditions, fmt.Sprintf("grade_applied = $%d", len(args)+1))
		args = append(args, filter.GradeApplied)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(applicant_name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("application_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("application_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"application_date": "application_date",
		"applicant_name":   "applicant_name",
		"status":           "status",
		"created_at":       "created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "application_date"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "application_date"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		admissionColumns, base+clause, column, order, size, offset)

	var admissions []models.Admission
	if err := r.db.SelectContext(ctx, &admissions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list admissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count admissions: %w", err)
	}
	return admissions, total, nil
}

// FindByID fetches an admission by ID.
func (r *AdmissionRepository) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	query := fmt.Sprintf("SELECT %s FROM admissions WHERE id = $1", admissionColumns)
	var admission models.Admission
	if err := r.db.GetContext(ctx, &admission, query, id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// FindByIDTx fetches an admission inside an open transaction.
func (r *AdmissionRepository) FindByIDTx(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error) {
	query := fmt.Sprintf("SELECT %s FROM admissions WHERE id = $1", admissionColumns)
	var admission models.Admission
	if err := sqlx.GetContext(ctx, exec, &admission, query, id); err != nil {
		return nil, err
	}
	return &admission, nil
}

// Create inserts a new admission application.
func (r *AdmissionRepository) Create(ctx context.Context, admission *models.Admission) error {
	if admission.ID == "" {
		admission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if admission.ApplicationDate.IsZero() {
		admission.ApplicationDate = now
	}
	if admission.Status == "" {
		admission.Status = models.AdmissionStatusPending
	}
	admission.Version = 1
	admission.CreatedAt = now
	admission.UpdatedAt = now
	const query = `INSERT INTO admissions (id, application_date, applicant_name, birth_date, gender, email, phone, address,
        guardian_name, guardian_phone, grade_applied, previous_school, medical_notes,
        document_path, document_name, status, rejection_reason, student_id, version, created_at, updated_at)
        VALUES (:id, :application_date, :applicant_name, :birth_date, :gender, :email, :phone, :address,
        :guardian_name, :guardian_phone, :grade_applied, :previous_school, :medical_notes,
        :document_path, :document_name, :status, :rejection_reason, :student_id, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admission); err != nil {
		return fmt.Errorf("create admission: %w", err)
	}
	return nil
}

// UpdateTx persists admission changes inside a transaction, guarded by the
// version the caller loaded. On success the in-memory version is bumped; when
// the guard matches no row the write is rejected with ErrStaleRecord.
func (r *AdmissionRepository) UpdateTx(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error {
	admission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE admissions SET applicant_name = :applicant_name, birth_date = :birth_date, gender = :gender,
        email = :email, phone = :phone, address = :address, guardian_name = :guardian_name, guardian_phone = :guardian_phone,
        grade_applied = :grade_applied, previous_school = :previous_school, medical_notes = :medical_notes,
        document_path = :document_path, document_name = :document_name, status = :status,
        rejection_reason = :rejection_reason, student_id = :student_id,
        version = version + 1, updated_at = :updated_at
        WHERE id = :id AND version = :version`
	result, err := sqlx.NamedExecContext(ctx, exec, query, admission)
	if err != nil {
		return fmt.Errorf("update admission: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update admission rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleRecord
	}
	admission.Version++
	return nil
}

// SetDocument stores the uploaded document reference on the application.
func (r *AdmissionRepository) SetDocument(ctx context.Context, id, path, name string) error {
	const query = `UPDATE admissions SET document_path = $2, document_name = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("set admission document: %w", err)
	}
	return nil
}

// ListStalePending returns admissions still PENDING with an application date
// at or before the cutoff. Used by the review reminder job.
func (r *AdmissionRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Admission, error) {
	query := fmt.Sprintf("SELECT %s FROM admissions WHERE status = $1 AND application_date <= $2", admissionColumns)
	var admissions []models.Admission
	if err := r.db.SelectContext(ctx, &admissions, query, models.AdmissionStatusPending, cutoff); err != nil {
		return nil, fmt.Errorf("list stale admissions: %w", err)
	}
	return admissions, nil
}

// CountByStatus aggregates admissions per status for the dashboard.
func (r *AdmissionRepository) CountByStatus(ctx context.Context) (map[models.AdmissionStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM admissions GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count admissions by status: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	counts := make(map[models.AdmissionStatus]int)
	for rows.Next() {
		var status models.AdmissionStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan admission count: %w", err)
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
