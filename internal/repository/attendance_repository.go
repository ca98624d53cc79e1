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

// AttendanceRepository handles persistence of daily attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// List returns attendance rows joined with student metadata.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM attendance a LEFT JOIN students s ON s.id = a.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("s.grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"date":         "a.date",
		"student_name": "s.first_name",
		"status":       "a.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "date"
	}
	column := allowedSorts[sortBy]
	if column == "" {
		column = "a.date"
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
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.date, a.status, a.notes, a.created_at, a.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.nis AS student_nis, s.grade
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, column, order, size, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// Upsert writes a single attendance record keyed on student and date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	const query = `INSERT INTO attendance (id, student_id, date, status, notes, created_at, updated_at)
        VALUES (:id, :student_id, :date, :status, :notes, :created_at, :updated_at)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return record, nil
}

// BulkUpsert writes many attendance rows. With atomic=true the batch runs in
// one transaction and any failure aborts the whole write; otherwise failed
// rows are reported as conflicts and the rest commit individually.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error) {
	const query = `INSERT INTO attendance (id, student_id, date, status, notes, created_at, updated_at)
        VALUES (:id, :student_id, :date, :status, :notes, :created_at, :updated_at)
        ON CONFLICT (student_id, date) DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].CreatedAt = now
		records[i].UpdatedAt = now
	}

	if atomic {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin bulk attendance tx: %w", err)
		}
		for _, record := range records {
			if _, err := tx.NamedExecContext(ctx, query, record); err != nil {
				_ = tx.Rollback()
				return nil, fmt.Errorf("bulk attendance row %s: %w", record.StudentID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit bulk attendance: %w", err)
		}
		return nil, nil
	}

	var conflicts []models.AttendanceBulkConflict
	for _, record := range records {
		if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
			conflicts = append(conflicts, models.AttendanceBulkConflict{StudentID: record.StudentID, Reason: err.Error()})
		}
	}
	return conflicts, nil
}

// StudentSummary aggregates status counts for one student over a date range.
func (r *AttendanceRepository) StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	query := `SELECT
        $1 AS student_id,
        COUNT(*) FILTER (WHERE status = 'PRESENT') AS present,
        COUNT(*) FILTER (WHERE status = 'ABSENT') AS absent,
        COUNT(*) FILTER (WHERE status = 'SICK') AS sick,
        COUNT(*) FILTER (WHERE status = 'PERMIT') AS permit,
        COUNT(*) FILTER (WHERE status = 'LATE') AS late,
        COUNT(*) AS total
        FROM attendance WHERE student_id = $1`
	args := []interface{}{studentID}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	var summary models.AttendanceSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("attendance summary: %w", err)
	}
	return &summary, nil
}
