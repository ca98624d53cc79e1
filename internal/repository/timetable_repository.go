package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/sims-api/internal/models"
)

// TimetableRepository handles persistence of timetable slots.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

const timetableColumns = `id, grade, day, period, subject, staff_id, start_time, end_time, created_at, updated_at`

// List returns timetable slots matching the filter.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, int, error) {
	base := "FROM timetable_slots"
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("day = $%d", len(args)+1))
		args = append(args, filter.Day)
	}
	if filter.StaffID != "" {
		conditions = append(conditions, fmt.Sprintf("staff_id = $%d", len(args)+1))
		args = append(args, filter.StaffID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY day ASC, period ASC LIMIT %d OFFSET %d",
		timetableColumns, base+clause, size, offset)

	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable slots: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable slots: %w", err)
	}
	return slots, total, nil
}

// FindByID fetches a slot by ID.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_slots WHERE id = $1", timetableColumns)
	var slot models.TimetableSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// ExistsSlot checks whether a (grade, day, period) combination is taken.
func (r *TimetableRepository) ExistsSlot(ctx context.Context, grade, day string, period int, excludeID string) (bool, error) {
	query := "SELECT 1 FROM timetable_slots WHERE grade = $1 AND day = $2 AND period = $3"
	args := []interface{}{grade, day, period}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check timetable slot: %w", err)
	}
	return true, nil
}

// Create inserts a new slot.
func (r *TimetableRepository) Create(ctx context.Context, slot *models.TimetableSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	slot.CreatedAt = now
	slot.UpdatedAt = now
	const query = `INSERT INTO timetable_slots (id, grade, day, period, subject, staff_id, start_time, end_time, created_at, updated_at)
        VALUES (:id, :grade, :day, :period, :subject, :staff_id, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create timetable slot: %w", err)
	}
	return nil
}

// Update modifies an existing slot.
func (r *TimetableRepository) Update(ctx context.Context, slot *models.TimetableSlot) error {
	slot.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_slots SET grade = :grade, day = :day, period = :period, subject = :subject,
        staff_id = :staff_id, start_time = :start_time, end_time = :end_time, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("update timetable slot: %w", err)
	}
	return nil
}

// Delete removes a slot.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetable_slots WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete timetable slot: %w", err)
	}
	return nil
}
