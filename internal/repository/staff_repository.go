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

// StaffRepository manages persistence for staff records.
type StaffRepository struct {
	db *sqlx.DB
}

// NewStaffRepository constructs a StaffRepository.
func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffColumns = `id, nip, full_name, title, subject, email, phone, address, active, created_at, updated_at`

// List returns staff matching the provided filters.
func (r *StaffRepository) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error) {
	base := "FROM staff"
	var conditions []string
	var args []interface{}

	if filter.Title != "" {
		conditions = append(conditions, fmt.Sprintf("title = $%d", len(args)+1))
		args = append(args, filter.Title)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(nip) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"nip":        "nip",
		"created_at": "created_at",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
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
		staffColumns, base+clause, column, order, size, offset)

	var staff []models.Staff
	if err := r.db.SelectContext(ctx, &staff, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list staff: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count staff: %w", err)
	}
	return staff, total, nil
}

// FindByID fetches a staff member by ID.
func (r *StaffRepository) FindByID(ctx context.Context, id string) (*models.Staff, error) {
	query := fmt.Sprintf("SELECT %s FROM staff WHERE id = $1", staffColumns)
	var member models.Staff
	if err := r.db.GetContext(ctx, &member, query, id); err != nil {
		return nil, err
	}
	return &member, nil
}

// ExistsByNIP checks if a staff member with the given NIP exists optionally excluding an ID.
func (r *StaffRepository) ExistsByNIP(ctx context.Context, nip string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM staff WHERE nip = $1"
	args := []interface{}{nip}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check nip: %w", err)
	}
	return true, nil
}

// Create inserts a new staff record.
func (r *StaffRepository) Create(ctx context.Context, member *models.Staff) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	member.UpdatedAt = now
	const query = `INSERT INTO staff (id, nip, full_name, title, subject, email, phone, address, active, created_at, updated_at)
        VALUES (:id, :nip, :full_name, :title, :subject, :email, :phone, :address, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// Update modifies an existing staff record.
func (r *StaffRepository) Update(ctx context.Context, member *models.Staff) error {
	member.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET nip = :nip, full_name = :full_name, title = :title, subject = :subject,
        email = :email, phone = :phone, address = :address, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("update staff: %w", err)
	}
	return nil
}

// Deactivate marks a staff member as inactive.
func (r *StaffRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE staff SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate staff: %w", err)
	}
	return nil
}
