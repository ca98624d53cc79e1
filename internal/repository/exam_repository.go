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

// ExamRepository handles persistence of exams and their results.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// List returns exams matching the filter.
func (r *ExamRepository) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	base := "FROM exams"
	var conditions []string
	var args []interface{}

	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("exam_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"exam_date": "exam_date",
		"name":      "name",
		"subject":   "subject",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "exam_date"
	}
	column := allowedSorts[sortBy]
	if column == "" {
		column = "exam_date"
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

	query := fmt.Sprintf(`SELECT id, name, subject, grade, exam_date, max_marks, created_at, updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, column, order, size, offset)

	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// FindByID fetches an exam by ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, name, subject, grade, exam_date, max_marks, created_at, updated_at FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Create inserts a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	exam.CreatedAt = now
	exam.UpdatedAt = now
	const query = `INSERT INTO exams (id, name, subject, grade, exam_date, max_marks, created_at, updated_at)
        VALUES (:id, :name, :subject, :grade, :exam_date, :max_marks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update modifies an existing exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET name = :name, subject = :subject, grade = :grade, exam_date = :exam_date,
        max_marks = :max_marks, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// UpsertResult writes one student's marks for an exam.
func (r *ExamRepository) UpsertResult(ctx context.Context, result *models.ExamResult) (*models.ExamResult, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	result.CreatedAt = now
	result.UpdatedAt = now
	const query = `INSERT INTO exam_results (id, exam_id, student_id, marks, remark, created_at, updated_at)
        VALUES (:id, :exam_id, :student_id, :marks, :remark, :created_at, :updated_at)
        ON CONFLICT (exam_id, student_id) DO UPDATE SET marks = EXCLUDED.marks, remark = EXCLUDED.remark, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return nil, fmt.Errorf("upsert exam result: %w", err)
	}
	return result, nil
}

// ListResults returns result rows for one exam with student context.
func (r *ExamRepository) ListResults(ctx context.Context, examID string) ([]models.ExamResultDetail, error) {
	const query = `SELECT r.id, r.exam_id, r.student_id, r.marks, r.remark, r.created_at, r.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.nis AS student_nis, e.name AS exam_name, e.max_marks
        FROM exam_results r
        LEFT JOIN students s ON s.id = r.student_id
        LEFT JOIN exams e ON e.id = r.exam_id
        WHERE r.exam_id = $1
        ORDER BY s.first_name ASC`
	var results []models.ExamResultDetail
	if err := r.db.SelectContext(ctx, &results, query, examID); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return results, nil
}

// ListStudentResults returns a student's results across exams.
func (r *ExamRepository) ListStudentResults(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	const query = `SELECT r.id, r.exam_id, r.student_id, r.marks, r.remark, r.created_at, r.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.nis AS student_nis, e.name AS exam_name, e.max_marks
        FROM exam_results r
        LEFT JOIN students s ON s.id = r.student_id
        LEFT JOIN exams e ON e.id = r.exam_id
        WHERE r.student_id = $1
        ORDER BY e.exam_date DESC`
	var results []models.ExamResultDetail
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	return results, nil
}
