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

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error)
	BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error)
	StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type attendanceStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// MarkAttendanceRequest records a single student's attendance for a date.
type MarkAttendanceRequest struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Date      time.Time               `json:"date" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Notes     *string                 `json:"notes,omitempty"`
}

// BulkMarkAttendanceRequest records attendance for many students at once.
type BulkMarkAttendanceRequest struct {
	Date    time.Time                `json:"date" validate:"required"`
	Mode    models.BulkOperationMode `json:"mode"`
	Entries []BulkAttendanceEntry    `json:"entries" validate:"required,dive"`
}

// BulkAttendanceEntry is one row of a bulk submission.
type BulkAttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
	Notes     *string                 `json:"notes,omitempty"`
}

// BulkMarkResult summarizes a bulk write.
type BulkMarkResult struct {
	Written   int                             `json:"written"`
	Conflicts []models.AttendanceBulkConflict `json:"conflicts,omitempty"`
}

// AttendanceService manages daily attendance records.
type AttendanceService struct {
	repo      attendanceRepository
	students  attendanceStudentReader
	cfg       config.AttendanceConfig
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, students attendanceStudentReader, cfg config.AttendanceConfig, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if cfg.BackfillWindowDays <= 0 {
		cfg.BackfillWindowDays = DefaultBackfillWindowDays
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, students: students, cfg: cfg, validator: validate, logger: logger}
}

// Mark upserts one attendance record keyed on student and date.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", req.Status))
	}
	if err := ValidateRecordDate(req.Date, s.cfg.BackfillWindowDays); err != nil {
		return nil, err
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	record := &models.Attendance{
		StudentID: req.StudentID,
		Date:      req.Date,
		Status:    req.Status,
		Notes:     req.Notes,
	}
	saved, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	return saved, nil
}

// BulkMark writes many attendance records for one date. Atomic mode rejects
// the whole batch on any failure; partial mode writes what it can and
// reports per-row conflicts.
func (s *AttendanceService) BulkMark(ctx context.Context, req BulkMarkAttendanceRequest) (*BulkMarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}
	if err := ValidateBatchSize(len(req.Entries), s.cfg.MaxBatchSize); err != nil {
		return nil, err
	}
	if err := ValidateRecordDate(req.Date, s.cfg.BackfillWindowDays); err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = models.BulkModeAtomic
	}
	if mode != models.BulkModeAtomic && mode != models.BulkModePartialOnError {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown bulk mode %q", mode))
	}

	records := make([]models.Attendance, 0, len(req.Entries))
	seen := make(map[string]struct{}, len(req.Entries))
	for _, entry := range req.Entries {
		if !entry.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("unknown attendance status %q for student %s", entry.Status, entry.StudentID))
		}
		if _, dup := seen[entry.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("duplicate entry for student %s", entry.StudentID))
		}
		seen[entry.StudentID] = struct{}{}
		records = append(records, models.Attendance{
			StudentID: entry.StudentID,
			Date:      req.Date,
			Status:    entry.Status,
			Notes:     entry.Notes,
		})
	}

	conflicts, err := s.repo.BulkUpsert(ctx, records, mode == models.BulkModeAtomic)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save bulk attendance")
	}
	result := &BulkMarkResult{Written: len(records) - len(conflicts), Conflicts: conflicts}
	s.logger.Info("bulk attendance recorded",
		zap.Time("date", req.Date),
		zap.String("mode", string(mode)),
		zap.Int("written", result.Written),
		zap.Int("conflicts", len(conflicts)))
	return result, nil
}

// List returns attendance records with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", *filter.Status))
	}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary returns per-status counts for one student over an optional range.
func (s *AttendanceService) Summary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range end precedes start")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	summary, err := s.repo.StudentSummary(ctx, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute attendance summary")
	}
	return summary, nil
}
