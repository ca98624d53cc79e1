package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type examRepository interface {
	List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	UpsertResult(ctx context.Context, result *models.ExamResult) (*models.ExamResult, error)
	ListResults(ctx context.Context, examID string) ([]models.ExamResultDetail, error)
	ListStudentResults(ctx context.Context, studentID string) ([]models.ExamResultDetail, error)
}

type examStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateExamRequest schedules an exam.
type CreateExamRequest struct {
	Name     string    `json:"name" validate:"required"`
	Subject  string    `json:"subject" validate:"required"`
	Grade    string    `json:"grade" validate:"required"`
	ExamDate time.Time `json:"exam_date" validate:"required"`
	MaxMarks int       `json:"max_marks" validate:"required,gt=0"`
}

// EnterResultRequest records a student's marks for an exam.
type EnterResultRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Marks     int     `json:"marks" validate:"min=0"`
	Remark    *string `json:"remark,omitempty"`
}

// ExamService manages exams and their results.
type ExamService struct {
	repo      examRepository
	students  examStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs ExamService.
func NewExamService(repo examRepository, students examStudentReader, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, students: students, validator: validate, logger: logger}
}

// List returns exams with pagination metadata.
func (s *ExamService) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, *models.Pagination, error) {
	exams, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return exams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one exam by ID.
func (s *ExamService) Get(ctx context.Context, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	return exam, nil
}

// Create schedules a new exam.
func (s *ExamService) Create(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam := &models.Exam{
		Name:     req.Name,
		Subject:  req.Subject,
		Grade:    req.Grade,
		ExamDate: req.ExamDate,
		MaxMarks: req.MaxMarks,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Update modifies exam details.
func (s *ExamService) Update(ctx context.Context, id string, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	exam, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	exam.Name = req.Name
	exam.Subject = req.Subject
	exam.Grade = req.Grade
	exam.ExamDate = req.ExamDate
	exam.MaxMarks = req.MaxMarks
	if err := s.repo.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// EnterResult upserts one student's result, bounded by the exam's max marks.
func (s *ExamService) EnterResult(ctx context.Context, examID string, req EnterResultRequest) (*models.ExamResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	exam, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if req.Marks > exam.MaxMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("marks %d exceed exam maximum %d", req.Marks, exam.MaxMarks))
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	result := &models.ExamResult{
		ExamID:    exam.ID,
		StudentID: req.StudentID,
		Marks:     req.Marks,
		Remark:    req.Remark,
	}
	saved, err := s.repo.UpsertResult(ctx, result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save result")
	}
	return saved, nil
}

// Results lists all results for an exam.
func (s *ExamService) Results(ctx context.Context, examID string) ([]models.ExamResultDetail, error) {
	if _, err := s.Get(ctx, examID); err != nil {
		return nil, err
	}
	results, err := s.repo.ListResults(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// StudentResults lists all results for one student.
func (s *ExamService) StudentResults(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	results, err := s.repo.ListStudentResults(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}
