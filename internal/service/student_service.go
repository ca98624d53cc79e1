package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
	"github.com/sekolahku/sims-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByNIS(ctx context.Context, nis string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStudentRequest registers a student directly, outside the admission
// workflow (transfers, data migration).
type CreateStudentRequest struct {
	NIS           string    `json:"nis" validate:"required"`
	FirstName     string    `json:"first_name" validate:"required"`
	LastName      string    `json:"last_name"`
	Gender        string    `json:"gender" validate:"required,oneof=MALE FEMALE"`
	BirthDate     time.Time `json:"birth_date" validate:"required"`
	Grade         string    `json:"grade" validate:"required"`
	GuardianName  string    `json:"guardian_name" validate:"required"`
	GuardianPhone string    `json:"guardian_phone" validate:"required"`
	Email         string    `json:"email" validate:"omitempty,email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
}

// UpdateStudentRequest modifies mutable student fields.
type UpdateStudentRequest struct {
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name"`
	Grade         string `json:"grade" validate:"required"`
	GuardianName  string `json:"guardian_name" validate:"required"`
	GuardianPhone string `json:"guardian_phone" validate:"required"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

// StudentService manages student records.
type StudentService struct {
	repo      studentRepository
	csv       *export.CSVExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, csv: export.NewCSVExporter(), validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student after checking NIS uniqueness.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	exists, err := s.repo.ExistsByNIS(ctx, req.NIS, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student number already registered")
	}

	student := &models.Student{
		NIS:           req.NIS,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Gender:        req.Gender,
		BirthDate:     req.BirthDate,
		Grade:         req.Grade,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		Active:        true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update modifies a student's mutable fields.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Grade = req.Grade
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	student.Email = req.Email
	student.Phone = req.Phone
	student.Address = req.Address
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks a student inactive. Records are never deleted.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

// ExportCSV renders the filtered student list as CSV. The filter's paging is
// widened so the export covers every matching row.
func (s *StudentService) ExportCSV(ctx context.Context, filter models.StudentFilter) ([]byte, error) {
	filter.Page = 1
	filter.PageSize = 10000
	students, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	data := export.Dataset{
		Headers: []string{"NIS", "Name", "Gender", "Birth Date", "Grade", "Guardian", "Guardian Phone", "Email", "Phone", "Active"},
	}
	for _, st := range students {
		active := "yes"
		if !st.Active {
			active = "no"
		}
		data.Rows = append(data.Rows, map[string]string{
			"NIS":            st.NIS,
			"Name":           st.FullName(),
			"Gender":         st.Gender,
			"Birth Date":     st.BirthDate.Format("2006-01-02"),
			"Grade":          st.Grade,
			"Guardian":       st.GuardianName,
			"Guardian Phone": st.GuardianPhone,
			"Email":          st.Email,
			"Phone":          st.Phone,
			"Active":         active,
		})
	}
	payload, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return payload, nil
}
