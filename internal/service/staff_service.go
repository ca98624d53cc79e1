package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type staffRepository interface {
	List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, int, error)
	FindByID(ctx context.Context, id string) (*models.Staff, error)
	ExistsByNIP(ctx context.Context, nip string, excludeID string) (bool, error)
	Create(ctx context.Context, member *models.Staff) error
	Update(ctx context.Context, member *models.Staff) error
	Deactivate(ctx context.Context, id string) error
}

// CreateStaffRequest registers a staff member.
type CreateStaffRequest struct {
	NIP      string  `json:"nip" validate:"required"`
	FullName string  `json:"full_name" validate:"required"`
	Title    string  `json:"title" validate:"required"`
	Subject  *string `json:"subject,omitempty"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Phone    string  `json:"phone"`
	Address  string  `json:"address"`
}

// UpdateStaffRequest modifies mutable staff fields.
type UpdateStaffRequest struct {
	FullName string  `json:"full_name" validate:"required"`
	Title    string  `json:"title" validate:"required"`
	Subject  *string `json:"subject,omitempty"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Phone    string  `json:"phone"`
	Address  string  `json:"address"`
}

// StaffService manages staff records.
type StaffService struct {
	repo      staffRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStaffService constructs StaffService.
func NewStaffService(repo staffRepository, validate *validator.Validate, logger *zap.Logger) *StaffService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{repo: repo, validator: validate, logger: logger}
}

// List returns staff with pagination metadata.
func (s *StaffService) List(ctx context.Context, filter models.StaffFilter) ([]models.Staff, *models.Pagination, error) {
	staff, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return staff, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one staff member by ID.
func (s *StaffService) Get(ctx context.Context, id string) (*models.Staff, error) {
	member, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "staff member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff member")
	}
	return member, nil
}

// Create registers a staff member after checking NIP uniqueness.
func (s *StaffService) Create(ctx context.Context, req CreateStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	exists, err := s.repo.ExistsByNIP(ctx, req.NIP, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check employee number")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "employee number already registered")
	}

	member := &models.Staff{
		NIP:      req.NIP,
		FullName: req.FullName,
		Title:    req.Title,
		Subject:  req.Subject,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Active:   true,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff member")
	}
	return member, nil
}

// Update modifies a staff member's mutable fields.
func (s *StaffService) Update(ctx context.Context, id string, req UpdateStaffRequest) (*models.Staff, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	member, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	member.FullName = req.FullName
	member.Title = req.Title
	member.Subject = req.Subject
	member.Email = req.Email
	member.Phone = req.Phone
	member.Address = req.Address
	if err := s.repo.Update(ctx, member); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update staff member")
	}
	return member, nil
}

// Deactivate marks a staff member inactive.
func (s *StaffService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate staff member")
	}
	return nil
}
