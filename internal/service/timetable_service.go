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

type timetableRepository interface {
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.TimetableSlot, error)
	ExistsSlot(ctx context.Context, grade, day string, period int, excludeID string) (bool, error)
	Create(ctx context.Context, slot *models.TimetableSlot) error
	Update(ctx context.Context, slot *models.TimetableSlot) error
	Delete(ctx context.Context, id string) error
}

// SlotRequest creates or replaces a timetable slot.
type SlotRequest struct {
	Grade     string  `json:"grade" validate:"required"`
	Day       string  `json:"day" validate:"required"`
	Period    int     `json:"period" validate:"required,gt=0"`
	Subject   string  `json:"subject" validate:"required"`
	StaffID   *string `json:"staff_id,omitempty"`
	StartTime string  `json:"start_time" validate:"required"`
	EndTime   string  `json:"end_time" validate:"required"`
}

// TimetableService manages weekly timetable slots per grade.
type TimetableService struct {
	repo      timetableRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimetableService constructs TimetableService.
func NewTimetableService(repo timetableRepository, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{repo: repo, validator: validate, logger: logger}
}

// List returns timetable slots with pagination metadata.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, *models.Pagination, error) {
	if filter.Day != "" && !models.ValidTimetableDay(filter.Day) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", filter.Day))
	}
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable slots")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return slots, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one slot by ID.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableSlot, error) {
	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slot")
	}
	return slot, nil
}

// Create adds a slot after day, time-ordering and uniqueness checks.
func (s *TimetableService) Create(ctx context.Context, req SlotRequest) (*models.TimetableSlot, error) {
	if err := s.checkSlot(req); err != nil {
		return nil, err
	}
	taken, err := s.repo.ExistsSlot(ctx, req.Grade, req.Day, req.Period, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot availability")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("period %d on %s already scheduled for grade %s", req.Period, req.Day, req.Grade))
	}

	slot := &models.TimetableSlot{
		Grade:     req.Grade,
		Day:       req.Day,
		Period:    req.Period,
		Subject:   req.Subject,
		StaffID:   req.StaffID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}
	if err := s.repo.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable slot")
	}
	return slot, nil
}

// Update replaces a slot's fields.
func (s *TimetableService) Update(ctx context.Context, id string, req SlotRequest) (*models.TimetableSlot, error) {
	if err := s.checkSlot(req); err != nil {
		return nil, err
	}
	slot, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.repo.ExistsSlot(ctx, req.Grade, req.Day, req.Period, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check slot availability")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("period %d on %s already scheduled for grade %s", req.Period, req.Day, req.Grade))
	}

	slot.Grade = req.Grade
	slot.Day = req.Day
	slot.Period = req.Period
	slot.Subject = req.Subject
	slot.StaffID = req.StaffID
	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	if err := s.repo.Update(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update timetable slot")
	}
	return slot, nil
}

// Delete removes a slot.
func (s *TimetableService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete timetable slot")
	}
	return nil
}

func (s *TimetableService) checkSlot(req SlotRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if !models.ValidTimetableDay(req.Day) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	start, err := time.Parse("15:04", req.StartTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "start time must be HH:MM")
	}
	end, err := time.Parse("15:04", req.EndTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrValidation, "end time must be HH:MM")
	}
	return ValidateTimeOrdering(&start, &end)
}
