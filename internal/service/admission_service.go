package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/internal/repository"
	"github.com/sekolahku/sims-api/pkg/database"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
	"github.com/sekolahku/sims-api/pkg/export"
	"github.com/sekolahku/sims-api/pkg/storage"
)

type admissionRepository interface {
	List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error)
	FindByID(ctx context.Context, id string) (*models.Admission, error)
	FindByIDTx(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error)
	Create(ctx context.Context, admission *models.Admission) error
	UpdateTx(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error
	SetDocument(ctx context.Context, id, path, name string) error
	ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Admission, error)
	CountByStatus(ctx context.Context) (map[models.AdmissionStatus]int, error)
}

type studentProvisioner interface {
	CreateTx(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	NextSequence(ctx context.Context, exec sqlx.ExtContext, year int) (int, error)
}

type accountProvisioner interface {
	CreateTx(ctx context.Context, exec sqlx.ExtContext, user *models.User) error
}

// SubmitAdmissionRequest carries a new application.
type SubmitAdmissionRequest struct {
	ApplicantName  string    `json:"applicant_name" validate:"required"`
	BirthDate      time.Time `json:"birth_date" validate:"required"`
	Gender         string    `json:"gender" validate:"required,oneof=MALE FEMALE"`
	Email          string    `json:"email" validate:"required,email"`
	Phone          string    `json:"phone" validate:"required"`
	Address        string    `json:"address" validate:"required"`
	GuardianName   string    `json:"guardian_name" validate:"required"`
	GuardianPhone  string    `json:"guardian_phone" validate:"required"`
	GradeApplied   string    `json:"grade_applied" validate:"required"`
	PreviousSchool *string   `json:"previous_school,omitempty"`
	MedicalNotes   *string   `json:"medical_notes,omitempty"`
}

// UpdateAdmissionStatusRequest carries a transition request. Version is the
// version the caller last read; zero means "skip the conflict check" is not
// allowed, every caller must send it.
type UpdateAdmissionStatusRequest struct {
	Status  models.AdmissionStatus `json:"status" validate:"required"`
	Remarks string                 `json:"remarks"`
	Version int                    `json:"version" validate:"required,min=1"`
	ActorID string                 `json:"-"`
}

// AdmissionOutcome is the result of a workflow transition.
type AdmissionOutcome struct {
	Admission *models.Admission `json:"admission"`
	Message   string            `json:"message"`
}

// AdmissionService orchestrates the admission-to-enrollment workflow.
type AdmissionService struct {
	repo      admissionRepository
	students  studentProvisioner
	accounts  accountProvisioner
	tx        database.TxRunner
	policy    TransitionPolicy
	observer  TransitionObserver
	docs      *storage.DocumentStore
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdmissionService constructs AdmissionService. A nil policy falls back to
// the default workflow; a nil observer disables transition notifications.
func NewAdmissionService(
	repo admissionRepository,
	students studentProvisioner,
	accounts accountProvisioner,
	tx database.TxRunner,
	policy TransitionPolicy,
	observer TransitionObserver,
	docs *storage.DocumentStore,
	signer *storage.SignedURLSigner,
	validate *validator.Validate,
	logger *zap.Logger,
) *AdmissionService {
	if policy == nil {
		policy = DefaultTransitionPolicy()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionService{
		repo:      repo,
		students:  students,
		accounts:  accounts,
		tx:        tx,
		policy:    policy,
		observer:  observer,
		docs:      docs,
		signer:    signer,
		validator: validate,
		logger:    logger,
	}
}

// Submit registers a new application with status PENDING.
func (s *AdmissionService) Submit(ctx context.Context, req SubmitAdmissionRequest) (*models.Admission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid admission payload")
	}
	if !req.BirthDate.Before(time.Now().UTC()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth date must be in the past")
	}

	admission := &models.Admission{
		ApplicationDate: time.Now().UTC(),
		ApplicantName:   strings.TrimSpace(req.ApplicantName),
		BirthDate:       req.BirthDate,
		Gender:          req.Gender,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		GuardianName:    req.GuardianName,
		GuardianPhone:   req.GuardianPhone,
		GradeApplied:    req.GradeApplied,
		PreviousSchool:  req.PreviousSchool,
		MedicalNotes:    req.MedicalNotes,
		Status:          models.AdmissionStatusPending,
	}
	if err := s.repo.Create(ctx, admission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create admission")
	}
	s.logger.Info("admission submitted",
		zap.String("admission_id", admission.ID),
		zap.String("grade_applied", admission.GradeApplied))
	return admission, nil
}

// Get returns one admission by ID.
func (s *AdmissionService) Get(ctx context.Context, id string) (*models.Admission, error) {
	admission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "admission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
	}
	return admission, nil
}

// List returns admissions with pagination metadata.
func (s *AdmissionService) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", filter.Status))
	}
	admissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return admissions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// UpdateStatus applies one workflow transition inside a single transaction.
// The policy is checked before any mutation; APPROVED provisions the student
// record and login account in the same transaction, so a provisioning failure
// leaves the admission untouched.
func (s *AdmissionService) UpdateStatus(ctx context.Context, id string, req UpdateAdmissionStatusRequest) (*AdmissionOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	started := time.Now()
	var outcome *AdmissionOutcome
	var from models.AdmissionStatus

	err := s.tx.WithinTx(ctx, func(tx sqlx.ExtContext) error {
		admission, err := s.repo.FindByIDTx(ctx, tx, id)
		if err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "admission not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admission")
		}
		from = admission.Status

		if err := s.policy.Validate(admission.Status, req.Status); err != nil {
			return err
		}
		if admission.Version != req.Version {
			return appErrors.Clone(appErrors.ErrStaleRecord,
				fmt.Sprintf("admission changed since read: have version %d, got %d", admission.Version, req.Version))
		}

		message := fmt.Sprintf("admission moved to %s", req.Status)
		admission.Status = req.Status
		admission.RejectionReason = nil

		switch req.Status {
		case models.AdmissionStatusRejected:
			if remarks := strings.TrimSpace(req.Remarks); remarks != "" {
				admission.RejectionReason = &remarks
			}
		case models.AdmissionStatusApproved:
			student, tempPassword, err := s.provision(ctx, tx, admission)
			if err != nil {
				return err
			}
			admission.StudentID = &student.ID
			message = fmt.Sprintf("admission approved; student %s created with temporary password %s", student.NIS, tempPassword)
		}

		if err := s.repo.UpdateTx(ctx, tx, admission); err != nil {
			if errors.Is(err, repository.ErrStaleRecord) {
				return appErrors.Clone(appErrors.ErrStaleRecord, "admission was modified concurrently")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update admission")
		}

		outcome = &AdmissionOutcome{Admission: admission, Message: message}
		return nil
	})

	if s.observer != nil {
		event := TransitionEvent{
			AdmissionID: id,
			From:        from,
			To:          req.Status,
			ActorID:     req.ActorID,
			Duration:    time.Since(started),
			Err:         err,
		}
		if err == nil && outcome.Admission.StudentID != nil {
			event.StudentID = *outcome.Admission.StudentID
		}
		s.observer.TransitionObserved(ctx, event)
	}

	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// provision creates the student record and its login account for an approved
// admission. Runs inside the caller's transaction.
func (s *AdmissionService) provision(ctx context.Context, tx sqlx.ExtContext, admission *models.Admission) (*models.Student, string, error) {
	year := admission.ApplicationDate.Year()
	seq, err := s.students.NextSequence(ctx, tx, year)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to allocate student number")
	}
	nis := fmt.Sprintf("%d%04d", year, seq)

	first, last := splitName(admission.ApplicantName)
	student := &models.Student{
		ID:            uuid.NewString(),
		NIS:           nis,
		FirstName:     first,
		LastName:      last,
		Gender:        admission.Gender,
		BirthDate:     admission.BirthDate,
		Grade:         admission.GradeApplied,
		GuardianName:  admission.GuardianName,
		GuardianPhone: admission.GuardianPhone,
		Email:         admission.Email,
		Phone:         admission.Phone,
		Address:       admission.Address,
		Active:        true,
	}
	if err := s.students.CreateTx(ctx, tx, student); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to create student record")
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to generate credentials")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to hash credentials")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     nis,
		Email:        admission.Email,
		PasswordHash: string(hash),
		FullName:     admission.ApplicantName,
		Role:         models.RoleStudent,
		StudentID:    &student.ID,
		Active:       true,
	}
	if err := s.accounts.CreateTx(ctx, tx, user); err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrDependency.Code, appErrors.ErrDependency.Status, "failed to register student account")
	}

	return student, tempPassword, nil
}

// UploadDocument stores an application document and records its location.
// The client-supplied filename is reduced to its base name so it cannot steer
// the write outside the admission's directory.
func (s *AdmissionService) UploadDocument(ctx context.Context, id, fileName string, content io.Reader) (*models.Admission, error) {
	if s.docs == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document storage not configured")
	}
	admission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fileName = filepath.Base(filepath.Clean(fileName))
	if fileName == "." || fileName == string(filepath.Separator) || fileName == ".." {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid document filename")
	}
	relPath := filepath.Join("admissions", admission.ID, fileName)
	if _, err := s.docs.SaveStream(relPath, content); err != nil {
		if errors.Is(err, storage.ErrPathOutsideStore) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid document filename")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	if err := s.repo.SetDocument(ctx, admission.ID, relPath, fileName); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	admission.DocumentPath = &relPath
	admission.DocumentName = &fileName
	return admission, nil
}

// DocumentURL returns a signed, time-limited token for downloading the
// admission's stored document.
func (s *AdmissionService) DocumentURL(ctx context.Context, id string) (string, error) {
	admission, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if admission.DocumentPath == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "admission has no document")
	}
	token, _, err := s.signer.Generate(admission.ID, *admission.DocumentPath)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign document url")
	}
	return token, nil
}

// OpenDocument resolves a signed token and opens the underlying file.
func (s *AdmissionService) OpenDocument(ctx context.Context, token string) (io.ReadCloser, string, error) {
	id, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired document token")
	}
	admission, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if admission.DocumentPath == nil || *admission.DocumentPath != relPath {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	reader, err := s.docs.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	name := filepath.Base(relPath)
	if admission.DocumentName != nil {
		name = *admission.DocumentName
	}
	return reader, name, nil
}

// OfferLetter renders the admission offer letter PDF. Only APPROVED and
// ENROLLED admissions have an offer to print.
func (s *AdmissionService) OfferLetter(ctx context.Context, id string) ([]byte, error) {
	admission, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if admission.Status != models.AdmissionStatusApproved && admission.Status != models.AdmissionStatusEnrolled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("offer letter unavailable for status %s", admission.Status))
	}

	letter := export.Letter{
		Heading:    "Offer of Admission",
		Subheading: fmt.Sprintf("Application %s", admission.ID),
		Paragraphs: []string{
			fmt.Sprintf("Dear %s,", admission.ApplicantName),
			fmt.Sprintf("We are pleased to offer you a place in grade %s. Please review the details below and complete enrollment before the start of the academic year.", admission.GradeApplied),
		},
		Fields: export.Dataset{
			Headers: []string{"Field", "Value"},
			Rows: []map[string]string{
				{"Field": "Applicant", "Value": admission.ApplicantName},
				{"Field": "Grade", "Value": admission.GradeApplied},
				{"Field": "Application Date", "Value": admission.ApplicationDate.Format("2 January 2006")},
				{"Field": "Status", "Value": string(admission.Status)},
			},
		},
		Closing: "We look forward to welcoming you.",
	}
	payload, err := export.NewPDFExporter().RenderLetter(letter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render offer letter")
	}
	return payload, nil
}

// StaleScan logs a reminder for every admission sitting PENDING beyond the
// review window. No status is mutated.
func (s *AdmissionService) StaleScan(ctx context.Context, reviewWindow time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-reviewWindow)
	stale, err := s.repo.ListStalePending(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan pending admissions")
	}
	for _, admission := range stale {
		s.logger.Warn("admission pending beyond review window",
			zap.String("admission_id", admission.ID),
			zap.String("applicant", admission.ApplicantName),
			zap.Time("application_date", admission.ApplicationDate),
			zap.Duration("review_window", reviewWindow))
	}
	return len(stale), nil
}

// StatusCounts returns the number of admissions per status.
func (s *AdmissionService) StatusCounts(ctx context.Context) (map[models.AdmissionStatus]int, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count admissions")
	}
	return counts, nil
}

// splitName separates an applicant name into first and last parts. A single
// token becomes the first name with an empty last name.
func splitName(full string) (string, string) {
	parts := strings.Fields(strings.TrimSpace(full))
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func generateTempPassword() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
