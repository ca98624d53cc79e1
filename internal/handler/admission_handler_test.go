package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/middleware"
	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/internal/service"
	"github.com/sekolahku/sims-api/pkg/response"
)

type stubTxRunner struct{}

func (s *stubTxRunner) WithinTx(ctx context.Context, fn func(tx sqlx.ExtContext) error) error {
	return fn(nil)
}

type stubAdmissionRepo struct {
	admissions map[string]models.Admission
}

func (s *stubAdmissionRepo) List(ctx context.Context, filter models.AdmissionFilter) ([]models.Admission, int, error) {
	return nil, 0, nil
}

func (s *stubAdmissionRepo) FindByID(ctx context.Context, id string) (*models.Admission, error) {
	if a, ok := s.admissions[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubAdmissionRepo) FindByIDTx(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Admission, error) {
	return s.FindByID(ctx, id)
}

func (s *stubAdmissionRepo) Create(ctx context.Context, admission *models.Admission) error {
	return nil
}

func (s *stubAdmissionRepo) UpdateTx(ctx context.Context, exec sqlx.ExtContext, admission *models.Admission) error {
	admission.Version++
	s.admissions[admission.ID] = *admission
	return nil
}

func (s *stubAdmissionRepo) SetDocument(ctx context.Context, id, path, name string) error {
	return nil
}

func (s *stubAdmissionRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]models.Admission, error) {
	return nil, nil
}

func (s *stubAdmissionRepo) CountByStatus(ctx context.Context) (map[models.AdmissionStatus]int, error) {
	return map[models.AdmissionStatus]int{models.AdmissionStatusPending: 1}, nil
}

type stubStudentRepo struct{}

func (s *stubStudentRepo) CreateTx(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	return nil
}

func (s *stubStudentRepo) NextSequence(ctx context.Context, exec sqlx.ExtContext, year int) (int, error) {
	return 1, nil
}

type stubUserRepo struct{}

func (s *stubUserRepo) CreateTx(ctx context.Context, exec sqlx.ExtContext, user *models.User) error {
	return nil
}

func newAdmissionTestHandler(repo *stubAdmissionRepo) *AdmissionHandler {
	svc := service.NewAdmissionService(repo, &stubStudentRepo{}, &stubUserRepo{}, &stubTxRunner{}, nil, nil, nil, nil, nil, nil)
	return NewAdmissionHandler(svc, 0)
}

func TestAdmissionHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubAdmissionRepo{admissions: map[string]models.Admission{
		"adm-1": {ID: "adm-1", Status: models.AdmissionStatusPending, Version: 1},
	}}
	handler := newAdmissionTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"status": "under_review", "version": 1})
	req, _ := http.NewRequest(http.MethodPatch, "/admissions/adm-1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AdmissionStatusUnderReview, repo.admissions["adm-1"].Status)
}

func TestAdmissionHandlerUpdateStatusStaleVersion(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubAdmissionRepo{admissions: map[string]models.Admission{
		"adm-1": {ID: "adm-1", Status: models.AdmissionStatusPending, Version: 2},
	}}
	handler := newAdmissionTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"status": "APPROVED", "version": 1})
	req, _ := http.NewRequest(http.MethodPatch, "/admissions/adm-1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "STALE_RECORD", envelope.Error.Code)
}

func TestAdmissionHandlerUpdateStatusInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAdmissionTestHandler(&stubAdmissionRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/admissions/adm-1/status", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "adm-1"}}

	handler.UpdateStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmissionHandlerStatusCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAdmissionTestHandler(&stubAdmissionRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/admissions/counts", nil)
	c.Request = req

	handler.StatusCounts(c)
	require.Equal(t, http.StatusOK, w.Code)
}
