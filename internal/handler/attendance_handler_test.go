package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/internal/service"
	"github.com/sekolahku/sims-api/pkg/config"
	"github.com/sekolahku/sims-api/pkg/response"
)

type stubAttendanceRepo struct {
	written int
}

func (s *stubAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (s *stubAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	s.written++
	return record, nil
}

func (s *stubAttendanceRepo) BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error) {
	s.written += len(records)
	return nil, nil
}

func (s *stubAttendanceRepo) StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	return &models.AttendanceSummary{StudentID: studentID}, nil
}

type stubAttendanceStudents struct{}

func (s *stubAttendanceStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, Active: true}, nil
}

func newAttendanceTestHandler(repo *stubAttendanceRepo) *AttendanceHandler {
	svc := service.NewAttendanceService(repo, &stubAttendanceStudents{}, config.AttendanceConfig{BackfillWindowDays: 30, MaxBatchSize: 100}, nil, nil)
	return NewAttendanceHandler(svc)
}

func TestAttendanceHandlerBulkMark(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubAttendanceRepo{}
	handler := newAttendanceTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{
		"date": time.Now().UTC().Format(time.RFC3339),
		"entries": []gin.H{
			{"student_id": "s1", "status": "PRESENT"},
			{"student_id": "s2", "status": "SICK"},
		},
	})
	req, _ := http.NewRequest(http.MethodPost, "/attendance/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.BulkMark(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, repo.written)
}

func TestAttendanceHandlerBulkMarkEmptyBatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAttendanceTestHandler(&stubAttendanceRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{
		"date":    time.Now().UTC().Format(time.RFC3339),
		"entries": []gin.H{},
	})
	req, _ := http.NewRequest(http.MethodPost, "/attendance/bulk", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.BulkMark(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestAttendanceHandlerBulkMarkInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAttendanceTestHandler(&stubAttendanceRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/attendance/bulk", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.BulkMark(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerMark(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubAttendanceRepo{}
	handler := newAttendanceTestHandler(repo)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{
		"student_id": "s1",
		"date":       time.Now().UTC().Format(time.RFC3339),
		"status":     "PRESENT",
	})
	req, _ := http.NewRequest(http.MethodPost, "/attendance", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Mark(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, repo.written)
}
