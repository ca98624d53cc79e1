package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	"github.com/sekolahku/sims-api/pkg/config"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type mockAttendanceRepo struct {
	upserted  *models.Attendance
	bulk      []models.Attendance
	atomic    bool
	conflicts []models.AttendanceBulkConflict
	summary   *models.AttendanceSummary
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.Attendance) (*models.Attendance, error) {
	m.upserted = record
	return record, nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.Attendance, atomic bool) ([]models.AttendanceBulkConflict, error) {
	m.bulk = records
	m.atomic = atomic
	return m.conflicts, nil
}

func (m *mockAttendanceRepo) StudentSummary(ctx context.Context, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	return m.summary, nil
}

type mockAttendanceStudents struct {
	known map[string]bool
}

func (m *mockAttendanceStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.known[id] {
		return &models.Student{ID: id, Active: true}, nil
	}
	return nil, sql.ErrNoRows
}

func newAttendanceService(repo *mockAttendanceRepo, students *mockAttendanceStudents) *AttendanceService {
	cfg := config.AttendanceConfig{BackfillWindowDays: 30, MaxBatchSize: 3}
	return NewAttendanceService(repo, students, cfg, nil, nil)
}

func TestAttendanceServiceMark(t *testing.T) {
	repo := &mockAttendanceRepo{}
	students := &mockAttendanceStudents{known: map[string]bool{"s1": true}}
	svc := newAttendanceService(repo, students)

	record, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1",
		Date:      time.Now().UTC(),
		Status:    models.AttendanceStatusPresent,
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", record.StudentID)
	assert.NotNil(t, repo.upserted)
}

func TestAttendanceServiceMarkUnknownStudent(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, &mockAttendanceStudents{})

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "ghost",
		Date:      time.Now().UTC(),
		Status:    models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceMarkOutsideWindow(t *testing.T) {
	students := &mockAttendanceStudents{known: map[string]bool{"s1": true}}
	svc := newAttendanceService(&mockAttendanceRepo{}, students)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1",
		Date:      time.Now().UTC().AddDate(0, 0, -31),
		Status:    models.AttendanceStatusPresent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMarkDefaultsToAtomic(t *testing.T) {
	repo := &mockAttendanceRepo{}
	students := &mockAttendanceStudents{known: map[string]bool{"s1": true, "s2": true}}
	svc := newAttendanceService(repo, students)

	result, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		Date: time.Now().UTC(),
		Entries: []BulkAttendanceEntry{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
			{StudentID: "s2", Status: models.AttendanceStatusSick},
		},
	})
	require.NoError(t, err)
	assert.True(t, repo.atomic)
	assert.Equal(t, 2, result.Written)
	assert.Empty(t, result.Conflicts)
}

func TestAttendanceServiceBulkMarkPartialReportsConflicts(t *testing.T) {
	repo := &mockAttendanceRepo{conflicts: []models.AttendanceBulkConflict{{StudentID: "s2"}}}
	students := &mockAttendanceStudents{known: map[string]bool{"s1": true, "s2": true}}
	svc := newAttendanceService(repo, students)

	result, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		Date: time.Now().UTC(),
		Mode: models.BulkModePartialOnError,
		Entries: []BulkAttendanceEntry{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
			{StudentID: "s2", Status: models.AttendanceStatusPresent},
		},
	})
	require.NoError(t, err)
	assert.False(t, repo.atomic)
	assert.Equal(t, 1, result.Written)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "s2", result.Conflicts[0].StudentID)
}

func TestAttendanceServiceBulkMarkOverCap(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, &mockAttendanceStudents{})

	entries := make([]BulkAttendanceEntry, 4)
	for i := range entries {
		entries[i] = BulkAttendanceEntry{StudentID: string(rune('a' + i)), Status: models.AttendanceStatusPresent}
	}
	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{Date: time.Now().UTC(), Entries: entries})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceBulkMarkDuplicateStudent(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, &mockAttendanceStudents{})

	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		Date: time.Now().UTC(),
		Entries: []BulkAttendanceEntry{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
			{StudentID: "s1", Status: models.AttendanceStatusAbsent},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate entry")
}

func TestAttendanceServiceBulkMarkUnknownMode(t *testing.T) {
	svc := newAttendanceService(&mockAttendanceRepo{}, &mockAttendanceStudents{})

	_, err := svc.BulkMark(context.Background(), BulkMarkAttendanceRequest{
		Date: time.Now().UTC(),
		Mode: models.BulkOperationMode("bestEffort"),
		Entries: []BulkAttendanceEntry{
			{StudentID: "s1", Status: models.AttendanceStatusPresent},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bulk mode")
}

func TestAttendanceServiceSummaryRangeOrder(t *testing.T) {
	students := &mockAttendanceStudents{known: map[string]bool{"s1": true}}
	svc := newAttendanceService(&mockAttendanceRepo{summary: &models.AttendanceSummary{}}, students)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, err := svc.Summary(context.Background(), "s1", &from, &to)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Summary(context.Background(), "s1", &to, &from)
	assert.NoError(t, err)
}
