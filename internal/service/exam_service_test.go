package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type mockExamRepo struct {
	exams   map[string]models.Exam
	result  *models.ExamResult
	results []models.ExamResultDetail
}

func (m *mockExamRepo) List(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	return nil, 0, nil
}

func (m *mockExamRepo) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	if e, ok := m.exams[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamRepo) Create(ctx context.Context, exam *models.Exam) error {
	if m.exams == nil {
		m.exams = make(map[string]models.Exam)
	}
	if exam.ID == "" {
		exam.ID = "new-exam"
	}
	m.exams[exam.ID] = *exam
	return nil
}

func (m *mockExamRepo) Update(ctx context.Context, exam *models.Exam) error {
	m.exams[exam.ID] = *exam
	return nil
}

func (m *mockExamRepo) UpsertResult(ctx context.Context, result *models.ExamResult) (*models.ExamResult, error) {
	m.result = result
	return result, nil
}

func (m *mockExamRepo) ListResults(ctx context.Context, examID string) ([]models.ExamResultDetail, error) {
	return m.results, nil
}

func (m *mockExamRepo) ListStudentResults(ctx context.Context, studentID string) ([]models.ExamResultDetail, error) {
	return m.results, nil
}

type mockExamStudents struct{}

func (m *mockExamStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Student{ID: id, Active: true}, nil
}

func mathExam() models.Exam {
	return models.Exam{
		ID:       "exam-1",
		Name:     "Midterm",
		Subject:  "Mathematics",
		Grade:    "10",
		ExamDate: time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC),
		MaxMarks: 100,
	}
}

func TestExamServiceCreate(t *testing.T) {
	repo := &mockExamRepo{}
	svc := NewExamService(repo, &mockExamStudents{}, nil, nil)

	exam, err := svc.Create(context.Background(), CreateExamRequest{
		Name:     "Midterm",
		Subject:  "Mathematics",
		Grade:    "10",
		ExamDate: time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC),
		MaxMarks: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, exam.MaxMarks)
}

func TestExamServiceEnterResult(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]models.Exam{"exam-1": mathExam()}}
	svc := NewExamService(repo, &mockExamStudents{}, nil, nil)

	result, err := svc.EnterResult(context.Background(), "exam-1", EnterResultRequest{
		StudentID: "s1",
		Marks:     87,
	})
	require.NoError(t, err)
	assert.Equal(t, 87, result.Marks)
	assert.NotNil(t, repo.result)
}

func TestExamServiceEnterResultExceedsMaxMarks(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]models.Exam{"exam-1": mathExam()}}
	svc := NewExamService(repo, &mockExamStudents{}, nil, nil)

	_, err := svc.EnterResult(context.Background(), "exam-1", EnterResultRequest{
		StudentID: "s1",
		Marks:     101,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.result)
}

func TestExamServiceEnterResultUnknownStudent(t *testing.T) {
	repo := &mockExamRepo{exams: map[string]models.Exam{"exam-1": mathExam()}}
	svc := NewExamService(repo, &mockExamStudents{}, nil, nil)

	_, err := svc.EnterResult(context.Background(), "exam-1", EnterResultRequest{
		StudentID: "missing",
		Marks:     50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExamServiceEnterResultUnknownExam(t *testing.T) {
	svc := NewExamService(&mockExamRepo{}, &mockExamStudents{}, nil, nil)

	_, err := svc.EnterResult(context.Background(), "missing", EnterResultRequest{
		StudentID: "s1",
		Marks:     50,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
