package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type mockStudentRepo struct {
	students []models.Student
	nisTaken bool
	created  *models.Student
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	return m.students, len(m.students), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	for i := range m.students {
		if m.students[i].ID == id {
			return &m.students[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByNIS(ctx context.Context, nis, excludeID string) (bool, error) {
	return m.nisTaken, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	m.created = student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	return nil
}

func sampleStudent() models.Student {
	return models.Student{
		ID:            "stu-1",
		NIS:           "20260042",
		FirstName:     "Siti",
		LastName:      "Rahayu",
		Gender:        "FEMALE",
		BirthDate:     time.Date(2011, 3, 14, 0, 0, 0, 0, time.UTC),
		Grade:         "10",
		GuardianName:  "Budi Rahayu",
		GuardianPhone: "081234567891",
		Email:         "siti@example.com",
		Phone:         "081234567890",
		Address:       "Jl. Merdeka 1",
		Active:        true,
	}
}

func TestStudentServiceCreateDuplicateNIS(t *testing.T) {
	repo := &mockStudentRepo{nisTaken: true}
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		NIS:           "20260042",
		FirstName:     "Siti",
		Gender:        "FEMALE",
		BirthDate:     time.Date(2011, 3, 14, 0, 0, 0, 0, time.UTC),
		Grade:         "10",
		GuardianName:  "Budi",
		GuardianPhone: "081234567891",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceExportCSV(t *testing.T) {
	repo := &mockStudentRepo{students: []models.Student{sampleStudent()}}
	svc := NewStudentService(repo, nil, nil)

	payload, err := svc.ExportCSV(context.Background(), models.StudentFilter{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "NIS,Name,Gender,Birth Date,Grade,Guardian,Guardian Phone,Email,Phone,Active", lines[0])

	fields := strings.Split(lines[1], ",")
	require.Len(t, fields, 10)
	assert.Equal(t, "20260042", fields[0])
	assert.Equal(t, "Siti Rahayu", fields[1])
	assert.Equal(t, "2011-03-14", fields[3])
	assert.Equal(t, "yes", fields[9])
}

func TestStudentServiceExportCSVInactiveFlag(t *testing.T) {
	student := sampleStudent()
	student.Active = false
	repo := &mockStudentRepo{students: []models.Student{student}}
	svc := NewStudentService(repo, nil, nil)

	payload, err := svc.ExportCSV(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(string(payload)), ",no"))
}
