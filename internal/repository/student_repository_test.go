package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
)

func newStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestStudentRepositoryNextSequence(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO student_sequences (year, counter) VALUES ($1, 1)")).
		WithArgs(2026).
		WillReturnRows(sqlmock.NewRows([]string{"counter"}).AddRow(42))

	seq, err := repo.NextSequence(context.Background(), db, 2026)
	require.NoError(t, err)
	require.Equal(t, 42, seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByNIS(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT 1 FROM students WHERE nis = \\$1").
		WithArgs("20260042").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	exists, err := repo.ExistsByNIS(context.Background(), "20260042", "")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateTx(t *testing.T) {
	db, mock, cleanup := newStudentRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		NIS:       "20260042",
		FirstName: "Siti",
		LastName:  "Rahayu",
		Gender:    "FEMALE",
		BirthDate: time.Date(2011, 3, 14, 0, 0, 0, 0, time.UTC),
		Grade:     "10",
		Active:    true,
	}
	require.NoError(t, repo.CreateTx(context.Background(), db, student))
	require.NotEmpty(t, student.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
