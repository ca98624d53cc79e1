package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
)

func newConfigurationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func configurationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"})
}

func TestConfigurationRepositoryListAll(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	rows := configurationRows().
		AddRow("academic_year", "2026/2027", models.ConfigurationTypeString, nil, nil, time.Now()).
		AddRow("admission_open", "true", models.ConfigurationTypeBoolean, nil, nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM configurations ORDER BY key ASC").WillReturnRows(rows)

	entries, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "academic_year", entries[0].Key)
	assert.Equal(t, models.ConfigurationTypeBoolean, entries[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM configurations WHERE key = \\$1").
		WithArgs("school_display_name").
		WillReturnError(sql.ErrNoRows)

	entry, err := repo.Get(context.Background(), "school_display_name")
	require.Nil(t, entry)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	actor := "u1"
	entry := &models.Configuration{
		Key:       "fee_grace_days",
		Value:     "5",
		Type:      models.ConfigurationTypeInteger,
		UpdatedBy: &actor,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO configurations")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), entry))
	assert.WithinDuration(t, time.Now().UTC(), entry.UpdatedAt, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}
