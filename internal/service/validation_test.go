package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateRecordDate(t *testing.T) {
	now := time.Now().UTC()

	assert.NoError(t, ValidateRecordDate(now, 30))
	assert.NoError(t, ValidateRecordDate(now.AddDate(0, 0, -29), 30))
	assert.NoError(t, ValidateRecordDate(now.AddDate(0, 0, -30), 30))

	assert.Error(t, ValidateRecordDate(now.AddDate(0, 0, 1), 30))
	assert.Error(t, ValidateRecordDate(now.AddDate(0, 0, -31), 30))
}

func TestValidateRecordDateDefaultWindow(t *testing.T) {
	now := time.Now().UTC()

	assert.NoError(t, ValidateRecordDate(now.AddDate(0, 0, -DefaultBackfillWindowDays), 0))
	assert.Error(t, ValidateRecordDate(now.AddDate(0, 0, -DefaultBackfillWindowDays-1), 0))
}

func TestValidateTimeOrdering(t *testing.T) {
	start := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	before := start.Add(-time.Hour)

	assert.NoError(t, ValidateTimeOrdering(nil, nil))
	assert.NoError(t, ValidateTimeOrdering(&start, nil))
	assert.NoError(t, ValidateTimeOrdering(&start, &end))
	assert.NoError(t, ValidateTimeOrdering(&start, &start))

	assert.Error(t, ValidateTimeOrdering(nil, &end))
	assert.Error(t, ValidateTimeOrdering(&start, &before))
}

func TestValidateBatchSize(t *testing.T) {
	assert.NoError(t, ValidateBatchSize(1, 100))
	assert.NoError(t, ValidateBatchSize(100, 100))

	assert.Error(t, ValidateBatchSize(0, 100))
	assert.Error(t, ValidateBatchSize(101, 100))

	assert.NoError(t, ValidateBatchSize(DefaultMaxBatchSize, 0))
	assert.Error(t, ValidateBatchSize(DefaultMaxBatchSize+1, 0))
}
