package service

import (
	"fmt"
	"time"

	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

// DefaultBackfillWindowDays bounds how far back attendance may be recorded.
const DefaultBackfillWindowDays = 30

// DefaultMaxBatchSize caps bulk attendance submissions.
const DefaultMaxBatchSize = 100

// ValidateRecordDate rejects dates after today or more than windowDays in the
// past. Both window ends are inclusive and "today" is evaluated in UTC.
func ValidateRecordDate(date time.Time, windowDays int) error {
	if windowDays <= 0 {
		windowDays = DefaultBackfillWindowDays
	}
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	if day.After(today) {
		return appErrors.Clone(appErrors.ErrValidation, "record date cannot be in the future")
	}
	earliest := today.AddDate(0, 0, -windowDays)
	if day.Before(earliest) {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("record date older than %d days", windowDays))
	}
	return nil
}

// ValidateTimeOrdering checks that end does not precede start. An end without
// a start is invalid; a start alone or neither is accepted.
func ValidateTimeOrdering(start, end *time.Time) error {
	if end == nil {
		return nil
	}
	if start == nil {
		return appErrors.Clone(appErrors.ErrValidation, "end time requires a start time")
	}
	if end.Before(*start) {
		return appErrors.Clone(appErrors.ErrValidation, "end time cannot precede start time")
	}
	return nil
}

// ValidateBatchSize rejects batches that are empty or above the cap.
func ValidateBatchSize(n, max int) error {
	if max <= 0 {
		max = DefaultMaxBatchSize
	}
	if n == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "batch is empty")
	}
	if n > max {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("batch size %d exceeds maximum %d", n, max))
	}
	return nil
}
