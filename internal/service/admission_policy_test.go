package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

func TestDefaultTransitionPolicyAllows(t *testing.T) {
	policy := DefaultTransitionPolicy()

	assert.True(t, policy.Allows(models.AdmissionStatusPending, models.AdmissionStatusUnderReview))
	assert.True(t, policy.Allows(models.AdmissionStatusPending, models.AdmissionStatusApproved))
	assert.True(t, policy.Allows(models.AdmissionStatusUnderReview, models.AdmissionStatusWaitlisted))
	assert.True(t, policy.Allows(models.AdmissionStatusWaitlisted, models.AdmissionStatusApproved))
	assert.True(t, policy.Allows(models.AdmissionStatusApproved, models.AdmissionStatusEnrolled))

	assert.False(t, policy.Allows(models.AdmissionStatusWaitlisted, models.AdmissionStatusUnderReview))
	assert.False(t, policy.Allows(models.AdmissionStatusUnderReview, models.AdmissionStatusPending))
	assert.False(t, policy.Allows(models.AdmissionStatusApproved, models.AdmissionStatusRejected))
	assert.False(t, policy.Allows(models.AdmissionStatusPending, models.AdmissionStatusEnrolled))
}

func TestDefaultTransitionPolicyTerminalStates(t *testing.T) {
	policy := DefaultTransitionPolicy()
	terminals := []models.AdmissionStatus{
		models.AdmissionStatusRejected,
		models.AdmissionStatusCancelled,
		models.AdmissionStatusEnrolled,
	}
	all := []models.AdmissionStatus{
		models.AdmissionStatusPending,
		models.AdmissionStatusUnderReview,
		models.AdmissionStatusApproved,
		models.AdmissionStatusRejected,
		models.AdmissionStatusWaitlisted,
		models.AdmissionStatusCancelled,
		models.AdmissionStatusEnrolled,
	}

	for _, from := range terminals {
		for _, to := range all {
			assert.False(t, policy.Allows(from, to), "expected %s -> %s to be rejected", from, to)
		}
	}
}

func TestTransitionPolicyValidate(t *testing.T) {
	policy := DefaultTransitionPolicy()

	require.NoError(t, policy.Validate(models.AdmissionStatusPending, models.AdmissionStatusRejected))

	err := policy.Validate(models.AdmissionStatusRejected, models.AdmissionStatusApproved)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	err = policy.Validate(models.AdmissionStatusPending, models.AdmissionStatus("UNKNOWN"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransitionPolicyCustomGraph(t *testing.T) {
	policy := TransitionPolicy{
		models.AdmissionStatusPending: {models.AdmissionStatusApproved},
	}

	assert.True(t, policy.Allows(models.AdmissionStatusPending, models.AdmissionStatusApproved))
	assert.False(t, policy.Allows(models.AdmissionStatusPending, models.AdmissionStatusRejected))
}
