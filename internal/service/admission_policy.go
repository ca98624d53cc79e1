package service

import (
	"fmt"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

// TransitionPolicy maps each admission status to the set of statuses it may
// move to. Terminal statuses map to an empty set. The policy is injected into
// AdmissionService so deployments can tighten or relax the workflow without
// touching orchestration code.
type TransitionPolicy map[models.AdmissionStatus][]models.AdmissionStatus

// DefaultTransitionPolicy returns the standard admission workflow.
func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{
		models.AdmissionStatusPending: {
			models.AdmissionStatusUnderReview,
			models.AdmissionStatusApproved,
			models.AdmissionStatusRejected,
			models.AdmissionStatusWaitlisted,
			models.AdmissionStatusCancelled,
		},
		models.AdmissionStatusUnderReview: {
			models.AdmissionStatusApproved,
			models.AdmissionStatusRejected,
			models.AdmissionStatusWaitlisted,
			models.AdmissionStatusCancelled,
		},
		models.AdmissionStatusWaitlisted: {
			models.AdmissionStatusApproved,
			models.AdmissionStatusRejected,
			models.AdmissionStatusCancelled,
		},
		models.AdmissionStatusApproved: {
			models.AdmissionStatusEnrolled,
			models.AdmissionStatusCancelled,
		},
		models.AdmissionStatusRejected:  {},
		models.AdmissionStatusCancelled: {},
		models.AdmissionStatusEnrolled:  {},
	}
}

// Allows reports whether the policy permits moving from one status to another.
func (p TransitionPolicy) Allows(from, to models.AdmissionStatus) bool {
	for _, next := range p[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate checks a requested transition and returns an INVALID_STATE error
// naming the offending pair when the policy forbids it.
func (p TransitionPolicy) Validate(from, to models.AdmissionStatus) error {
	if !to.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown admission status %q", to))
	}
	if !p.Allows(from, to) {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("cannot transition admission from %s to %s", from, to))
	}
	return nil
}
