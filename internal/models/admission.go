package models

import "time"

// AdmissionStatus represents the lifecycle state of an admission application.
type AdmissionStatus string

const (
	AdmissionStatusPending     AdmissionStatus = "PENDING"
	AdmissionStatusUnderReview AdmissionStatus = "UNDER_REVIEW"
	AdmissionStatusApproved    AdmissionStatus = "APPROVED"
	AdmissionStatusRejected    AdmissionStatus = "REJECTED"
	AdmissionStatusWaitlisted  AdmissionStatus = "WAITLISTED"
	AdmissionStatusCancelled   AdmissionStatus = "CANCELLED"
	AdmissionStatusEnrolled    AdmissionStatus = "ENROLLED"
)

// Valid returns true when the status is a supported value.
func (s AdmissionStatus) Valid() bool {
	switch s {
	case AdmissionStatusPending, AdmissionStatusUnderReview, AdmissionStatusApproved,
		AdmissionStatusRejected, AdmissionStatusWaitlisted, AdmissionStatusCancelled,
		AdmissionStatusEnrolled:
		return true
	default:
		return false
	}
}

// Admission represents one applicant's request for enrollment. Applications
// are never hard-deleted; the record is retained through its whole lifecycle
// for audit. Version backs optimistic concurrency control on updates.
type Admission struct {
	ID              string          `db:"id" json:"id"`
	ApplicationDate time.Time       `db:"application_date" json:"application_date"`
	ApplicantName   string          `db:"applicant_name" json:"applicant_name"`
	BirthDate       time.Time       `db:"birth_date" json:"birth_date"`
	Gender          string          `db:"gender" json:"gender"`
	Email           string          `db:"email" json:"email"`
	Phone           string          `db:"phone" json:"phone"`
	Address         string          `db:"address" json:"address"`
	GuardianName    string          `db:"guardian_name" json:"guardian_name"`
	GuardianPhone   string          `db:"guardian_phone" json:"guardian_phone"`
	GradeApplied    string          `db:"grade_applied" json:"grade_applied"`
	PreviousSchool  *string         `db:"previous_school" json:"previous_school,omitempty"`
	MedicalNotes    *string         `db:"medical_notes" json:"medical_notes,omitempty"`
	DocumentPath    *string         `db:"document_path" json:"document_path,omitempty"`
	DocumentName    *string         `db:"document_name" json:"document_name,omitempty"`
	Status          AdmissionStatus `db:"status" json:"status"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	StudentID       *string         `db:"student_id" json:"student_id,omitempty"`
	Version         int             `db:"version" json:"version"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AdmissionFilter encapsulates allowed search parameters for listing admissions.
type AdmissionFilter struct {
	Status       AdmissionStatus
	Search       string
	GradeApplied string
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
