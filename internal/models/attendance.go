package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent  AttendanceStatus = "ABSENT"
	AttendanceStatusSick    AttendanceStatus = "SICK"
	AttendanceStatusPermit  AttendanceStatus = "PERMIT"
	AttendanceStatusLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusSick,
		AttendanceStatusPermit, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// Attendance represents a single daily attendance row, unique per
// student and date.
type Attendance struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecord extends the model with student metadata.
type AttendanceRecord struct {
	Attendance
	StudentName string `db:"student_name" json:"student_name"`
	StudentNIS  string `db:"student_nis" json:"student_nis"`
	Grade       string `db:"grade" json:"grade"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	StudentID string
	Grade     string
	Status    *AttendanceStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// AttendanceSummary aggregates per-student counts over a date range.
type AttendanceSummary struct {
	StudentID string `db:"student_id" json:"student_id"`
	Present   int    `db:"present" json:"present"`
	Absent    int    `db:"absent" json:"absent"`
	Sick      int    `db:"sick" json:"sick"`
	Permit    int    `db:"permit" json:"permit"`
	Late      int    `db:"late" json:"late"`
	Total     int    `db:"total" json:"total"`
}

// AttendanceBulkConflict describes a failed row in a partial bulk write.
type AttendanceBulkConflict struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}
