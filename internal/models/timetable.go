package models

import "time"

// Weekday names accepted by the timetable API (school week only).
var TimetableDays = []string{"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY"}

// ValidTimetableDay reports whether day is a supported weekday.
func ValidTimetableDay(day string) bool {
	for _, d := range TimetableDays {
		if d == day {
			return true
		}
	}
	return false
}

// TimetableSlot assigns a subject to a period in a grade's weekly schedule.
// StartTime and EndTime hold clock times in "15:04" form.
type TimetableSlot struct {
	ID        string    `db:"id" json:"id"`
	Grade     string    `db:"grade" json:"grade"`
	Day       string    `db:"day" json:"day"`
	Period    int       `db:"period" json:"period"`
	Subject   string    `db:"subject" json:"subject"`
	StaffID   *string   `db:"staff_id" json:"staff_id,omitempty"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableFilter provides filters for listing slots.
type TimetableFilter struct {
	Grade     string
	Day       string
	StaffID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
