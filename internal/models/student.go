package models

import "time"

// Student represents a learner registered in the institution.
type Student struct {
	ID            string    `db:"id" json:"id"`
	NIS           string    `db:"nis" json:"nis"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	Gender        string    `db:"gender" json:"gender"`
	BirthDate     time.Time `db:"birth_date" json:"birth_date"`
	Grade         string    `db:"grade" json:"grade"`
	GuardianName  string    `db:"guardian_name" json:"guardian_name"`
	GuardianPhone string    `db:"guardian_phone" json:"guardian_phone"`
	Email         string    `db:"email" json:"email"`
	Phone         string    `db:"phone" json:"phone"`
	Address       string    `db:"address" json:"address"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins the split name parts for display.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Grade     string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
