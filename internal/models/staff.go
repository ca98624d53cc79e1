package models

import "time"

// Staff represents an employed member of the school.
type Staff struct {
	ID        string    `db:"id" json:"id"`
	NIP       string    `db:"nip" json:"nip"`
	FullName  string    `db:"full_name" json:"full_name"`
	Title     string    `db:"title" json:"title"`
	Subject   *string   `db:"subject" json:"subject,omitempty"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Address   string    `db:"address" json:"address"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StaffFilter captures filtering criteria for listing staff.
type StaffFilter struct {
	Search    string
	Title     string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
