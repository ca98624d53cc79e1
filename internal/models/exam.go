package models

import "time"

// Exam represents a scheduled assessment for a grade.
type Exam struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Subject   string    `db:"subject" json:"subject"`
	Grade     string    `db:"grade" json:"grade"`
	ExamDate  time.Time `db:"exam_date" json:"exam_date"`
	MaxMarks  int       `db:"max_marks" json:"max_marks"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamResult records one student's marks for an exam.
type ExamResult struct {
	ID        string    `db:"id" json:"id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Marks     int       `db:"marks" json:"marks"`
	Remark    *string   `db:"remark" json:"remark,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ExamResultDetail enriches a result with student and exam context.
type ExamResultDetail struct {
	ExamResult
	StudentName string `db:"student_name" json:"student_name"`
	StudentNIS  string `db:"student_nis" json:"student_nis"`
	ExamName    string `db:"exam_name" json:"exam_name"`
	MaxMarks    int    `db:"max_marks" json:"max_marks"`
}

// ExamFilter provides filters for listing exams.
type ExamFilter struct {
	Grade     string
	Subject   string
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
