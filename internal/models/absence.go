package models

import "time"

// AbsenceStatus is derived from the substituted flag.
type AbsenceStatus string

const (
	AbsenceStatusRecorded    AbsenceStatus = "RECORDED"
	AbsenceStatusSubstituted AbsenceStatus = "SUBSTITUTED"
)

// Absence records a teacher missing a school day.
type Absence struct {
	ID                  string    `db:"id" json:"id"`
	TeacherID           string    `db:"teacher_id" json:"teacher_id"`
	Date                time.Time `db:"absence_date" json:"date"`
	IsSubstituted       bool      `db:"is_substituted" json:"is_substituted"`
	SubstituteTeacherID *string   `db:"substitute_teacher_id" json:"substitute_teacher_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Status returns the lifecycle state of the absence.
func (a Absence) Status() AbsenceStatus {
	if a.IsSubstituted {
		return AbsenceStatusSubstituted
	}
	return AbsenceStatusRecorded
}
