package models

import "time"

// Slot is one (class, day, period) cell of the weekly timetable.
// A nil TeacherID marks a cell with no teacher assigned.
type Slot struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	Period    int       `db:"period" json:"period"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasTeacher reports whether a real teacher holds the slot.
func (s Slot) HasTeacher() bool {
	return s.TeacherID != nil && *s.TeacherID != ""
}

// TaughtBy reports whether the given teacher holds the slot.
func (s Slot) TaughtBy(teacherID string) bool {
	return s.HasTeacher() && *s.TeacherID == teacherID
}

// SlotFilter narrows slot listings.
type SlotFilter struct {
	ClassID   string
	TeacherID string
	DayOfWeek *int
}
