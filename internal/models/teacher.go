package models

import "time"

// Teacher represents an instructor record together with its subject qualifications.
type Teacher struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	IsClassTeacher bool      `db:"is_class_teacher" json:"is_class_teacher"`
	IsLeisure      bool      `db:"is_leisure" json:"is_leisure"`
	SubjectIDs     []string  `db:"-" json:"subject_ids"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherSubject links a teacher to a subject they are qualified to teach.
type TeacherSubject struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}
