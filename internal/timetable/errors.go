package timetable

import (
	"fmt"
	"strings"
)

// UnknownGradeError is returned when no rule exists for a grade.
type UnknownGradeError struct {
	ClassID string `json:"classId,omitempty"`
	Grade   int    `json:"grade"`
}

func (e *UnknownGradeError) Error() string {
	if e.ClassID == "" {
		return fmt.Sprintf("no timetable rule for grade %d", e.Grade)
	}
	return fmt.Sprintf("class %s: no timetable rule for grade %d", e.ClassID, e.Grade)
}

// MissingSubjectsError records a class whose subject pool could not satisfy its rule.
type MissingSubjectsError struct {
	ClassID    string   `json:"classId"`
	Count      int      `json:"count"`
	Required   int      `json:"required"`
	Available  int      `json:"available"`
	Unresolved []string `json:"unresolvedSubjects,omitempty"`
}

func (e *MissingSubjectsError) Error() string {
	if len(e.Unresolved) > 0 {
		return fmt.Sprintf("class %s: %d subject(s) missing, rule subjects not in roster: %s", e.ClassID, e.Count, strings.Join(e.Unresolved, ", "))
	}
	return fmt.Sprintf("class %s: %d subject(s) missing from the pool (need %d, have %d)", e.ClassID, e.Count, e.Required, e.Available)
}

// NoTeacherAvailableError records a cell that fell back to the placeholder teacher.
type NoTeacherAvailableError struct {
	ClassID   string `json:"classId"`
	Day       int    `json:"day"`
	Period    int    `json:"period"`
	SubjectID string `json:"subjectId"`
}

func (e *NoTeacherAvailableError) Error() string {
	return fmt.Sprintf("class %s: no free qualified teacher for subject %s on %s period %d", e.ClassID, e.SubjectID, DayName(e.Day), e.Period)
}

// AlreadyOccupiedError signals a double booking attempt. It indicates a logic defect.
type AlreadyOccupiedError struct {
	TeacherID string `json:"teacherId"`
	Day       int    `json:"day"`
	Period    int    `json:"period"`
}

func (e *AlreadyOccupiedError) Error() string {
	return fmt.Sprintf("teacher %s already occupied on %s period %d", e.TeacherID, DayName(e.Day), e.Period)
}

// Reasons a class teacher could not take the anchor period.
const (
	AnchorTeacherNotFound    = "CLASS_TEACHER_NOT_FOUND"
	AnchorTeacherLeisure     = "CLASS_TEACHER_LEISURE"
	AnchorTeacherUnqualified = "CLASS_TEACHER_UNQUALIFIED"
	AnchorTeacherOccupied    = "CLASS_TEACHER_OCCUPIED"
)

// ClassTeacherAnchorIssue explains why a class teacher was not placed on the anchor period.
type ClassTeacherAnchorIssue struct {
	ClassID   string `json:"classId"`
	TeacherID string `json:"teacherId"`
	Reason    string `json:"reason"`
}

func (e *ClassTeacherAnchorIssue) Error() string {
	return fmt.Sprintf("class %s: class teacher %s not placed on %s period 1 (%s)", e.ClassID, e.TeacherID, DayName(AnchorWeekday), e.Reason)
}
