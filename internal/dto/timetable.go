package dto

import (
	"time"

	"github.com/noah-isme/ttapp-api/internal/models"
	"github.com/noah-isme/ttapp-api/internal/timetable"
)

// GenerateTimetableRequest triggers a full-week rebuild.
type GenerateTimetableRequest struct {
	// DryRun computes the week without replacing stored slots.
	DryRun bool `json:"dryRun"`
}

// GenerateTimetableResponse carries the generated week and its report.
type GenerateTimetableResponse struct {
	Slots       []models.Slot     `json:"slots"`
	Report      *timetable.Report `json:"report"`
	Committed   bool              `json:"committed"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// TimetableQuery filters the stored week.
type TimetableQuery struct {
	ClassID string `form:"classId" validate:"omitempty,max=64"`
	Day     *int   `form:"day" validate:"omitempty,min=0,max=4"`
}

// TeacherTimetableQuery selects a teacher's day.
type TeacherTimetableQuery struct {
	TeacherID string `validate:"required"`
	Date      string `form:"date" validate:"required,datetime=2006-01-02"`
}

// TeacherTimetableResponse lists a teacher's slots on a date.
type TeacherTimetableResponse struct {
	TeacherID string        `json:"teacherId"`
	Date      string        `json:"date"`
	DayOfWeek *int          `json:"dayOfWeek"`
	NoSchool  bool          `json:"noSchool"`
	Message   string        `json:"message,omitempty"`
	Slots     []models.Slot `json:"slots"`
}

// GenerationJobStatus enumerates queued generation states.
type GenerationJobStatus string

const (
	GenerationJobQueued    GenerationJobStatus = "QUEUED"
	GenerationJobRunning   GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed    GenerationJobStatus = "FAILED"
)

// GenerationJobResponse describes a queued generation.
type GenerationJobResponse struct {
	JobID      string                     `json:"jobId"`
	Status     GenerationJobStatus        `json:"status"`
	DryRun     bool                       `json:"dryRun"`
	Attempts   int                        `json:"attempts"`
	EnqueuedAt time.Time                  `json:"enqueuedAt"`
	StartedAt  *time.Time                 `json:"startedAt,omitempty"`
	FinishedAt *time.Time                 `json:"finishedAt,omitempty"`
	Error      string                     `json:"error,omitempty"`
	Result     *GenerateTimetableResponse `json:"result,omitempty"`
}
