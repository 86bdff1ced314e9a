package dto

// SubstitutionQuery selects the date to resolve.
type SubstitutionQuery struct {
	Date string `form:"date" validate:"required,datetime=2006-01-02"`
}

// RecordAbsenceRequest records a teacher absence for one day.
type RecordAbsenceRequest struct {
	TeacherID string `json:"teacherId" validate:"required,max=64"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// ConfirmSubstitutionRequest assigns the covering teacher for an absence.
type ConfirmSubstitutionRequest struct {
	SubstituteTeacherID string `json:"substituteTeacherId" validate:"required,max=64"`
}
