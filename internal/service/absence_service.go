package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ttapp-api/internal/dto"
	"github.com/noah-isme/ttapp-api/internal/models"
	"github.com/noah-isme/ttapp-api/internal/repository"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
)

// AbsenceService records teacher absences and confirms substitutes.
type AbsenceService struct {
	absences  absenceStore
	teachers  teacherReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAbsenceService constructs the service.
func NewAbsenceService(absences absenceStore, teachers teacherReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AbsenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AbsenceService{absences: absences, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// Record stores a new absence. A teacher can be absent at most once per date.
func (s *AbsenceService) Record(ctx context.Context, req dto.RecordAbsenceRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	date, err := time.Parse(timetable.DateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	if _, err := s.findTeacher(ctx, req.TeacherID); err != nil {
		return nil, err
	}

	exists, err := s.absences.ExistsForTeacherDate(ctx, req.TeacherID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check absence")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "absence already recorded for teacher on this date")
	}

	absence := &models.Absence{TeacherID: req.TeacherID, Date: date}
	if err := s.absences.Create(ctx, absence); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "absence already recorded for teacher on this date")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record absence")
	}

	s.logger.Info("absence recorded", zap.String("absence_id", absence.ID), zap.String("teacher_id", absence.TeacherID), zap.String("date", req.Date))
	invalidateSubstitutions(ctx, s.cache, req.Date)
	return absence, nil
}

// ListByDate returns every absence recorded for the date.
func (s *AbsenceService) ListByDate(ctx context.Context, query dto.SubstitutionQuery) ([]models.Absence, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence query")
	}
	date, err := time.Parse(timetable.DateLayout, query.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}
	absences, err := s.absences.ListByDate(ctx, nil, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list absences")
	}
	if absences == nil {
		absences = []models.Absence{}
	}
	return absences, nil
}

// ConfirmSubstitution assigns the covering teacher. Only recorded absences can be confirmed.
func (s *AbsenceService) ConfirmSubstitution(ctx context.Context, absenceID string, req dto.ConfirmSubstitutionRequest) (*models.Absence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution payload")
	}

	absence, err := s.absences.FindByID(ctx, nil, absenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "absence not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence")
	}
	if absence.IsSubstituted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "absence already substituted")
	}
	if req.SubstituteTeacherID == absence.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "absent teacher cannot substitute themselves")
	}

	substitute, err := s.findTeacher(ctx, req.SubstituteTeacherID)
	if err != nil {
		return nil, err
	}
	if substitute.IsLeisure {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher on leisure cannot substitute")
	}
	absent, err := s.absences.ExistsForTeacherDate(ctx, substitute.ID, absence.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check substitute absence")
	}
	if absent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute is absent on this date")
	}

	if err := s.absences.MarkSubstituted(ctx, nil, absence.ID, substitute.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "absence already substituted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm substitution")
	}

	updated, err := s.absences.FindByID(ctx, nil, absence.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload absence")
	}
	s.logger.Info("substitution confirmed",
		zap.String("absence_id", absence.ID),
		zap.String("teacher_id", absence.TeacherID),
		zap.String("substitute_teacher_id", substitute.ID),
	)
	invalidateSubstitutions(ctx, s.cache, absence.Date.Format(timetable.DateLayout))
	return updated, nil
}

func (s *AbsenceService) findTeacher(ctx context.Context, id string) (*models.Teacher, error) {
	teacher, err := s.teachers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return teacher, nil
}
