package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/ttapp-api/internal/dto"
	"github.com/noah-isme/ttapp-api/internal/models"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
	"github.com/noah-isme/ttapp-api/pkg/telemetry"
)

const substitutionTracerName = "github.com/noah-isme/ttapp-api/internal/service/substitution"

// SubstitutionService serves advisory substitute suggestions for a date.
type SubstitutionService struct {
	tx        txProvider
	absences  absenceLister
	teachers  teacherReader
	subjects  subjectLister
	slots     slotLister
	resolver  *timetable.Resolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	cacheTTL  time.Duration
}

// NewSubstitutionService wires the resolver to its storage.
func NewSubstitutionService(
	tx txProvider,
	absences absenceLister,
	teachers teacherReader,
	subjects subjectLister,
	slots slotLister,
	resolver *timetable.Resolver,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cacheTTL time.Duration,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL > versionTTL {
		cacheTTL = versionTTL
	}
	if resolver == nil {
		resolver = timetable.NewResolver(nil, timetable.DefaultSubstitutionPolicy())
	}
	return &SubstitutionService{
		tx:        tx,
		absences:  absences,
		teachers:  teachers,
		subjects:  subjects,
		slots:     slots,
		resolver:  resolver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		tracer:    telemetry.Tracer(substitutionTracerName),
		cacheTTL:  cacheTTL,
	}
}

// Suggest returns candidate substitutes for every slot vacated on the date.
// The boolean reports whether the result was served from cache.
func (s *SubstitutionService) Suggest(ctx context.Context, query dto.SubstitutionQuery) (*timetable.SubstitutionResult, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitution query")
	}
	date, err := time.Parse(timetable.DateLayout, query.Date)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	ctx, span := s.tracer.Start(ctx, "substitution.suggest", trace.WithAttributes(attribute.String("substitution.date", query.Date)))
	defer span.End()

	day, ok := timetable.WeekdayIndex(date)
	if !ok {
		s.metrics.ObserveSuggestion(SuggestionOutcomeNoSchool)
		span.SetAttributes(attribute.Bool("substitution.no_school", true))
		return timetable.NoSchoolResult(date), false, nil
	}

	key, cacheable := substitutionCacheKey(ctx, s.cache, query.Date)
	if cacheable {
		var cached timetable.SubstitutionResult
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			s.metrics.ObserveSuggestion(SuggestionOutcomeCached)
			span.SetAttributes(attribute.Bool("substitution.cache_hit", true))
			return &cached, true, nil
		}
	}

	input, err := s.snapshot(ctx, date, day)
	if err != nil {
		s.metrics.ObserveSuggestion(SuggestionOutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	result := s.resolver.Suggest(*input)
	s.metrics.ObserveSuggestion(SuggestionOutcomeComputed)
	span.SetAttributes(attribute.Int("substitution.absences", len(result.Absences)))
	s.logger.Debug("substitution suggestions computed", zap.String("date", query.Date), zap.Int("absences", len(result.Absences)))

	if cacheable {
		_ = s.cache.Set(ctx, key, result, s.cacheTTL)
	}
	return result, false, nil
}

func (s *SubstitutionService) snapshot(ctx context.Context, date time.Time, day int) (input *timetable.SubstitutionInput, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	absences, err := s.absences.ListByDate(ctx, tx, date)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
		return nil, err
	}
	var (
		teachers []models.Teacher
		subjects []models.Subject
		slots    []models.Slot
	)
	if len(absences) > 0 {
		if teachers, err = s.teachers.ListWithSubjects(ctx, tx); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
			return nil, err
		}
		if subjects, err = s.subjects.ListAll(ctx, tx); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
			return nil, err
		}
		if slots, err = s.slots.List(ctx, tx, models.SlotFilter{DayOfWeek: &day}); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slots")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close snapshot")
		return nil, err
	}
	return &timetable.SubstitutionInput{
		Date:     date,
		Absences: absences,
		Teachers: teachers,
		Subjects: subjects,
		Slots:    slots,
	}, nil
}
