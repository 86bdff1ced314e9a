package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
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
	"github.com/noah-isme/ttapp-api/pkg/middleware/requestid"
	"github.com/noah-isme/ttapp-api/pkg/telemetry"
)

const timetableTracerName = "github.com/noah-isme/ttapp-api/internal/service/timetable"

type weekBuilder interface {
	Generate(roster timetable.Roster) ([]models.Slot, *timetable.Report, error)
}

// TimetableServiceConfig governs generation runs.
type TimetableServiceConfig struct {
	LockKey int64
	Timeout time.Duration
}

// TimetableService rebuilds and serves the weekly timetable.
type TimetableService struct {
	tx        txProvider
	classes   classLister
	subjects  subjectLister
	teachers  teacherReader
	slots     slotStore
	builder   weekBuilder
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	tracer    trace.Tracer
	cfg       TimetableServiceConfig
	now       func() time.Time
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	tx txProvider,
	classes classLister,
	subjects subjectLister,
	teachers teacherReader,
	slots slotStore,
	builder weekBuilder,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = timetable.NewGenerator(nil)
	}
	return &TimetableService{
		tx:        tx,
		classes:   classes,
		subjects:  subjects,
		teachers:  teachers,
		slots:     slots,
		builder:   builder,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		tracer:    telemetry.Tracer(timetableTracerName),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate rebuilds the whole week. Unless DryRun is set the stored week is replaced atomically.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "timetable.generate", trace.WithAttributes(attribute.Bool("timetable.dry_run", req.DryRun)))
	defer span.End()

	log := s.logger.With(zap.String("request_id", requestid.FromContext(ctx)))
	start := time.Now()
	resp, err := s.generate(ctx, req)
	if err != nil {
		s.metrics.ObserveGeneration(GenerationStatusFailed, time.Since(start), nil)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("timetable generation failed", zap.Bool("dry_run", req.DryRun), zap.Error(err))
		return nil, err
	}

	status := GenerationStatusCommitted
	if req.DryRun {
		status = GenerationStatusDryRun
	}
	s.metrics.ObserveGeneration(status, time.Since(start), resp.Report)
	span.SetAttributes(
		attribute.Int("timetable.slots", resp.Report.SlotCount),
		attribute.Int("timetable.unmet", resp.Report.UnmetCount()),
	)
	log.Info("timetable generated",
		zap.Bool("dry_run", req.DryRun),
		zap.Int("slots", resp.Report.SlotCount),
		zap.Int("classes_scheduled", resp.Report.ClassesScheduled),
		zap.Int("classes_skipped", resp.Report.ClassesSkipped),
		zap.Int("unmet", resp.Report.UnmetCount()),
	)

	if resp.Committed {
		// Cached suggestions were computed against the previous week.
		invalidateSubstitutions(ctx, s.cache, "")
	}
	return resp, nil
}

func (s *TimetableService) generate(ctx context.Context, req dto.GenerateTimetableRequest) (resp *dto.GenerateTimetableResponse, err error) {
	opts := &sql.TxOptions{}
	if req.DryRun {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.tx.BeginTxx(ctx, opts)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if !req.DryRun {
		if err = s.slots.LockGeneration(ctx, tx, s.cfg.LockKey); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generation lock")
			return nil, err
		}
	}

	classes, err := s.classes.ListAll(ctx, tx)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
		return nil, err
	}
	subjects, err := s.subjects.ListAll(ctx, tx)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
		return nil, err
	}
	teachers, err := s.teachers.ListWithSubjects(ctx, tx)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
		return nil, err
	}

	slots, report, err := s.builder.Generate(timetable.Roster{Classes: classes, Subjects: subjects, Teachers: teachers})
	if err != nil {
		var occupied *timetable.AlreadyOccupiedError
		if errors.As(err, &occupied) {
			err = appErrors.Wrap(err, appErrors.ErrOccupancyViolation.Code, appErrors.ErrOccupancyViolation.Status, appErrors.ErrOccupancyViolation.Message)
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate timetable")
		return nil, err
	}

	if !req.DryRun {
		if err = s.slots.ReplaceAll(ctx, tx, slots); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store timetable")
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable")
		return nil, err
	}

	return &dto.GenerateTimetableResponse{
		Slots:       slots,
		Report:      report,
		Committed:   !req.DryRun,
		GeneratedAt: s.now().UTC(),
	}, nil
}

// List returns the stored week, optionally narrowed to a class or a day.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) ([]models.Slot, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	slots, err := s.slots.List(ctx, nil, models.SlotFilter{ClassID: query.ClassID, DayOfWeek: query.Day})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return slots, nil
}

// TeacherTimetable lists the slots a teacher holds on the weekday of the given date.
func (s *TimetableService) TeacherTimetable(ctx context.Context, query dto.TeacherTimetableQuery) (*dto.TeacherTimetableResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher timetable query")
	}
	date, err := time.Parse(timetable.DateLayout, query.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date")
	}

	if _, err := s.teachers.FindByID(ctx, query.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	resp := &dto.TeacherTimetableResponse{
		TeacherID: query.TeacherID,
		Date:      date.Format(timetable.DateLayout),
		Slots:     []models.Slot{},
	}
	day, ok := timetable.WeekdayIndex(date)
	if !ok {
		noSchool := timetable.NoSchoolResult(date)
		resp.NoSchool = true
		resp.Message = noSchool.Message
		return resp, nil
	}
	resp.DayOfWeek = &day

	slots, err := s.slots.List(ctx, nil, models.SlotFilter{TeacherID: query.TeacherID, DayOfWeek: &day})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher timetable")
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Period < slots[j].Period })
	if len(slots) > 0 {
		resp.Slots = slots
	}
	return resp, nil
}
