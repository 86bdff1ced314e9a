package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ttapp-api/internal/dto"
	"github.com/noah-isme/ttapp-api/internal/models"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
)

func TestTimetableServiceGenerateCommits(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	slots := &slotStoreStub{}
	cacheRepo := newCacheRepoStub()
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := newTimetableServiceFixture(provider, slots, nil, cache)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.NoError(t, err)
	assert.True(t, resp.Committed)
	assert.Len(t, resp.Slots, 40)
	assert.Equal(t, 0, resp.Report.UnmetCount())
	assert.Equal(t, 1, resp.Report.ClassesScheduled)

	assert.True(t, slots.locked)
	assert.Equal(t, int64(42), slots.lockKey)
	assert.Len(t, slots.replaced, 40)
	assert.Equal(t, []string{"substitutions:*"}, cacheRepo.deleted)
	assert.Equal(t, []string{"substitution-versions:week"}, cacheRepo.bumped)

	monday := resp.Slots[0]
	require.NotNil(t, monday.TeacherID)
	assert.Equal(t, "t1", *monday.TeacherID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateDryRunLeavesStoredWeek(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	slots := &slotStoreStub{}
	svc := newTimetableServiceFixture(provider, slots, nil, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	resp, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{DryRun: true})
	require.NoError(t, err)
	assert.False(t, resp.Committed)
	assert.Len(t, resp.Slots, 40)
	assert.False(t, slots.locked)
	assert.Nil(t, slots.replaced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateOccupancyViolationRollsBack(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	slots := &slotStoreStub{}
	builder := weekBuilderStub{err: &timetable.AlreadyOccupiedError{TeacherID: "t1", Day: 0, Period: 1}}
	svc := newTimetableServiceFixture(provider, slots, builder, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOccupancyViolation.Code, appErr.Code)
	assert.Nil(t, slots.replaced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateReplaceFailureRollsBack(t *testing.T) {
	provider, mock := newTxProviderMock(t)
	slots := &slotStoreStub{replaceErr: errors.New("disk full")}
	svc := newTimetableServiceFixture(provider, slots, nil, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateWithoutTxProvider(t *testing.T) {
	svc := NewTimetableService(nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, TimetableServiceConfig{})
	_, err := svc.Generate(context.Background(), dto.GenerateTimetableRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceListValidatesDay(t *testing.T) {
	slots := &slotStoreStub{}
	svc := newTimetableServiceFixture(nil, slots, nil, nil)

	bad := 5
	_, err := svc.List(context.Background(), dto.TimetableQuery{Day: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	day := 2
	_, err = svc.List(context.Background(), dto.TimetableQuery{ClassID: "c1", Day: &day})
	require.NoError(t, err)
	assert.Equal(t, "c1", slots.filter.ClassID)
	require.NotNil(t, slots.filter.DayOfWeek)
	assert.Equal(t, 2, *slots.filter.DayOfWeek)
}

func TestTimetableServiceTeacherTimetable(t *testing.T) {
	slots := &slotStoreStub{listed: []models.Slot{
		{ClassID: "c2", DayOfWeek: 1, Period: 4, SubjectID: "sub-2", TeacherID: strRef("t1")},
		{ClassID: "c1", DayOfWeek: 1, Period: 2, SubjectID: "sub-1", TeacherID: strRef("t1")},
	}}
	svc := newTimetableServiceFixture(nil, slots, nil, nil)

	resp, err := svc.TeacherTimetable(context.Background(), dto.TeacherTimetableQuery{TeacherID: "t1", Date: "2024-01-09"})
	require.NoError(t, err)
	require.NotNil(t, resp.DayOfWeek)
	assert.Equal(t, 1, *resp.DayOfWeek)
	assert.False(t, resp.NoSchool)
	require.Len(t, resp.Slots, 2)
	assert.Equal(t, 2, resp.Slots[0].Period)
	assert.Equal(t, 4, resp.Slots[1].Period)
	assert.Equal(t, "t1", slots.filter.TeacherID)
}

func TestTimetableServiceTeacherTimetableWeekend(t *testing.T) {
	slots := &slotStoreStub{}
	svc := newTimetableServiceFixture(nil, slots, nil, nil)

	resp, err := svc.TeacherTimetable(context.Background(), dto.TeacherTimetableQuery{TeacherID: "t1", Date: "2024-01-13"})
	require.NoError(t, err)
	assert.True(t, resp.NoSchool)
	assert.Nil(t, resp.DayOfWeek)
	assert.Empty(t, resp.Slots)
	assert.Equal(t, "no school on Saturday", resp.Message)
	assert.False(t, slots.listCalled)
}

func TestTimetableServiceTeacherTimetableUnknownTeacher(t *testing.T) {
	svc := newTimetableServiceFixture(nil, &slotStoreStub{}, nil, nil)

	_, err := svc.TeacherTimetable(context.Background(), dto.TeacherTimetableQuery{TeacherID: "ghost", Date: "2024-01-09"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.TeacherTimetable(context.Background(), dto.TeacherTimetableQuery{TeacherID: "t1", Date: "09-01-2024"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

func newTimetableServiceFixture(tx txProvider, slots *slotStoreStub, builder weekBuilder, cache *CacheService) *TimetableService {
	if tx == nil {
		tx = noopTxProvider{}
	}
	return NewTimetableService(
		tx,
		classListerStub{items: []models.Class{{ID: "c1", Name: "8A", Grade: 8, ClassTeacherID: strRef("t1")}}},
		subjectListerStub{items: gradeEightSubjects()},
		&teacherRepoStub{items: oneTeacherEach(7)},
		slots,
		builder,
		cache,
		nil,
		validator.New(),
		zap.NewNop(),
		TimetableServiceConfig{LockKey: 42},
	)
}

func gradeEightSubjects() []models.Subject {
	subjects := make([]models.Subject, 0, 9)
	for i := 1; i <= 7; i++ {
		subjects = append(subjects, models.Subject{ID: fmt.Sprintf("sub-%d", i), Name: fmt.Sprintf("Subject %d", i)})
	}
	return append(subjects,
		models.Subject{ID: "sub-90", Name: "Library"},
		models.Subject{ID: "sub-91", Name: "Games"},
	)
}

func oneTeacherEach(n int) []models.Teacher {
	teachers := make([]models.Teacher, 0, n)
	for i := 1; i <= n; i++ {
		teachers = append(teachers, models.Teacher{
			ID:         fmt.Sprintf("t%d", i),
			FullName:   fmt.Sprintf("Teacher %d", i),
			SubjectIDs: []string{fmt.Sprintf("sub-%d", i)},
		})
	}
	return teachers
}

func strRef(v string) *string {
	return &v
}

type classListerStub struct {
	items []models.Class
	err   error
}

func (s classListerStub) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Class, error) {
	return s.items, s.err
}

type subjectListerStub struct {
	items []models.Subject
	err   error
}

func (s subjectListerStub) ListAll(ctx context.Context, exec sqlx.ExtContext) ([]models.Subject, error) {
	return s.items, s.err
}

type teacherRepoStub struct {
	items []models.Teacher
	err   error
}

func (s *teacherRepoStub) ListWithSubjects(ctx context.Context, exec sqlx.ExtContext) ([]models.Teacher, error) {
	return s.items, s.err
}

func (s *teacherRepoStub) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	for _, teacher := range s.items {
		if teacher.ID == id {
			copy := teacher
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

type slotStoreStub struct {
	locked     bool
	lockKey    int64
	replaced   []models.Slot
	replaceErr error
	filter     models.SlotFilter
	listed     []models.Slot
	listCalled bool
}

func (s *slotStoreStub) LockGeneration(ctx context.Context, tx sqlx.ExtContext, key int64) error {
	s.locked = true
	s.lockKey = key
	return nil
}

func (s *slotStoreStub) ReplaceAll(ctx context.Context, tx sqlx.ExtContext, slots []models.Slot) error {
	if s.replaceErr != nil {
		return s.replaceErr
	}
	s.replaced = slots
	return nil
}

func (s *slotStoreStub) List(ctx context.Context, exec sqlx.ExtContext, filter models.SlotFilter) ([]models.Slot, error) {
	s.listCalled = true
	s.filter = filter
	return s.listed, nil
}

type weekBuilderStub struct {
	slots  []models.Slot
	report *timetable.Report
	err    error
}

func (s weekBuilderStub) Generate(roster timetable.Roster) ([]models.Slot, *timetable.Report, error) {
	return s.slots, s.report, s.err
}

type noopTxProvider struct{}

func (noopTxProvider) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider unavailable")
}

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
