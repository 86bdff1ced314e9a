package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ttapp-api/internal/dto"
	internalmiddleware "github.com/noah-isme/ttapp-api/internal/middleware"
	"github.com/noah-isme/ttapp-api/internal/models"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
)

type substitutionServiceMock struct {
	query dto.SubstitutionQuery
	hit   bool
}

func (m *substitutionServiceMock) Suggest(ctx context.Context, query dto.SubstitutionQuery) (*timetable.SubstitutionResult, bool, error) {
	m.query = query
	day := 1
	return &timetable.SubstitutionResult{Date: query.Date, DayOfWeek: &day, Absences: []timetable.AbsenceSuggestions{}}, m.hit, nil
}

type absenceServiceMock struct {
	recorded  []dto.RecordAbsenceRequest
	confirmed string
	err       error
}

func (m *absenceServiceMock) Record(ctx context.Context, req dto.RecordAbsenceRequest) (*models.Absence, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.recorded = append(m.recorded, req)
	return &models.Absence{ID: "a1", TeacherID: req.TeacherID}, nil
}

func (m *absenceServiceMock) ListByDate(ctx context.Context, query dto.SubstitutionQuery) ([]models.Absence, error) {
	return []models.Absence{{ID: "a1", TeacherID: "t2"}}, nil
}

func (m *absenceServiceMock) ConfirmSubstitution(ctx context.Context, absenceID string, req dto.ConfirmSubstitutionRequest) (*models.Absence, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.confirmed = absenceID
	sub := req.SubstituteTeacherID
	return &models.Absence{ID: absenceID, IsSubstituted: true, SubstituteTeacherID: &sub}, nil
}

func TestSubstitutionHandlerSuggestReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &substitutionServiceMock{hit: true}
	handler := NewSubstitutionHandler(svc, &absenceServiceMock{})
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.GET("/substitutions", handler.Suggest)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/substitutions?date=2024-01-09", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01-09", svc.query.Date)
	assert.Contains(t, w.Body.String(), `"cache_hit":true`)
	assert.Contains(t, w.Body.String(), `"dayOfWeek":1`)
}

func TestSubstitutionHandlerRecordAbsence(t *testing.T) {
	absences := &absenceServiceMock{}
	handler := NewSubstitutionHandler(&substitutionServiceMock{}, absences)

	c, w := newTestContext(http.MethodPost, "/absences", []byte(`{"teacherId":"t2","date":"2024-01-09"}`))
	handler.RecordAbsence(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, absences.recorded, 1)
	assert.Equal(t, "t2", absences.recorded[0].TeacherID)
}

func TestSubstitutionHandlerRecordAbsenceDuplicate(t *testing.T) {
	absences := &absenceServiceMock{err: appErrors.Clone(appErrors.ErrConflict, "absence already recorded for teacher on this date")}
	handler := NewSubstitutionHandler(&substitutionServiceMock{}, absences)

	c, w := newTestContext(http.MethodPost, "/absences", []byte(`{"teacherId":"t2","date":"2024-01-09"}`))
	handler.RecordAbsence(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubstitutionHandlerRecordAbsenceMalformed(t *testing.T) {
	handler := NewSubstitutionHandler(&substitutionServiceMock{}, &absenceServiceMock{})

	c, w := newTestContext(http.MethodPost, "/absences", []byte(`[]`))
	handler.RecordAbsence(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubstitutionHandlerConfirmAndList(t *testing.T) {
	absences := &absenceServiceMock{}
	handler := NewSubstitutionHandler(&substitutionServiceMock{}, absences)

	c, w := newTestContext(http.MethodPost, "/absences/a1/substitute", []byte(`{"substituteTeacherId":"t1"}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	handler.ConfirmSubstitution(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1", absences.confirmed)
	assert.Contains(t, w.Body.String(), `"is_substituted":true`)

	c, w = newTestContext(http.MethodGet, "/absences?date=2024-01-09", nil)
	handler.ListAbsences(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}
