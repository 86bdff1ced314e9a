package handler

import (
	"bytes"
	"context"
	"encoding/json"
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

type timetableServiceMock struct {
	generateReq dto.GenerateTimetableRequest
	listQuery   dto.TimetableQuery
	teacherReq  dto.TeacherTimetableQuery
	err         error
}

func (m *timetableServiceMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	m.generateReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.GenerateTimetableResponse{Report: &timetable.Report{SlotCount: 40}, Committed: !req.DryRun}, nil
}

func (m *timetableServiceMock) List(ctx context.Context, query dto.TimetableQuery) ([]models.Slot, error) {
	m.listQuery = query
	return nil, m.err
}

func (m *timetableServiceMock) TeacherTimetable(ctx context.Context, query dto.TeacherTimetableQuery) (*dto.TeacherTimetableResponse, error) {
	m.teacherReq = query
	if m.err != nil {
		return nil, m.err
	}
	return &dto.TeacherTimetableResponse{TeacherID: query.TeacherID, Date: query.Date, Slots: []models.Slot{}}, nil
}

type dispatcherMock struct {
	enqueued []dto.GenerateTimetableRequest
}

func (m *dispatcherMock) Enqueue(req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error) {
	m.enqueued = append(m.enqueued, req)
	return &dto.GenerationJobResponse{JobID: "job-1", Status: dto.GenerationJobQueued, DryRun: req.DryRun}, nil
}

func (m *dispatcherMock) Status(id string) (*dto.GenerationJobResponse, error) {
	if id != "job-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found or expired")
	}
	return &dto.GenerationJobResponse{JobID: id, Status: dto.GenerationJobSucceeded}, nil
}

func newTestContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func TestTimetableHandlerGenerate(t *testing.T) {
	svc := &timetableServiceMock{}
	handler := NewTimetableHandler(svc, &dispatcherMock{})

	c, w := newTestContext(http.MethodPost, "/api/v1/timetable/generate", []byte(`{"dryRun":true}`))
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.generateReq.DryRun)
	var body struct {
		Data dto.GenerateTimetableResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Data.Committed)
	assert.Equal(t, 40, body.Data.Report.SlotCount)
}

func TestTimetableHandlerGenerateEmptyBody(t *testing.T) {
	svc := &timetableServiceMock{}
	handler := NewTimetableHandler(svc, &dispatcherMock{})

	c, w := newTestContext(http.MethodPost, "/api/v1/timetable/generate", nil)
	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, svc.generateReq.DryRun)
}

func TestTimetableHandlerGenerateMalformed(t *testing.T) {
	handler := NewTimetableHandler(&timetableServiceMock{}, &dispatcherMock{})

	c, w := newTestContext(http.MethodPost, "/api/v1/timetable/generate", []byte(`{"dryRun":`))
	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerGenerateOccupancyViolation(t *testing.T) {
	svc := &timetableServiceMock{err: appErrors.Clone(appErrors.ErrOccupancyViolation, "")}
	handler := NewTimetableHandler(svc, &dispatcherMock{})

	c, w := newTestContext(http.MethodPost, "/api/v1/timetable/generate", nil)
	handler.Generate(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrOccupancyViolation.Code)
}

func TestTimetableHandlerAsyncAndStatus(t *testing.T) {
	dispatcher := &dispatcherMock{}
	handler := NewTimetableHandler(&timetableServiceMock{}, dispatcher)

	c, w := newTestContext(http.MethodPost, "/api/v1/timetable/generate/async", []byte(`{}`))
	handler.GenerateAsync(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, dispatcher.enqueued, 1)
	assert.Contains(t, w.Body.String(), `"jobId":"job-1"`)

	c, w = newTestContext(http.MethodGet, "/api/v1/timetable/jobs/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.JobStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(dto.GenerationJobSucceeded))

	c, w = newTestContext(http.MethodGet, "/api/v1/timetable/jobs/nope", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	handler.JobStatus(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerList(t *testing.T) {
	svc := &timetableServiceMock{}
	handler := NewTimetableHandler(svc, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/timetable?classId=c1&day=3", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", svc.listQuery.ClassID)
	require.NotNil(t, svc.listQuery.Day)
	assert.Equal(t, 3, *svc.listQuery.Day)
	assert.Contains(t, w.Body.String(), `"data":[]`)

	c, w = newTestContext(http.MethodGet, "/api/v1/timetable?day=monday", nil)
	handler.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerTeacherTimetable(t *testing.T) {
	svc := &timetableServiceMock{}
	handler := NewTimetableHandler(svc, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/teachers/t1/timetable?date=2024-01-09", nil)
	c.Params = gin.Params{{Key: "id", Value: "t1"}}
	handler.TeacherTimetable(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", svc.teacherReq.TeacherID)
	assert.Equal(t, "2024-01-09", svc.teacherReq.Date)
}

func TestTimetableHandlerGenerateRequiresAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceMock{}, &dispatcherMock{})
	router := gin.New()
	router.POST("/timetable/generate", func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "u2", Role: models.RoleTeacher})
		c.Next()
	}, internalmiddleware.RequireAdmin(), handler.Generate)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/timetable/generate", nil))
	require.Equal(t, http.StatusForbidden, w.Code)

	router = gin.New()
	router.POST("/timetable/generate", internalmiddleware.RequireAdmin(), handler.Generate)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/timetable/generate", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
