package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ttapp-api/internal/dto"
	"github.com/noah-isme/ttapp-api/internal/models"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
	"github.com/noah-isme/ttapp-api/pkg/response"
)

type timetableService interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.Slot, error)
	TeacherTimetable(ctx context.Context, query dto.TeacherTimetableQuery) (*dto.TeacherTimetableResponse, error)
}

type generationDispatcher interface {
	Enqueue(req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error)
	Status(id string) (*dto.GenerationJobResponse, error)
}

// TimetableHandler exposes generation and timetable read endpoints.
type TimetableHandler struct {
	service    timetableService
	dispatcher generationDispatcher
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService, dispatcher generationDispatcher) *TimetableHandler {
	return &TimetableHandler{service: svc, dispatcher: dispatcher}
}

// Generate godoc
// @Summary Rebuild the weekly timetable
// @Description Replaces every stored slot in one transaction and returns the new week with its report. Set dryRun to preview without storing.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest false "Generation options"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// GenerateAsync godoc
// @Summary Queue a timetable rebuild
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest false "Generation options"
// @Success 202 {object} response.Envelope
// @Router /timetable/generate/async [post]
func (h *TimetableHandler) GenerateAsync(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.dispatcher.Enqueue(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// JobStatus godoc
// @Summary Get the status of a queued rebuild
// @Tags Timetable
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetable/jobs/{id} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	job, err := h.dispatcher.Status(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// List godoc
// @Summary List the stored weekly timetable
// @Tags Timetable
// @Produce json
// @Param classId query string false "Class ID"
// @Param day query int false "Day of week, 0=Monday .. 4=Friday"
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) List(c *gin.Context) {
	query := dto.TimetableQuery{ClassID: c.Query("classId")}
	if raw := c.Query("day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "day must be an integer"))
			return
		}
		query.Day = &day
	}
	slots, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	response.JSON(c, http.StatusOK, slots, map[string]interface{}{"total": len(slots)})
}

// TeacherTimetable godoc
// @Summary List a teacher's slots for a date
// @Description Weekend dates return an empty list with a message.
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/timetable [get]
func (h *TimetableHandler) TeacherTimetable(c *gin.Context) {
	query := dto.TeacherTimetableQuery{TeacherID: c.Param("id"), Date: c.Query("date")}
	result, err := h.service.TeacherTimetable(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	// An empty body means a committed run with default options.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return req, false
	}
	return req, true
}
