package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ttapp-api/internal/dto"
	"github.com/noah-isme/ttapp-api/internal/middleware"
	"github.com/noah-isme/ttapp-api/internal/models"
	"github.com/noah-isme/ttapp-api/internal/timetable"
	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
	"github.com/noah-isme/ttapp-api/pkg/response"
)

type substitutionService interface {
	Suggest(ctx context.Context, query dto.SubstitutionQuery) (*timetable.SubstitutionResult, bool, error)
}

type absenceService interface {
	Record(ctx context.Context, req dto.RecordAbsenceRequest) (*models.Absence, error)
	ListByDate(ctx context.Context, query dto.SubstitutionQuery) ([]models.Absence, error)
	ConfirmSubstitution(ctx context.Context, absenceID string, req dto.ConfirmSubstitutionRequest) (*models.Absence, error)
}

// SubstitutionHandler exposes absence recording and substitute suggestions.
type SubstitutionHandler struct {
	substitutions substitutionService
	absences      absenceService
}

// NewSubstitutionHandler constructs the handler.
func NewSubstitutionHandler(substitutions substitutionService, absences absenceService) *SubstitutionHandler {
	return &SubstitutionHandler{substitutions: substitutions, absences: absences}
}

// Suggest godoc
// @Summary Suggest substitutes for the absences of a date
// @Description Advisory only. Weekend dates return noSchool=true with an empty list.
// @Tags Substitutions
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /substitutions [get]
func (h *SubstitutionHandler) Suggest(c *gin.Context) {
	result, hit, err := h.substitutions.Suggest(c.Request.Context(), dto.SubstitutionQuery{Date: c.Query("date")})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// ListAbsences godoc
// @Summary List absences recorded for a date
// @Tags Substitutions
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *SubstitutionHandler) ListAbsences(c *gin.Context) {
	absences, err := h.absences.ListByDate(c.Request.Context(), dto.SubstitutionQuery{Date: c.Query("date")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absences, map[string]interface{}{"total": len(absences)})
}

// RecordAbsence godoc
// @Summary Record a teacher absence
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.RecordAbsenceRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absences [post]
func (h *SubstitutionHandler) RecordAbsence(c *gin.Context) {
	var req dto.RecordAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence payload"))
		return
	}
	absence, err := h.absences.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// ConfirmSubstitution godoc
// @Summary Confirm the substitute covering an absence
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param id path string true "Absence ID"
// @Param payload body dto.ConfirmSubstitutionRequest true "Substitute payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absences/{id}/substitute [post]
func (h *SubstitutionHandler) ConfirmSubstitution(c *gin.Context) {
	var req dto.ConfirmSubstitutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid substitution payload"))
		return
	}
	absence, err := h.absences.ConfirmSubstitution(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absence)
}
