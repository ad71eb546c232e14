package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/middleware"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
	"github.com/noah-isme/pending-subjects-api/pkg/response"
)

type pendingViewService interface {
	GroupedView(ctx context.Context, studentID, cycleID string, actor *models.JWTClaims) (*dto.GroupedViewResponse, bool, error)
	CourseView(ctx context.Context, courseID, cycleID string, actor *models.JWTClaims) (*dto.CourseViewResponse, error)
	InvalidateCycle(ctx context.Context, cycleID string, actor *models.JWTClaims) error
}

// PendingViewHandler serves consolidated pending views.
type PendingViewHandler struct {
	service pendingViewService
}

// NewPendingViewHandler builds a new handler.
func NewPendingViewHandler(service pendingViewService) *PendingViewHandler {
	return &PendingViewHandler{service: service}
}

// Student godoc
// @Summary Grouped pending view of a student
// @Tags Pending Views
// @Produce json
// @Param id path string true "Student ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/pending-view [get]
func (h *PendingViewHandler) Student(c *gin.Context) {
	cycleID := c.Query("cycleId")
	if cycleID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "cycleId required"))
		return
	}
	view, hit, err := h.service.GroupedView(c.Request.Context(), c.Param("id"), cycleID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Course godoc
// @Summary Pending view of every student in a course
// @Tags Pending Views
// @Produce json
// @Param id path string true "Course ID"
// @Param cycleId query string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/pending-view [get]
func (h *PendingViewHandler) Course(c *gin.Context) {
	cycleID := c.Query("cycleId")
	if cycleID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "cycleId required"))
		return
	}
	view, err := h.service.CourseView(c.Request.Context(), c.Param("id"), cycleID, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "student_count", len(view.Students))
	response.JSON(c, http.StatusOK, view, nil, middleware.ExtractMeta(c))
}

// Invalidate godoc
// @Summary Drop cached grouped views after subject regrouping
// @Tags Pending Views
// @Produce json
// @Param cycleId query string false "Cycle ID, all cycles when omitted"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /pending-views/invalidate [post]
func (h *PendingViewHandler) Invalidate(c *gin.Context) {
	cycleID := c.Query("cycleId")
	if err := h.service.InvalidateCycle(c.Request.Context(), cycleID, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"cycleId": cycleID, "invalidated": true}, nil)
}
