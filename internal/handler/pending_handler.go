package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	appErrors "github.com/noah-isme/pending-subjects-api/pkg/errors"
	"github.com/noah-isme/pending-subjects-api/pkg/response"
)

type pendingService interface {
	Create(ctx context.Context, req dto.CreatePendingRequest, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error)
	BulkAssign(ctx context.Context, req dto.BulkAssignRequest, actor *models.JWTClaims) ([]models.PendingRegistrationDetail, error)
	Update(ctx context.Context, id string, req dto.UpdatePendingFieldRequest, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error)
	SoftDelete(ctx context.Context, id string, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.PendingRegistrationDetail, error)
	List(ctx context.Context, query dto.PendingListQuery, actor *models.JWTClaims) ([]models.PendingRegistrationDetail, *models.Pagination, error)
	History(ctx context.Context, id string, actor *models.JWTClaims) ([]models.PendingAuditEntry, error)
}

// PendingHandler exposes pending registration endpoints.
type PendingHandler struct {
	service pendingService
}

// NewPendingHandler builds a new handler.
func NewPendingHandler(service pendingService) *PendingHandler {
	return &PendingHandler{service: service}
}

// List godoc
// @Summary List pending registrations
// @Tags Pending
// @Produce json
// @Param state query string false "active (default), inactive or all"
// @Param professorId query string false "Professor filter, ignored for teachers"
// @Param subjectOfferingId query string false "Subject offering filter"
// @Param courseId query string false "Course filter"
// @Param studentId query string false "Student filter"
// @Param cycleId query string false "Cycle filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Param sort query string false "student, subject, course, created_at or modified_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /pending-registrations [get]
func (h *PendingHandler) List(c *gin.Context) {
	query := dto.PendingListQuery{
		ProfessorID:       c.Query("professorId"),
		SubjectOfferingID: c.Query("subjectOfferingId"),
		CourseID:          c.Query("courseId"),
		StudentID:         c.Query("studentId"),
		CycleID:           c.Query("cycleId"),
		State:             c.Query("state"),
		SortBy:            c.Query("sort"),
		SortOrder:         c.Query("order"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		query.PageSize = size
	}

	items, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Create godoc
// @Summary Register a pending subject
// @Tags Pending
// @Accept json
// @Produce json
// @Param payload body dto.CreatePendingRequest true "Pending registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pending-registrations [post]
func (h *PendingHandler) Create(c *gin.Context) {
	var req dto.CreatePendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid pending registration payload"))
		return
	}
	detail, err := h.service.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// BulkAssign godoc
// @Summary Register several pending subjects for one student
// @Tags Pending
// @Accept json
// @Produce json
// @Param payload body dto.BulkAssignRequest true "Bulk assignment payload"
// @Success 201 {object} response.Envelope
// @Router /pending-registrations/bulk [post]
func (h *PendingHandler) BulkAssign(c *gin.Context) {
	var req dto.BulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk assignment payload"))
		return
	}
	details, err := h.service.BulkAssign(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, details)
}

// Get godoc
// @Summary Get a pending registration
// @Tags Pending
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /pending-registrations/{id} [get]
func (h *PendingHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Update godoc
// @Summary Update one field of a pending registration
// @Tags Pending
// @Accept json
// @Produce json
// @Param id path string true "Registration ID"
// @Param payload body dto.UpdatePendingFieldRequest true "Field update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pending-registrations/{id} [patch]
func (h *PendingHandler) Update(c *gin.Context) {
	var req dto.UpdatePendingFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}
	detail, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Deactivate a pending registration
// @Tags Pending
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /pending-registrations/{id} [delete]
func (h *PendingHandler) Delete(c *gin.Context) {
	detail, err := h.service.SoftDelete(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// History godoc
// @Summary Audit trail of a pending registration
// @Tags Pending
// @Produce json
// @Param id path string true "Registration ID"
// @Success 200 {object} response.Envelope
// @Router /pending-registrations/{id}/history [get]
func (h *PendingHandler) History(c *gin.Context) {
	entries, err := h.service.History(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
