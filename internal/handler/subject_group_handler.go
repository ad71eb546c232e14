package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pending-subjects-api/internal/dto"
	"github.com/noah-isme/pending-subjects-api/internal/models"
	"github.com/noah-isme/pending-subjects-api/pkg/response"
)

type subjectGroupResolver interface {
	Resolve(ctx context.Context, subjectOfferingID string) (*models.SubjectGroup, error)
}

// SubjectGroupHandler answers group lookups.
type SubjectGroupHandler struct {
	groups subjectGroupResolver
}

// NewSubjectGroupHandler builds a new handler.
func NewSubjectGroupHandler(groups subjectGroupResolver) *SubjectGroupHandler {
	return &SubjectGroupHandler{groups: groups}
}

// Resolve godoc
// @Summary Active subject group of an offering
// @Tags Subject Groups
// @Produce json
// @Param id path string true "Subject offering ID"
// @Success 200 {object} response.Envelope
// @Router /subject-offerings/{id}/group [get]
func (h *SubjectGroupHandler) Resolve(c *gin.Context) {
	id := c.Param("id")
	group, err := h.groups.Resolve(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SubjectGroupResponse{SubjectOfferingID: id, Group: group}, nil)
}
