package handlers

import (
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type StatusHandler struct {
	projects *services.ProjectService
}

func NewStatusHandler(projects *services.ProjectService) *StatusHandler {
	return &StatusHandler{projects: projects}
}

// GetStatus godoc
// @Summary     Payment status of a project
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.StatusResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects/{project_id}/status [get]
func (h *StatusHandler) GetStatus(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), c.Param("user_id"), c.Param("project_id"))
	if err != nil {
		respondError(c, err, "project not found")
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		ProjectID:   project.ID,
		Paid:        project.Paid,
		Price:       project.Price,
		PaymentID:   project.PaymentID,
		PaymentDate: project.PaymentDate,
	})
}
