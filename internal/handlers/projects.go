package handlers

import (
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ProjectsHandler struct {
	projects *services.ProjectService
}

func NewProjectsHandler(projects *services.ProjectService) *ProjectsHandler {
	return &ProjectsHandler{projects: projects}
}

// CreateProject godoc
// @Summary     Create a project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "Owner user ID"
// @Param       request body models.CreateProjectRequest true "Project details"
// @Success     201 {object} models.Project
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Please provide a title and description",
			Message: err.Error(),
		})
		return
	}

	project, err := h.projects.Create(c.Request.Context(), c.Param("user_id"), services.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, "create project")
		return
	}
	c.JSON(http.StatusCreated, project)
}

// ListProjects godoc
// @Summary     List a user's projects
// @Description Newest first.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "Owner user ID"
// @Success     200 {object} models.ProjectListResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.List(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err, "list projects")
		return
	}
	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: projects})
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), c.Param("user_id"), c.Param("project_id"))
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusOK, project)
}

// DeleteProject godoc
// @Summary     Delete a project
// @Description Removes the project with its messages, dimensions and stored files.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "Owner user ID"
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.AckResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	ctx := c.Request.Context()
	uid, pid := c.Param("user_id"), c.Param("project_id")

	if _, err := h.projects.Get(ctx, uid, pid); err != nil {
		respondError(c, err, "project not found")
		return
	}
	if err := h.projects.Delete(ctx, uid, pid); err != nil {
		respondError(c, err, "delete project")
		return
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok", Message: "project deleted successfully"})
}

// StreamProjects godoc
// @Summary     Live project list
// @Description Server-sent events; each "projects" event carries the full list.
// @Tags        projects
// @Produce     text/event-stream
// @Security    Bearer
// @Param       user_id path string true "Owner user ID"
// @Param       access_token query string false "Bearer token for EventSource clients"
// @Success     200 {object} models.ProjectListResponse
// @Router      /users/{user_id}/projects/stream [get]
func (h *ProjectsHandler) StreamProjects(c *gin.Context) {
	updates := newLatest[models.ProjectListResponse]()
	stop, err := h.projects.Subscribe(c.Request.Context(), c.Param("user_id"), func(ps []models.Project) {
		updates.put(models.ProjectListResponse{Projects: ps})
	})
	if err != nil {
		respondError(c, err, "subscribe to projects")
		return
	}
	defer stop()

	streamEvents(c, "projects", updates)
}
