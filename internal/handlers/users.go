package handlers

import (
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type UsersHandler struct {
	profiles *services.ProfileService
	projects *services.ProjectService
}

func NewUsersHandler(profiles *services.ProfileService, projects *services.ProjectService) *UsersHandler {
	return &UsersHandler{
		profiles: profiles,
		projects: projects,
	}
}

// Me godoc
// @Summary     Current user
// @Description Returns the caller's profile and role.
// @Tags        users
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.MeResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /me [get]
func (h *UsersHandler) Me(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	resp := models.MeResponse{
		UserID:      s.UID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		Role:        s.Role,
	}
	if user, err := h.profiles.Get(c.Request.Context(), s.UID); err == nil && user.DisplayName != nil {
		resp.DisplayName = *user.DisplayName
	}
	c.JSON(http.StatusOK, resp)
}

// Customers godoc
// @Summary     List customers
// @Description Designer dashboard: every customer with their projects.
// @Tags        users
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.CustomersResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /customers [get]
func (h *UsersHandler) Customers(c *gin.Context) {
	customers, err := h.profiles.ListCustomers(c.Request.Context(), h.projects)
	if err != nil {
		respondError(c, err, "list customers")
		return
	}
	c.JSON(http.StatusOK, models.CustomersResponse{Customers: customers})
}
