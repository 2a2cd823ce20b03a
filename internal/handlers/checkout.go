package handlers

import (
	"errors"
	"io"
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkout *services.CheckoutService
}

func NewCheckoutHandler(checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

// CreateCheckout godoc
// @Summary     Start a payment for a project
// @Description Opens a hosted checkout session and returns where to redirect the customer.
// @Description The project is unlocked only once the payment webhook confirms it.
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string true "Project ID"
// @Param       request body models.CheckoutRequest false "Optional amount override in minor units"
// @Success     200 {object} models.CheckoutResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects/{project_id}/checkout [post]
func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	uid := c.Param("user_id")
	email := ""
	if s.UID == uid {
		email = s.Email
	}

	sess, err := h.checkout.CreateCheckout(c.Request.Context(), services.CheckoutRequest{
		UserID:    uid,
		ProjectID: c.Param("project_id"),
		Amount:    req.Amount,
		Email:     email,
	})
	if err != nil {
		respondError(c, err, "create checkout session")
		return
	}
	c.JSON(http.StatusOK, models.CheckoutResponse{RedirectURL: sess.RedirectURL, SessionID: sess.ID})
}
