package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type ContactHandler struct {
	contact *services.ContactService
}

func NewContactHandler(contact *services.ContactService) *ContactHandler {
	return &ContactHandler{contact: contact}
}

// Submit godoc
// @Summary     Send the contact form
// @Description Forwards an enquiry to the hosted form service.
// @Tags        contact
// @Accept      json
// @Produce     json
// @Param       request body models.ContactRequest true "Enquiry"
// @Success     200 {object} models.AckResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     502 {object} models.ErrorResponse
// @Router      /contact [post]
func (h *ContactHandler) Submit(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	err := h.contact.Submit(c.Request.Context(), services.ContactInput{
		FirstName: req.FirstName,
		Email:     req.Email,
		Message:   req.Message,
	})
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondError(c, err, "send message")
			return
		}
		slog.WarnContext(c.Request.Context(), "while submitting contact form", slog.Any("err", err))
		c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error: "Sorry, your message could not be sent. Please try again later.",
		})
		return
	}

	c.JSON(http.StatusOK, models.AckResponse{Status: "ok", Message: "Thanks, we'll be in touch soon."})
}
