package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/payments"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Stripe documents 64KiB as a safe cap for event payloads.
const maxWebhookBytes = 65536

type WebhookHandler struct {
	checkout *services.CheckoutService
}

func NewWebhookHandler(checkout *services.CheckoutService) *WebhookHandler {
	return &WebhookHandler{checkout: checkout}
}

// HandleStripe godoc
// @Summary     Stripe webhook endpoint
// @Description Receives payment events. The Stripe-Signature header is verified before anything is read from the payload.
// @Description A completed checkout marks its project paid; redeliveries are acknowledged without further changes.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Param       Stripe-Signature header string true "Stripe signature"
// @Success     200 {object} models.WebhookAck
// @Failure     400 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/stripe [post]
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.WarnContext(c.Request.Context(), "webhook payload too large", slog.Int64("limit", tooLarge.Limit))
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "payload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to read request body",
			Message: err.Error(),
		})
		return
	}

	outcome, err := h.checkout.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			slog.WarnContext(c.Request.Context(), "rejected webhook delivery", slog.Any("err", err))
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid signature"})
			return
		}
		// 5xx makes Stripe redeliver later.
		slog.ErrorContext(c.Request.Context(), "while handling webhook", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to process event",
			Message: err.Error(),
		})
		return
	}

	slog.InfoContext(c.Request.Context(), "webhook handled", slog.String("outcome", string(outcome)))
	c.JSON(http.StatusOK, models.WebhookAck{Received: true})
}
