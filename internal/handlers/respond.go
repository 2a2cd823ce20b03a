package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/middleware"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// RegisterValidators adds the custom rules request models rely on to gin's
// binding validator. Call it once before serving.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not a validator.Validate")
	}
	return v.RegisterValidation("notblank", validators.NotBlank)
}

// respondError maps service errors onto statuses. Validation messages are
// shown verbatim; everything unexpected is logged and answered with 500.
func respondError(c *gin.Context, err error, action string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: verr.Message})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not found", Message: action})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, services.ErrLocked):
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{Error: "payment required", Message: err.Error()})
	case errors.Is(err, services.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "already paid", Message: err.Error()})
	default:
		slog.ErrorContext(c.Request.Context(), "while handling request",
			slog.String("action", action),
			slog.String("path", c.FullPath()),
			slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to " + action,
			Message: err.Error(),
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid request",
		Message: err.Error(),
	})
}

// session returns the caller, answering 401 itself when there is none.
func session(c *gin.Context) (*identity.Session, bool) {
	s := middleware.SessionFrom(c)
	if s == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, false
	}
	return s, true
}

// scopeOf reads the thread scope from the route. Routes without a
// :project_id address the general thread.
func scopeOf(c *gin.Context) services.Scope {
	if pid := c.Param("project_id"); pid != "" {
		return services.ProjectScope(c.Param("user_id"), pid)
	}
	return services.GeneralScope(c.Param("user_id"))
}
