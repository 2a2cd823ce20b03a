package handlers

import (
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type DimensionsHandler struct {
	ledger *services.Ledger
}

func NewDimensionsHandler(ledger *services.Ledger) *DimensionsHandler {
	return &DimensionsHandler{ledger: ledger}
}

func (h *DimensionsHandler) ListDimensions(c *gin.Context) {
	dims, err := h.ledger.List(c.Request.Context(), scopeOf(c))
	if err != nil {
		respondError(c, err, "list dimensions")
		return
	}
	c.JSON(http.StatusOK, models.DimensionListResponse{Dimensions: dims})
}

// AddDimensions godoc
// @Summary     Add measurements
// @Description Appends a batch to the project's numbered dimensions and posts a summary message.
// @Description Entries without a whole-number value or a label are skipped; a batch with none left is rejected.
// @Tags        dimensions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string true "Project ID"
// @Param       request body models.AddDimensionsRequest true "Measurements"
// @Success     201 {object} models.AppendDimensionsResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects/{project_id}/dimensions [post]
func (h *DimensionsHandler) AddDimensions(c *gin.Context) {
	var req models.AddDimensionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.ledger.Append(c.Request.Context(), scopeOf(c), toLedgerInputs(req.Dimensions))
	if err != nil {
		respondError(c, err, "save dimensions")
		return
	}
	c.JSON(http.StatusCreated, models.AppendDimensionsResponse{
		Dimensions:       res.Dimensions,
		SummaryMessageID: res.SummaryMessageID,
	})
}

// UpdateDimension godoc
// @Summary     Edit a measurement
// @Description Keeps the measurement's number.
// @Tags        dimensions
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string true "Project ID"
// @Param       dimension_id path string true "Dimension ID"
// @Param       request body models.DimensionInput true "Measurement"
// @Success     200 {object} models.AckResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects/{project_id}/dimensions/{dimension_id} [patch]
func (h *DimensionsHandler) UpdateDimension(c *gin.Context) {
	var req models.DimensionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	in := toLedgerInputs([]models.DimensionInput{req})[0]
	if err := h.ledger.Update(c.Request.Context(), scopeOf(c), c.Param("dimension_id"), in); err != nil {
		respondError(c, err, "update dimension")
		return
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok"})
}

// DeleteDimension godoc
// @Summary     Remove a measurement
// @Description The remaining measurements are renumbered 1..N.
// @Tags        dimensions
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string true "Project ID"
// @Param       dimension_id path string true "Dimension ID"
// @Success     200 {object} models.AckResponse
// @Router      /users/{user_id}/projects/{project_id}/dimensions/{dimension_id} [delete]
func (h *DimensionsHandler) DeleteDimension(c *gin.Context) {
	if err := h.ledger.Remove(c.Request.Context(), scopeOf(c), c.Param("dimension_id")); err != nil {
		respondError(c, err, "delete dimension")
		return
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok"})
}

func (h *DimensionsHandler) StreamDimensions(c *gin.Context) {
	updates := newLatest[models.DimensionListResponse]()
	stop, err := h.ledger.Subscribe(c.Request.Context(), scopeOf(c), func(dims []models.Dimension) {
		updates.put(models.DimensionListResponse{Dimensions: dims})
	})
	if err != nil {
		respondError(c, err, "subscribe to dimensions")
		return
	}
	defer stop()

	streamEvents(c, "dimensions", updates)
}

func toLedgerInputs(in []models.DimensionInput) []services.DimensionInput {
	out := make([]services.DimensionInput, len(in))
	for i, d := range in {
		out[i] = services.DimensionInput{Value: string(d.Value), Label: d.Label, Notes: d.Notes}
	}
	return out
}
