package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 50 << 20

type UploadHandler struct {
	attachments *services.AttachmentService
}

func NewUploadHandler(attachments *services.AttachmentService) *UploadHandler {
	return &UploadHandler{attachments: attachments}
}

// Upload godoc
// @Summary     Upload a file into a thread
// @Description Stores the file and posts it as a message, optionally with text.
// @Description In project threads the file stays locked until the project is paid.
// @Tags        upload
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string false "Project ID (project threads only)"
// @Param       file formData file true "File to attach"
// @Param       text formData string false "Message text"
// @Success     201 {object} models.UploadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     413 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /users/{user_id}/uploads [post]
// @Router      /users/{user_id}/projects/{project_id}/uploads [post]
func (h *UploadHandler) Upload(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Error: "file is too large"})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "Please choose a file to upload",
			Message: err.Error(),
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err, "read uploaded file")
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	scope := scopeOf(c)
	upload := services.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	progress := func(pct int) {
		slog.DebugContext(ctx, "upload progress",
			slog.String("user_id", scope.UserID),
			slog.String("file", header.Filename),
			slog.Int("percent", pct))
	}

	msg, err := h.attachments.Upload(ctx, scope, upload, c.PostForm("text"), s.Role, progress)
	if err != nil {
		respondError(c, err, "upload file")
		return
	}

	paid, err := h.attachments.Paid(ctx, scope)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	c.JSON(http.StatusCreated, models.UploadResponse{Message: services.Present(scope, *msg, paid)})
}
