package handlers

import (
	"net/http"

	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type FilesHandler struct {
	attachments *services.AttachmentService
}

func NewFilesHandler(attachments *services.AttachmentService) *FilesHandler {
	return &FilesHandler{attachments: attachments}
}

// Download godoc
// @Summary     Download an attachment
// @Description Redirects to the stored file. Project files answer 402 until the project is paid.
// @Tags        files
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string true "Project ID"
// @Param       message_id path string true "Message ID"
// @Success     302
// @Failure     402 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /users/{user_id}/projects/{project_id}/messages/{message_id}/attachment [get]
// @Router      /users/{user_id}/messages/{message_id}/attachment [get]
func (h *FilesHandler) Download(c *gin.Context) {
	url, err := h.attachments.OpenURL(c.Request.Context(), scopeOf(c), c.Param("message_id"))
	if err != nil {
		respondError(c, err, "attachment not found")
		return
	}
	c.Redirect(http.StatusFound, url)
}
