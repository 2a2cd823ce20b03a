package handlers

import (
	"net/http"
	"sync"

	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/gin-gonic/gin"
)

// MessagesHandler serves both the general thread (/users/:user_id/messages)
// and project threads (/users/:user_id/projects/:project_id/messages).
type MessagesHandler struct {
	thread      *services.Thread
	attachments *services.AttachmentService
	projects    *services.ProjectService
}

func NewMessagesHandler(thread *services.Thread, attachments *services.AttachmentService, projects *services.ProjectService) *MessagesHandler {
	return &MessagesHandler{
		thread:      thread,
		attachments: attachments,
		projects:    projects,
	}
}

// ListMessages godoc
// @Summary     List a thread
// @Description Newest first. Project attachments come without a URL until the project is paid.
// @Tags        messages
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string false "Project ID (project threads only)"
// @Success     200 {object} models.MessageListResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /users/{user_id}/messages [get]
// @Router      /users/{user_id}/projects/{project_id}/messages [get]
func (h *MessagesHandler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	scope := scopeOf(c)

	paid, err := h.attachments.Paid(ctx, scope)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}
	msgs, err := h.thread.List(ctx, scope)
	if err != nil {
		respondError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, models.MessageListResponse{Messages: services.PresentAll(scope, msgs, paid)})
}

// PostMessage godoc
// @Summary     Post a message
// @Description The sender is the caller's role.
// @Tags        messages
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       project_id path string false "Project ID (project threads only)"
// @Param       request body models.PostMessageRequest true "Message"
// @Success     201 {object} models.MessageView
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /users/{user_id}/messages [post]
// @Router      /users/{user_id}/projects/{project_id}/messages [post]
func (h *MessagesHandler) PostMessage(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req models.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	scope := scopeOf(c)
	paid, err := h.attachments.Paid(ctx, scope)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}

	msg, err := h.thread.Post(ctx, scope, services.PostInput{Text: req.Text, Sender: s.Role})
	if err != nil {
		respondError(c, err, "send message")
		return
	}
	c.JSON(http.StatusCreated, services.Present(scope, *msg, paid))
}

// EditMessage godoc
// @Summary     Edit a message
// @Description Only messages sent with the caller's role can be edited.
// @Tags        messages
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       message_id path string true "Message ID"
// @Param       request body models.EditMessageRequest true "New text"
// @Success     200 {object} models.AckResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     403 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /users/{user_id}/messages/{message_id} [patch]
func (h *MessagesHandler) EditMessage(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.thread.Edit(c.Request.Context(), scopeOf(c), c.Param("message_id"), s.Role, req.Text); err != nil {
		respondError(c, err, "edit message")
		return
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok"})
}

// DeleteMessage godoc
// @Summary     Delete a message
// @Tags        messages
// @Produce     json
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       message_id path string true "Message ID"
// @Success     200 {object} models.AckResponse
// @Failure     403 {object} models.ErrorResponse
// @Router      /users/{user_id}/messages/{message_id} [delete]
func (h *MessagesHandler) DeleteMessage(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	if err := h.thread.Delete(c.Request.Context(), scopeOf(c), c.Param("message_id"), s.Role); err != nil {
		respondError(c, err, "delete message")
		return
	}
	c.JSON(http.StatusOK, models.AckResponse{Status: "ok"})
}

// StreamMessages godoc
// @Summary     Live thread
// @Description Server-sent events; each "messages" event carries the whole thread, re-sent when the project is paid.
// @Tags        messages
// @Produce     text/event-stream
// @Security    Bearer
// @Param       user_id path string true "User ID"
// @Param       access_token query string false "Bearer token for EventSource clients"
// @Success     200 {object} models.MessageListResponse
// @Router      /users/{user_id}/messages/stream [get]
// @Router      /users/{user_id}/projects/{project_id}/messages/stream [get]
func (h *MessagesHandler) StreamMessages(c *gin.Context) {
	ctx := c.Request.Context()
	scope := scopeOf(c)

	paid, err := h.attachments.Paid(ctx, scope)
	if err != nil {
		respondError(c, err, "project not found")
		return
	}

	var (
		mu   sync.Mutex
		msgs []models.Message
		seen bool
	)
	updates := newLatest[models.MessageListResponse]()
	publish := func() {
		updates.put(models.MessageListResponse{Messages: services.PresentAll(scope, msgs, paid)})
	}

	stop, err := h.thread.Subscribe(ctx, scope, func(m []models.Message) {
		mu.Lock()
		defer mu.Unlock()
		msgs, seen = m, true
		publish()
	})
	if err != nil {
		respondError(c, err, "subscribe to messages")
		return
	}
	defer stop()

	if scope.IsProject() {
		stopProjects, err := h.projects.Subscribe(ctx, scope.UserID, func(ps []models.Project) {
			mu.Lock()
			defer mu.Unlock()
			for _, p := range ps {
				if p.ID == scope.ProjectID && p.Paid != paid {
					paid = p.Paid
					if seen {
						publish()
					}
				}
			}
		})
		if err != nil {
			respondError(c, err, "subscribe to project")
			return
		}
		defer stopProjects()
	}

	streamEvents(c, "messages", updates)
}
