package handlers

import (
	"design-portal-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers bundles every API handler so routes can be registered in one place.
type Handlers struct {
	Auth       *AuthHandler
	Contact    *ContactHandler
	Users      *UsersHandler
	Projects   *ProjectsHandler
	Messages   *MessagesHandler
	Dimensions *DimensionsHandler
	Upload     *UploadHandler
	Files      *FilesHandler
	Status     *StatusHandler
	Checkout   *CheckoutHandler
	Webhook    *WebhookHandler
}

// Register mounts the API under api. Routes below /users/:user_id are
// limited to the caller's own data unless the caller is a designer.
func (h Handlers) Register(api *gin.RouterGroup, auth gin.HandlerFunc) {
	// Public
	api.POST("/auth/signup", h.Auth.Signup)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/google", h.Auth.Google)
	api.POST("/auth/password-reset", h.Auth.PasswordReset)
	api.POST("/contact", h.Contact.Submit)

	// Webhook (no auth, signed payload)
	api.POST("/webhooks/stripe", h.Webhook.HandleStripe)

	authed := api.Group("", auth)
	authed.POST("/auth/logout", h.Auth.Logout)
	authed.GET("/me", h.Users.Me)
	authed.GET("/customers", middleware.RequireDesigner(), h.Users.Customers)

	user := authed.Group("/users/:user_id", middleware.RequireScopeAccess())
	h.registerThread(user.Group("/messages"))
	user.POST("/uploads", h.Upload.Upload)

	user.GET("/projects", h.Projects.ListProjects)
	user.POST("/projects", h.Projects.CreateProject)
	user.GET("/projects/stream", h.Projects.StreamProjects)

	project := user.Group("/projects/:project_id")
	project.GET("", h.Projects.GetProject)
	project.DELETE("", h.Projects.DeleteProject)
	project.GET("/status", h.Status.GetStatus)
	project.POST("/checkout", h.Checkout.CreateCheckout)
	project.POST("/uploads", h.Upload.Upload)
	h.registerThread(project.Group("/messages"))

	dims := project.Group("/dimensions")
	dims.GET("", h.Dimensions.ListDimensions)
	dims.POST("", h.Dimensions.AddDimensions)
	dims.GET("/stream", h.Dimensions.StreamDimensions)
	dims.PATCH("/:dimension_id", h.Dimensions.UpdateDimension)
	dims.DELETE("/:dimension_id", h.Dimensions.DeleteDimension)
}

func (h Handlers) registerThread(messages *gin.RouterGroup) {
	messages.GET("", h.Messages.ListMessages)
	messages.POST("", h.Messages.PostMessage)
	messages.GET("/stream", h.Messages.StreamMessages)
	messages.PATCH("/:message_id", h.Messages.EditMessage)
	messages.DELETE("/:message_id", h.Messages.DeleteMessage)
	messages.GET("/:message_id/attachment", h.Files.Download)
}
