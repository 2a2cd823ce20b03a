// @title           Design Portal Backend API
// @version         1.0.0
// @description     Backend API for the interior design client portal: projects, message threads, measurements, file attachments and pay-to-unlock checkout.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"design-portal-backend/docs"
	"design-portal-backend/internal/bootstrap"
	"design-portal-backend/internal/config"
	"design-portal-backend/internal/forms"
	"design-portal-backend/internal/handlers"
	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/metrics"
	"design-portal-backend/internal/middleware"
	"design-portal-backend/internal/payments"
	"design-portal-backend/internal/services"
	"design-portal-backend/internal/supabase"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const (
	version  = "1.0.0"
	tokenTTL = time.Hour
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(cfg.BaseURL)
		if err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close()

	objects, closeObjects, err := bootstrap.OpenObjects(ctx, cfg, supabaseClient)
	if err != nil {
		log.Fatalf("Failed to open object storage: %v", err)
	}
	defer closeObjects()

	publisher, closePublisher, err := bootstrap.OpenPublisher(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to event broker: %v", err)
	}
	defer closePublisher()

	if err := handlers.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	// Services
	profiles := services.NewProfileService(store)
	projects := services.NewProjectService(store, objects, cfg.DefaultProjectPrice)
	thread := services.NewThread(store, publisher)
	attachments := services.NewAttachmentService(objects, thread, projects)
	ledger := services.NewLedger(store, publisher)
	checkout := services.NewCheckoutService(store,
		payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret),
		publisher, cfg.CheckoutCurrency, cfg.PublicSiteURL)
	contact := services.NewContactService(forms.NewClient(cfg.FormsSubmitURL))

	issuer := identity.NewTokenIssuer(cfg.SupabaseJWTSecret, tokenTTL)
	var google *identity.GoogleVerifier
	if cfg.GoogleOAuthClientID != "" {
		google = identity.NewGoogleVerifier(cfg.GoogleOAuthClientID)
	} else {
		slog.Warn("GOOGLE_OAUTH_CLIENT_ID not set; Google sign-in is disabled")
	}

	api := handlers.Handlers{
		Auth:       handlers.NewAuthHandler(supabaseClient.Identity(), google, issuer, profiles),
		Contact:    handlers.NewContactHandler(contact),
		Users:      handlers.NewUsersHandler(profiles, projects),
		Projects:   handlers.NewProjectsHandler(projects),
		Messages:   handlers.NewMessagesHandler(thread, attachments, projects),
		Dimensions: handlers.NewDimensionsHandler(ledger),
		Upload:     handlers.NewUploadHandler(attachments),
		Files:      handlers.NewFilesHandler(attachments),
		Status:     handlers.NewStatusHandler(projects),
		Checkout:   handlers.NewCheckoutHandler(checkout),
		Webhook:    handlers.NewWebhookHandler(checkout),
	}

	// Setup router
	router := gin.Default()
	router.Use(metrics.Middleware())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", metrics.Handler())

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler(version))

	api.Register(router.Group("/api/v1"), middleware.AuthMiddleware(issuer, profiles))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("while shutting down", slog.Any("err", err))
		}
	}()

	slog.Info("Server starting",
		slog.String("port", cfg.Port),
		slog.String("store", cfg.StoreDriver),
		slog.String("objects", cfg.ObjectStoreDriver))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
