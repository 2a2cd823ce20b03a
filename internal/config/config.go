package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory    = "memory"
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"

	ObjectStoreSupabase = "supabase"
	ObjectStoreGCS      = "gcs"
)

type Config struct {
	// Server
	Port          string
	Environment   string
	BaseURL       string
	PublicSiteURL string

	// Document store
	StoreDriver        string
	DatabaseURL        string
	FirestoreProjectID string

	// Object storage
	ObjectStoreDriver string
	GCSBucket         string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Google sign-in
	GoogleOAuthClientID string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutCurrency    string
	DefaultProjectPrice int64

	// Events and notifications
	AMQPURL         string
	AMQPQueue       string
	SendGridAPIKey  string
	NotifyFromEmail string
	DesignerEmail   string

	// Contact form
	FormsSubmitURL string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is honoured outside production.
func Load() (*Config, error) {
	cfg := FromViper(newViper())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadNotifier reads the configuration of the notifier process, which needs
// the broker, SendGrid and the document store but no payment or auth keys.
func LoadNotifier() (*Config, error) {
	cfg := FromViper(newViper())
	if err := cfg.ValidateNotifier(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("PUBLIC_SITE_URL", "http://localhost:3000")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("OBJECT_STORE_DRIVER", ObjectStoreSupabase)
	v.SetDefault("SUPABASE_STORAGE_BUCKET", "project-files")
	v.SetDefault("CHECKOUT_CURRENCY", "gbp")
	v.SetDefault("DEFAULT_PROJECT_PRICE", 500)
	v.SetDefault("AMQP_QUEUE", "portal.events")

	if v.GetString("ENVIRONMENT") != "production" {
		// Missing .env is fine; the process environment still applies.
		_ = godotenv.Load()
	}
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:          v.GetString("PORT"),
		Environment:   v.GetString("ENVIRONMENT"),
		BaseURL:       v.GetString("BASE_URL"),
		PublicSiteURL: strings.TrimRight(v.GetString("PUBLIC_SITE_URL"), "/"),

		StoreDriver:        strings.ToLower(v.GetString("STORE_DRIVER")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		FirestoreProjectID: v.GetString("FIRESTORE_PROJECT_ID"),

		ObjectStoreDriver: strings.ToLower(v.GetString("OBJECT_STORE_DRIVER")),
		GCSBucket:         v.GetString("GCS_BUCKET"),

		SupabaseURL:            v.GetString("SUPABASE_URL"),
		SupabasePublishableKey: v.GetString("SUPABASE_PUBLISHABLE_KEY"),
		SupabaseJWTSecret:      v.GetString("SUPABASE_JWT_SECRET"),
		SupabaseStorageBucket:  v.GetString("SUPABASE_STORAGE_BUCKET"),

		GoogleOAuthClientID: v.GetString("GOOGLE_OAUTH_CLIENT_ID"),

		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		CheckoutCurrency:    strings.ToLower(v.GetString("CHECKOUT_CURRENCY")),
		DefaultProjectPrice: v.GetInt64("DEFAULT_PROJECT_PRICE"),

		AMQPURL:         v.GetString("AMQP_URL"),
		AMQPQueue:       v.GetString("AMQP_QUEUE"),
		SendGridAPIKey:  v.GetString("SENDGRID_API_KEY"),
		NotifyFromEmail: v.GetString("NOTIFY_FROM_EMAIL"),
		DesignerEmail:   v.GetString("DESIGNER_EMAIL"),

		FormsSubmitURL: v.GetString("FORMS_SUBMIT_URL"),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	require := func(value, key string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	require(c.SupabaseJWTSecret, "SUPABASE_JWT_SECRET")
	require(c.StripeSecretKey, "STRIPE_SECRET_KEY")
	require(c.StripeWebhookSecret, "STRIPE_WEBHOOK_SECRET")
	require(c.PublicSiteURL, "PUBLIC_SITE_URL")
	require(c.SupabaseURL, "SUPABASE_URL")
	require(c.SupabasePublishableKey, "SUPABASE_PUBLISHABLE_KEY")

	errs = append(errs, c.storeErrors()...)

	switch c.ObjectStoreDriver {
	case ObjectStoreSupabase:
	case ObjectStoreGCS:
		require(c.GCSBucket, "GCS_BUCKET")
	default:
		errs = append(errs, fmt.Errorf("OBJECT_STORE_DRIVER must be one of supabase, gcs (got %q)", c.ObjectStoreDriver))
	}

	if c.DefaultProjectPrice <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_PROJECT_PRICE must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) ValidateNotifier() error {
	var errs []error
	for key, value := range map[string]string{
		"AMQP_URL":          c.AMQPURL,
		"SENDGRID_API_KEY":  c.SendGridAPIKey,
		"NOTIFY_FROM_EMAIL": c.NotifyFromEmail,
	} {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}
	errs = append(errs, c.storeErrors()...)
	return errors.Join(errs...)
}

func (c *Config) storeErrors() []error {
	switch c.StoreDriver {
	case StoreMemory:
	case StoreFirestore:
		if c.FirestoreProjectID == "" {
			return []error{fmt.Errorf("FIRESTORE_PROJECT_ID is required")}
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return []error{fmt.Errorf("DATABASE_URL is required")}
		}
	default:
		return []error{fmt.Errorf("STORE_DRIVER must be one of memory, firestore, postgres (got %q)", c.StoreDriver)}
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
