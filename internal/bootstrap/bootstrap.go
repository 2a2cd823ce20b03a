// Package bootstrap opens the backends selected by configuration. It is
// shared by the API server and the notifier.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"design-portal-backend/internal/config"
	"design-portal-backend/internal/database"
	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/gcs"
	"design-portal-backend/internal/services"
	"design-portal-backend/internal/supabase"

	"cloud.google.com/go/storage"
)

// OpenStore returns the document store named by cfg.StoreDriver. The
// Postgres store is migrated before it is opened.
func OpenStore(ctx context.Context, cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		slog.Warn("using the in-memory document store; data is lost on restart")
		return docstore.NewMemory(), nil

	case config.StoreFirestore:
		store, err := docstore.NewFirestore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, fmt.Errorf("while creating Firestore client: %w", err)
		}
		return store, nil

	case config.StorePostgres:
		migrator, err := database.NewMigrator(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("while creating migrator: %w", err)
		}
		err = migrator.Run(ctx)
		migrator.Close()
		if err != nil {
			return nil, fmt.Errorf("while running migrations: %w", err)
		}

		store, err := supabase.NewDatabaseClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("while creating database client: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// OpenObjects returns the attachment bucket and a func that releases it.
func OpenObjects(ctx context.Context, cfg *config.Config, sb *supabase.Client) (services.ObjectStore, func() error, error) {
	switch cfg.ObjectStoreDriver {
	case config.ObjectStoreSupabase:
		return sb.Storage(), func() error { return nil }, nil

	case config.ObjectStoreGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("while creating GCS client: %w", err)
		}
		return gcs.NewBucket(client, cfg.GCSBucket), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown object store driver %q", cfg.ObjectStoreDriver)
}

// OpenPublisher connects to the broker, or drops events when none is set.
func OpenPublisher(cfg *config.Config) (events.Publisher, func() error, error) {
	if cfg.AMQPURL == "" {
		slog.Info("AMQP_URL not set; domain events are dropped")
		return events.Nop{}, func() error { return nil }, nil
	}
	client, err := events.NewAMQPClient(cfg.AMQPURL, cfg.AMQPQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("while connecting to broker: %w", err)
	}
	return client, client.Close, nil
}
