// Command notifier consumes portal events from the broker and sends the
// matching e-mails through SendGrid.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"design-portal-backend/internal/bootstrap"
	"design-portal-backend/internal/config"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/notify"
	"design-portal-backend/internal/services"
)

func main() {
	slog.Info("Starting up")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := do(ctx); err != nil {
		slog.ErrorContext(ctx, "Error", slog.Any("err", err))
		os.Exit(255)
	}
}

func do(ctx context.Context) error {
	cfg, err := config.LoadNotifier()
	if err != nil {
		return err
	}
	slog.Info("Config",
		slog.String("store-driver", cfg.StoreDriver),
		slog.String("amqp-queue", cfg.AMQPQueue),
		slog.String("from", cfg.NotifyFromEmail),
	)

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	broker, err := events.NewAMQPClient(cfg.AMQPURL, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("while connecting to broker: %w", err)
	}
	defer broker.Close()

	notifier := notify.New(notify.NewSendGrid(cfg.SendGridAPIKey), services.NewProfileService(store), notify.Config{
		FromEmail:     cfg.NotifyFromEmail,
		DesignerEmail: cfg.DesignerEmail,
		SiteURL:       cfg.PublicSiteURL,
	})

	slog.InfoContext(ctx, "Consuming events", slog.String("queue", cfg.AMQPQueue))
	if err := broker.Consume(ctx, notifier.Handle); err != nil && ctx.Err() == nil {
		return fmt.Errorf("while consuming events: %w", err)
	}
	return nil
}
