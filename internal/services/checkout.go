package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/metrics"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/payments"
	"design-portal-backend/internal/retry"
)

const productDescription = "Download all design files for this project"

type CheckoutRequest struct {
	UserID    string
	ProjectID string
	// Amount in minor units; zero means the project's price.
	Amount int64
	Email  string
}

// WebhookOutcome says what a verified webhook delivery did.
type WebhookOutcome string

const (
	OutcomeUnlocked  WebhookOutcome = "unlocked"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
)

// CheckoutService sells access to a project's files. Sessions are created on
// request; only a verified completion webhook ever marks a project paid.
type CheckoutService struct {
	store     docstore.Store
	gateway   payments.Gateway
	publisher events.Publisher
	currency  string
	siteURL   string
	retry     retry.Policy
}

func NewCheckoutService(store docstore.Store, gateway payments.Gateway, publisher events.Publisher, currency, siteURL string) *CheckoutService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CheckoutService{
		store:     store,
		gateway:   gateway,
		publisher: publisher,
		currency:  strings.ToLower(currency),
		siteURL:   strings.TrimRight(siteURL, "/"),
		retry:     retry.Default,
	}
}

func (s *CheckoutService) WithRetryPolicy(p retry.Policy) *CheckoutService {
	s.retry = p
	return s
}

// CreateCheckout opens a single line-item payment session for the project
// and returns where to send the customer.
func (s *CheckoutService) CreateCheckout(ctx context.Context, req CheckoutRequest) (*payments.Session, error) {
	if req.UserID == "" || req.ProjectID == "" {
		return nil, invalid("user id and project id are required")
	}
	if req.Amount < 0 {
		return nil, invalid("amount must be positive")
	}

	doc, err := s.store.Get(ctx, docstore.ProjectPath(req.UserID, req.ProjectID))
	if err != nil {
		return nil, err
	}
	project, err := decodeProject(*doc, req.UserID)
	if err != nil {
		return nil, err
	}
	if project.Paid {
		return nil, ErrAlreadyPaid
	}

	amount := req.Amount
	if amount == 0 {
		amount = project.Price
	}
	if amount <= 0 {
		return nil, invalid("project has no price")
	}

	sess, err := s.gateway.CreateSession(ctx, s.SessionParams(project, amount, req.Email))
	if err != nil {
		metrics.CheckoutSessions.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}
	metrics.CheckoutSessions.WithLabelValues(metrics.OutcomeOK).Inc()

	slog.InfoContext(ctx, "checkout session created",
		slog.String("user_id", req.UserID), slog.String("project_id", req.ProjectID),
		slog.String("session_id", sess.ID), slog.Int64("amount", amount))
	return sess, nil
}

// SessionParams builds the provider request for a project purchase.
func (s *CheckoutService) SessionParams(project *models.Project, amount int64, email string) payments.SessionParams {
	return payments.SessionParams{
		Amount:             amount,
		Currency:           s.currency,
		ProductName:        "Access to: " + project.Title,
		ProductDescription: productDescription,
		SuccessURL:         s.siteURL + "/dashboard?payment=success&project_id=" + url.QueryEscape(project.ID),
		CancelURL:          s.siteURL + "/dashboard?payment=cancelled",
		Metadata: map[string]string{
			"userId":    project.OwnerID,
			"projectId": project.ID,
		},
		CustomerEmail: email,
	}
}

// HandleWebhook verifies a delivery and applies it. A payments.ErrInvalidSignature
// error means the delivery must be rejected; any other error means it should
// be retried by the provider.
func (s *CheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookOutcome, error) {
	evt, err := s.gateway.VerifyEvent(payload, signature)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(metrics.OutcomeRejected).Inc()
		return "", err
	}

	if evt.Type != payments.EventCheckoutCompleted || evt.Checkout == nil {
		metrics.WebhookEvents.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return OutcomeIgnored, nil
	}

	userID := evt.Checkout.Metadata["userId"]
	projectID := evt.Checkout.Metadata["projectId"]
	if userID == "" || projectID == "" {
		slog.WarnContext(ctx, "completed checkout without project metadata",
			slog.String("session_id", evt.Checkout.SessionID))
		metrics.WebhookEvents.WithLabelValues(metrics.OutcomeIgnored).Inc()
		return OutcomeIgnored, nil
	}

	outcome, err := s.Unlock(ctx, userID, projectID, *evt.Checkout)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(metrics.OutcomeError).Inc()
		return "", err
	}
	metrics.WebhookEvents.WithLabelValues(metrics.OutcomeOK).Inc()
	return outcome, nil
}

// Unlock marks the project paid for one checkout session. Replaying the same
// session changes nothing; a project is never marked unpaid.
func (s *CheckoutService) Unlock(ctx context.Context, userID, projectID string, checkout payments.CompletedCheckout) (WebhookOutcome, error) {
	path := docstore.ProjectPath(userID, projectID)
	var outcome WebhookOutcome

	err := s.retry.Do(ctx, func() error {
		return s.store.Mutate(ctx, path, func(current *docstore.Document) (map[string]any, error) {
			if current == nil {
				return nil, retry.Permanent(fmt.Errorf("%w: %s", docstore.ErrNotFound, path))
			}
			project, err := decodeProject(*current, userID)
			if err != nil {
				return nil, retry.Permanent(err)
			}

			if project.Paid {
				outcome = OutcomeDuplicate
				if project.PaymentID != checkout.SessionID {
					slog.WarnContext(ctx, "project already paid by another session",
						slog.String("project_id", projectID),
						slog.String("paid_session", project.PaymentID),
						slog.String("session_id", checkout.SessionID))
				}
				return nil, nil
			}

			outcome = OutcomeUnlocked
			return map[string]any{
				"paid":            true,
				"paymentId":       checkout.SessionID,
				"paymentDate":     docstore.ServerTimestamp,
				"paymentAmount":   checkout.AmountTotal,
				"paymentCurrency": checkout.Currency,
			}, nil
		})
	})
	if errors.Is(err, docstore.ErrNotFound) {
		// The project is gone; a redelivery would not change that.
		slog.WarnContext(ctx, "completed checkout for unknown project",
			slog.String("user_id", userID), slog.String("project_id", projectID))
		return OutcomeIgnored, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "while unlocking project",
			slog.String("project_id", projectID), slog.Any("err", err))
		return "", fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	if outcome == OutcomeUnlocked {
		slog.InfoContext(ctx, "project unlocked",
			slog.String("user_id", userID), slog.String("project_id", projectID),
			slog.String("session_id", checkout.SessionID))
		event := events.New(events.ProjectUnlocked, events.ProjectUnlockedPayload(
			userID, projectID, checkout.SessionID, checkout.AmountTotal, checkout.Currency))
		if err := s.publisher.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "while publishing unlock event", slog.Any("err", err))
		}
	}
	return outcome, nil
}
