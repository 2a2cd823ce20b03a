// Package payments wraps the hosted payment provider: creating checkout
// sessions and verifying the webhooks that report their outcome.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var ErrInvalidSignature = errors.New("webhook signature verification failed")

const EventCheckoutCompleted = string(stripe.EventTypeCheckoutSessionCompleted)

type SessionParams struct {
	Amount             int64
	Currency           string
	ProductName        string
	ProductDescription string
	SuccessURL         string
	CancelURL          string
	Metadata           map[string]string
	CustomerEmail      string
}

type Session struct {
	ID          string
	RedirectURL string
}

type CompletedCheckout struct {
	SessionID   string
	Metadata    map[string]string
	AmountTotal int64
	Currency    string
}

type Event struct {
	ID   string
	Type string
	// Checkout is set for completed checkout sessions only.
	Checkout *CompletedCheckout
}

type Gateway interface {
	CreateSession(ctx context.Context, params SessionParams) (*Session, error)
	// VerifyEvent authenticates a raw webhook body before anything in it is trusted.
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

type Stripe struct {
	sessions      *session.Client
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{
		sessions:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (s *Stripe) CreateSession(ctx context.Context, p SessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(p.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(p.ProductName),
						Description: stripe.String(p.ProductDescription),
					},
					UnitAmount: stripe.Int64(p.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}

	sess, err := s.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (s *Stripe) VerifyEvent(payload []byte, signature string) (*Event, error) {
	return VerifyStripeEvent(payload, signature, s.webhookSecret)
}

// VerifyStripeEvent checks the Stripe-Signature header against secret and
// decodes completed checkout sessions.
func VerifyStripeEvent(payload []byte, signature, secret string) (*Event, error) {
	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}
	evt, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &Event{ID: evt.ID, Type: string(evt.Type)}
	if evt.Type != stripe.EventTypeCheckoutSessionCompleted {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(evt.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	out.Checkout = &CompletedCheckout{
		SessionID:   cs.ID,
		Metadata:    cs.Metadata,
		AmountTotal: cs.AmountTotal,
		Currency:    string(cs.Currency),
	}
	return out, nil
}
