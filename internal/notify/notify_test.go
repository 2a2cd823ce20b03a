package notify_test

import (
	"context"
	"encoding/json"
	"testing"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/identity"
	"design-portal-backend/internal/notify"
	"design-portal-backend/internal/services"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	sent []sentMail
}

func (f *fakeSender) Send(_ context.Context, m *mail.SGMailV3) error {
	f.sent = append(f.sent, sentMail{
		to:      m.Personalizations[0].To[0].Address,
		subject: m.Subject,
		body:    m.Content[0].Value,
	})
	return nil
}

func newNotifier(t *testing.T) (*notify.Notifier, *fakeSender) {
	t.Helper()
	profiles := services.NewProfileService(docstore.NewMemory())
	_, err := profiles.Ensure(context.Background(), identity.Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"})
	require.NoError(t, err)

	sender := &fakeSender{}
	return notify.New(sender, profiles, notify.Config{
		FromEmail:     "portal@example.com",
		DesignerEmail: "designer@example.com",
		SiteURL:       "https://portal.example.com/",
	}), sender
}

// roundTrip mimics the queue, which turns numbers into float64.
func roundTrip(t *testing.T, e events.Event) events.Event {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	var out events.Event
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestNotifier_ProjectUnlocked(t *testing.T) {
	n, sender := newNotifier(t)
	event := roundTrip(t, events.New(events.ProjectUnlocked,
		events.ProjectUnlockedPayload("u1", "p1", "cs_1", 500, "gbp")))

	require.NoError(t, n.Handle(context.Background(), event))
	require.Len(t, sender.sent, 2)

	receipt := sender.sent[0]
	assert.Equal(t, "ada@example.com", receipt.to)
	assert.Contains(t, receipt.body, "Hi Ada")
	assert.Contains(t, receipt.body, "5.00 GBP")
	assert.Contains(t, receipt.body, "https://portal.example.com/dashboard?project_id=p1")

	assert.Equal(t, "designer@example.com", sender.sent[1].to)
	assert.Contains(t, sender.sent[1].body, "cs_1")
}

func TestNotifier_MessagePosted(t *testing.T) {
	n, sender := newNotifier(t)
	ctx := context.Background()

	fromDesigner := events.New(events.MessagePosted, events.MessagePostedPayload("u1", "", "m1", "designer", "hello"))
	require.NoError(t, n.Handle(ctx, fromDesigner))
	assert.Empty(t, sender.sent)

	fromCustomer := events.New(events.MessagePosted, events.MessagePostedPayload("u1", "p1", "m2", "customer", "Is the plan ready?"))
	require.NoError(t, n.Handle(ctx, fromCustomer))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "designer@example.com", sender.sent[0].to)
	assert.Contains(t, sender.sent[0].body, "ada@example.com sent a new message on project p1")
	assert.Contains(t, sender.sent[0].body, "Is the plan ready?")
}

func TestNotifier_DimensionsAdded(t *testing.T) {
	n, sender := newNotifier(t)
	event := roundTrip(t, events.New(events.DimensionsAdded,
		events.DimensionsAddedPayload("u1", "p1", 2, "📏 Dimensions Added:\n\n1. 2450mm - Wall 1")))

	require.NoError(t, n.Handle(context.Background(), event))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].body, "added 2 measurement(s)")
	assert.Contains(t, sender.sent[0].body, "1. 2450mm - Wall 1")
}

func TestNotifier_UnknownEvent(t *testing.T) {
	n, sender := newNotifier(t)
	require.NoError(t, n.Handle(context.Background(), events.New("project.renamed", nil)))
	assert.Empty(t, sender.sent)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "5.00 GBP", notify.FormatAmount(500, "gbp"))
	assert.Equal(t, "12.05 USD", notify.FormatAmount(1205, "usd"))
}
