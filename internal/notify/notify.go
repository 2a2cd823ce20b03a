// Package notify turns domain events into e-mails.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"design-portal-backend/internal/events"
	"design-portal-backend/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one prepared message.
type Sender interface {
	Send(ctx context.Context, message *mail.SGMailV3) error
}

type SendGrid struct {
	client *sendgrid.Client
}

func NewSendGrid(apiKey string) *SendGrid {
	return &SendGrid{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGrid) Send(ctx context.Context, message *mail.SGMailV3) error {
	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("while sending mail through SendGrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2XX response while sending mail through SendGrid: %d %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// Profiles looks up the customer an event is about.
type Profiles interface {
	Get(ctx context.Context, uid string) (*models.User, error)
}

type Config struct {
	FromEmail     string
	DesignerEmail string
	SiteURL       string
}

type Notifier struct {
	sender   Sender
	profiles Profiles
	cfg      Config
}

func New(sender Sender, profiles Profiles, cfg Config) *Notifier {
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Notifier{sender: sender, profiles: profiles, cfg: cfg}
}

// Handle sends the e-mails for one event. Unknown event types are skipped.
func (n *Notifier) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.ProjectUnlocked:
		return n.projectUnlocked(ctx, event.Payload)
	case events.MessagePosted:
		return n.messagePosted(ctx, event.Payload)
	case events.DimensionsAdded:
		return n.dimensionsAdded(ctx, event.Payload)
	default:
		slog.DebugContext(ctx, "no notification for event", slog.String("type", event.Type))
		return nil
	}
}

const receiptText = `Hi {{.Name}},

Thanks for your payment of {{.Amount}}. The design files for your project are now unlocked.

View them here: {{.Link}}
`

const paymentAlertText = `{{.Email}} paid {{.Amount}} for project {{.ProjectID}} (session {{.PaymentID}}).
`

const messageAlertText = `{{.Email}} sent a new message{{if .ProjectID}} on project {{.ProjectID}}{{end}}:

{{.Text}}
`

const dimensionsAlertText = `{{.Email}} added {{.Count}} measurement(s) to project {{.ProjectID}}:

{{.Summary}}
`

var (
	receiptTemplate         = template.Must(template.New("receipt").Parse(receiptText))
	paymentAlertTemplate    = template.Must(template.New("payment").Parse(paymentAlertText))
	messageAlertTemplate    = template.Must(template.New("message").Parse(messageAlertText))
	dimensionsAlertTemplate = template.Must(template.New("dimensions").Parse(dimensionsAlertText))
)

func (n *Notifier) projectUnlocked(ctx context.Context, p map[string]any) error {
	userID := str(p["user_id"])
	projectID := str(p["project_id"])
	user, err := n.profiles.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("while looking up customer %s: %w", userID, err)
	}

	data := map[string]any{
		"Name":      displayName(user),
		"Email":     user.Email,
		"Amount":    FormatAmount(integer(p["amount"]), str(p["currency"])),
		"ProjectID": projectID,
		"PaymentID": str(p["payment_id"]),
		"Link":      n.cfg.SiteURL + "/dashboard?project_id=" + projectID,
	}

	if user.Email != "" {
		if err := n.send(ctx, user.Email, "Your design files are unlocked", receiptTemplate, data); err != nil {
			return err
		}
	}
	if n.cfg.DesignerEmail != "" {
		return n.send(ctx, n.cfg.DesignerEmail, "Payment received", paymentAlertTemplate, data)
	}
	return nil
}

// messagePosted alerts the designer about customer messages only.
func (n *Notifier) messagePosted(ctx context.Context, p map[string]any) error {
	if str(p["sender"]) != string(models.RoleCustomer) || n.cfg.DesignerEmail == "" {
		return nil
	}
	data := map[string]any{
		"Email":     n.customerEmail(ctx, str(p["user_id"])),
		"ProjectID": str(p["project_id"]),
		"Text":      str(p["text"]),
	}
	return n.send(ctx, n.cfg.DesignerEmail, "New message from a customer", messageAlertTemplate, data)
}

func (n *Notifier) dimensionsAdded(ctx context.Context, p map[string]any) error {
	if n.cfg.DesignerEmail == "" {
		return nil
	}
	data := map[string]any{
		"Email":     n.customerEmail(ctx, str(p["user_id"])),
		"ProjectID": str(p["project_id"]),
		"Count":     integer(p["count"]),
		"Summary":   str(p["summary"]),
	}
	return n.send(ctx, n.cfg.DesignerEmail, "New measurements added", dimensionsAlertTemplate, data)
}

func (n *Notifier) customerEmail(ctx context.Context, userID string) string {
	user, err := n.profiles.Get(ctx, userID)
	if err != nil || user.Email == "" {
		return "A customer"
	}
	return user.Email
}

func (n *Notifier) send(ctx context.Context, to, subject string, tmpl *template.Template, data any) error {
	message := mail.NewV3Mail()
	message.From = mail.NewEmail("Design Portal", n.cfg.FromEmail)
	message.Subject = subject

	personalization := mail.NewPersonalization()
	personalization.To = append(personalization.To, mail.NewEmail("", to))
	message.Personalizations = append(message.Personalizations, personalization)

	textContent := &bytes.Buffer{}
	if err := tmpl.Execute(textContent, data); err != nil {
		return fmt.Errorf("while templating plain-text email content: %w", err)
	}
	message.Content = append(message.Content, mail.NewContent("text/plain", textContent.String()))

	return n.sender.Send(ctx, message)
}

// FormatAmount renders minor units, e.g. 500 gbp as "5.00 GBP".
func FormatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(currency))
}

func displayName(u *models.User) string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return "there"
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// integer accepts the number types a payload holds before and after a JSON
// round trip.
func integer(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		return int64(x)
	}
	return 0
}
