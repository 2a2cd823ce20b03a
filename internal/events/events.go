// Package events carries domain events from the API process to background
// consumers such as the notifier.
package events

import (
	"context"
	"sync"
	"time"
)

const (
	ProjectUnlocked = "project.unlocked"
	DimensionsAdded = "dimensions.added"
	MessagePosted   = "message.posted"
)

type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

func New(eventType string, payload map[string]any) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of one type, oldest first.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Event payloads

func ProjectUnlockedPayload(userID, projectID, paymentID string, amount int64, currency string) map[string]any {
	return map[string]any{
		"user_id":    userID,
		"project_id": projectID,
		"payment_id": paymentID,
		"amount":     amount,
		"currency":   currency,
	}
}

func DimensionsAddedPayload(userID, projectID string, count int, summary string) map[string]any {
	return map[string]any{
		"user_id":    userID,
		"project_id": projectID,
		"count":      count,
		"summary":    summary,
	}
}

func MessagePostedPayload(userID, projectID, messageID, sender, text string) map[string]any {
	return map[string]any{
		"user_id":    userID,
		"project_id": projectID,
		"message_id": messageID,
		"sender":     sender,
		"text":       text,
	}
}
