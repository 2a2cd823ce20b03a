package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/retry"
)

type PostInput struct {
	Text       string
	Sender     models.Role
	Attachment *models.FileRef
}

// Thread is the typed view of one scope's messages, newest first.
type Thread struct {
	store     docstore.Store
	publisher events.Publisher
	retry     retry.Policy
}

func NewThread(store docstore.Store, publisher events.Publisher) *Thread {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Thread{store: store, publisher: publisher, retry: retry.Default}
}

func (t *Thread) WithRetryPolicy(p retry.Policy) *Thread {
	t.retry = p
	return t
}

func (t *Thread) Post(ctx context.Context, scope Scope, in PostInput) (*models.Message, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if !in.Sender.Valid() {
		return nil, invalid("sender must be customer or designer")
	}
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Attachment == nil {
		return nil, invalid("Message text or an attachment is required")
	}

	id := docstore.NewID()
	path := docstore.Join(scope.MessagesCollection(), id)
	fields := messageFields(text, in.Sender, in.Attachment)
	err := t.retry.Do(ctx, func() error {
		return t.store.Set(ctx, path, fields)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	event := events.New(events.MessagePosted,
		events.MessagePostedPayload(scope.UserID, scope.ProjectID, id, string(in.Sender), text))
	if err := t.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "while publishing message event", slog.Any("err", err))
	}

	return &models.Message{
		ID:        id,
		Text:      text,
		Sender:    in.Sender,
		CreatedAt: time.Now().UTC(),
		File:      in.Attachment,
	}, nil
}

func (t *Thread) List(ctx context.Context, scope Scope) ([]models.Message, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	docs, err := t.store.List(ctx, t.query(scope))
	if err != nil {
		return nil, err
	}
	return decodeMessages(docs)
}

func (t *Thread) Get(ctx context.Context, scope Scope, messageID string) (*models.Message, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	doc, err := t.store.Get(ctx, docstore.Join(scope.MessagesCollection(), messageID))
	if err != nil {
		return nil, err
	}
	return decodeMessage(*doc)
}

// Subscribe replays the thread and keeps pushing it after every change until
// the returned func is called.
func (t *Thread) Subscribe(ctx context.Context, scope Scope, fn func([]models.Message)) (func(), error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	return t.store.Subscribe(ctx, t.query(scope), func(docs []docstore.Document) {
		msgs, err := decodeMessages(docs)
		if err != nil {
			slog.WarnContext(ctx, "while decoding messages snapshot", slog.Any("err", err))
			return
		}
		fn(msgs)
	})
}

// Edit replaces the text of a message the caller's role authored.
func (t *Thread) Edit(ctx context.Context, scope Scope, messageID string, role models.Role, text string) error {
	if err := scope.validate(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)

	path := docstore.Join(scope.MessagesCollection(), messageID)
	return t.store.Mutate(ctx, path, func(current *docstore.Document) (map[string]any, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, path)
		}
		msg, err := decodeMessage(*current)
		if err != nil {
			return nil, err
		}
		if msg.Sender != role {
			return nil, ErrForbidden
		}
		if text == "" && msg.File == nil {
			return nil, invalid("Message text cannot be empty")
		}
		return map[string]any{"text": text}, nil
	})
}

// Delete removes a message the caller's role authored.
func (t *Thread) Delete(ctx context.Context, scope Scope, messageID string, role models.Role) error {
	msg, err := t.Get(ctx, scope, messageID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}
	if msg.Sender != role {
		return ErrForbidden
	}
	return t.store.Delete(ctx, docstore.Join(scope.MessagesCollection(), messageID))
}

func (t *Thread) query(scope Scope) docstore.Query {
	return docstore.Query{
		Collection: scope.MessagesCollection(),
		OrderBy:    "createdAt",
		Direction:  docstore.Desc,
	}
}

func messageFields(text string, sender models.Role, file *models.FileRef) map[string]any {
	fields := map[string]any{
		"text":      text,
		"sender":    string(sender),
		"createdAt": docstore.ServerTimestamp,
		"read":      false,
	}
	if file != nil {
		fields["file"] = map[string]any{
			"url":  file.URL,
			"name": file.Name,
			"type": file.Type,
			"path": file.Path,
		}
	}
	return fields
}

func decodeMessage(doc docstore.Document) (*models.Message, error) {
	var m models.Message
	if err := docstore.Decode(doc, &m); err != nil {
		return nil, err
	}
	m.ID = doc.ID
	return &m, nil
}

func decodeMessages(docs []docstore.Document) ([]models.Message, error) {
	msgs := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		m, err := decodeMessage(doc)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}
