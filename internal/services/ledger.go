package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/retry"
)

const (
	summaryHeading   = "📏 Dimensions Added:"
	emptyBatchReason = "Please add at least one measurement with a value and label"
)

type DimensionInput struct {
	Value string
	Label string
	Notes string
}

type AppendResult struct {
	Dimensions       []models.Dimension
	SummaryMessageID string
	Summary          string
}

// Ledger keeps a project's dimensions numbered 1..N.
type Ledger struct {
	store     docstore.Store
	publisher events.Publisher
	retry     retry.Policy
	locks     *keyedMutex
}

func NewLedger(store docstore.Store, publisher events.Publisher) *Ledger {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		retry:     retry.Default,
		locks:     newKeyedMutex(),
	}
}

// WithRetryPolicy replaces the backoff used for store writes.
func (l *Ledger) WithRetryPolicy(p retry.Policy) *Ledger {
	l.retry = p
	return l
}

// Append numbers the acceptable entries after the current maximum and writes
// them together with a summary message into the project thread. Entries
// without both a value and a label are dropped.
func (l *Ledger) Append(ctx context.Context, scope Scope, entries []DimensionInput) (*AppendResult, error) {
	if err := scope.validateProject(); err != nil {
		return nil, err
	}

	accepted := acceptEntries(entries)
	if len(accepted) == 0 {
		return nil, invalid(emptyBatchReason)
	}

	unlock := l.locks.Lock(docstore.ProjectPath(scope.UserID, scope.ProjectID))
	defer unlock()

	if _, err := l.store.Get(ctx, docstore.ProjectPath(scope.UserID, scope.ProjectID)); err != nil {
		return nil, err
	}

	existing, err := l.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	next := 1
	for _, d := range existing {
		if d.Order >= next {
			next = d.Order + 1
		}
	}

	collection := docstore.DimensionsPath(scope.UserID, scope.ProjectID)
	now := time.Now().UTC()
	dims := make([]models.Dimension, 0, len(accepted))
	writes := make([]docstore.Write, 0, len(accepted)+1)
	for _, a := range accepted {
		d := models.Dimension{
			ID:                docstore.NewID(),
			MeasurementNumber: next,
			Order:             next,
			Value:             a.value,
			Label:             a.label,
			Notes:             a.notes,
			CreatedAt:         now,
		}
		next++
		dims = append(dims, d)

		// Set rather than Create so a retried batch rewrites the same documents.
		writes = append(writes, docstore.Write{
			Op:   docstore.OpSet,
			Path: docstore.Join(collection, d.ID),
			Fields: map[string]any{
				"measurementNumber": d.MeasurementNumber,
				"order":             d.Order,
				"value":             d.Value,
				"label":             d.Label,
				"notes":             notesField(d.Notes),
				"createdAt":         docstore.ServerTimestamp,
			},
		})
	}

	summary := Summarize(dims)
	messageID := docstore.NewID()
	writes = append(writes, docstore.Write{
		Op:     docstore.OpSet,
		Path:   docstore.Join(scope.MessagesCollection(), messageID),
		Fields: messageFields(summary, models.RoleCustomer, nil),
	})

	err = l.retry.Do(ctx, func() error {
		return l.store.Batch(ctx, writes)
	})
	if err != nil {
		slog.ErrorContext(ctx, "while saving dimensions",
			slog.String("user_id", scope.UserID), slog.String("project_id", scope.ProjectID), slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	event := events.New(events.DimensionsAdded,
		events.DimensionsAddedPayload(scope.UserID, scope.ProjectID, len(dims), summary))
	if err := l.publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "while publishing dimensions event", slog.Any("err", err))
	}

	return &AppendResult{Dimensions: dims, SummaryMessageID: messageID, Summary: summary}, nil
}

// Update overwrites value, label and notes. The number is never touched.
func (l *Ledger) Update(ctx context.Context, scope Scope, dimensionID string, in DimensionInput) error {
	if err := scope.validateProject(); err != nil {
		return err
	}
	value, label, ok := parseEntry(in)
	if !ok {
		return invalid("Value and label are required")
	}

	path := docstore.Join(docstore.DimensionsPath(scope.UserID, scope.ProjectID), dimensionID)
	fields := map[string]any{
		"value": value,
		"label": label,
		"notes": notesField(trimmedNotes(in.Notes)),
	}
	return l.retry.Do(ctx, func() error {
		err := l.store.Update(ctx, path, fields)
		if errors.Is(err, docstore.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	})
}

// Remove deletes a dimension and renumbers the rest by their prior order in
// the same batch. Removing an unknown id only repairs the numbering.
func (l *Ledger) Remove(ctx context.Context, scope Scope, dimensionID string) error {
	if err := scope.validateProject(); err != nil {
		return err
	}

	unlock := l.locks.Lock(docstore.ProjectPath(scope.UserID, scope.ProjectID))
	defer unlock()

	collection := docstore.DimensionsPath(scope.UserID, scope.ProjectID)
	err := l.retry.Do(ctx, func() error {
		current, err := l.List(ctx, scope)
		if err != nil {
			return err
		}

		var remaining []models.Dimension
		writes := []docstore.Write{{Op: docstore.OpDelete, Path: docstore.Join(collection, dimensionID)}}
		for _, d := range current {
			if d.ID != dimensionID {
				remaining = append(remaining, d)
			}
		}
		for _, d := range Renumber(remaining) {
			writes = append(writes, docstore.Write{
				Op:   docstore.OpUpdate,
				Path: docstore.Join(collection, d.ID),
				Fields: map[string]any{
					"measurementNumber": d.Order,
					"order":             d.Order,
				},
			})
		}
		return l.store.Batch(ctx, writes)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// List returns the project's dimensions in ascending order.
func (l *Ledger) List(ctx context.Context, scope Scope) ([]models.Dimension, error) {
	if err := scope.validateProject(); err != nil {
		return nil, err
	}
	docs, err := l.store.List(ctx, l.query(scope))
	if err != nil {
		return nil, err
	}
	return decodeDimensions(docs)
}

func (l *Ledger) Subscribe(ctx context.Context, scope Scope, fn func([]models.Dimension)) (func(), error) {
	if err := scope.validateProject(); err != nil {
		return nil, err
	}
	return l.store.Subscribe(ctx, l.query(scope), func(docs []docstore.Document) {
		dims, err := decodeDimensions(docs)
		if err != nil {
			slog.WarnContext(ctx, "while decoding dimensions snapshot", slog.Any("err", err))
			return
		}
		fn(dims)
	})
}

func (l *Ledger) query(scope Scope) docstore.Query {
	return docstore.Query{
		Collection: docstore.DimensionsPath(scope.UserID, scope.ProjectID),
		OrderBy:    "order",
		Direction:  docstore.Asc,
	}
}

// Renumber assigns 1..N by prior order, ties broken by id, and returns only
// the dimensions whose number changed, carrying their new number.
func Renumber(dims []models.Dimension) []models.Dimension {
	sorted := append([]models.Dimension(nil), dims...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].ID < sorted[j].ID
	})

	var changed []models.Dimension
	for i, d := range sorted {
		want := i + 1
		if d.Order != want || d.MeasurementNumber != want {
			d.Order = want
			d.MeasurementNumber = want
			changed = append(changed, d)
		}
	}
	return changed
}

// Summarize renders the thread message posted alongside new dimensions.
func Summarize(dims []models.Dimension) string {
	var b strings.Builder
	b.WriteString(summaryHeading)
	b.WriteString("\n\n")
	for _, d := range dims {
		fmt.Fprintf(&b, "%d. %dmm - %s", d.Order, d.Value, d.Label)
		if d.Notes != nil {
			fmt.Fprintf(&b, "\n   Notes: %s", *d.Notes)
		}
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

type acceptedEntry struct {
	value int
	label string
	notes *string
}

func acceptEntries(entries []DimensionInput) []acceptedEntry {
	var out []acceptedEntry
	for _, e := range entries {
		value, label, ok := parseEntry(e)
		if !ok {
			continue
		}
		out = append(out, acceptedEntry{value: value, label: label, notes: trimmedNotes(e.Notes)})
	}
	return out
}

// parseEntry requires a non-blank label and a value that starts with a
// number. Anything after the leading integer is ignored, so "2450.5" and
// "2450mm" both store 2450.
func parseEntry(e DimensionInput) (int, string, bool) {
	label := strings.TrimSpace(e.Label)
	raw := strings.TrimSpace(e.Value)
	if label == "" || raw == "" {
		return 0, "", false
	}
	value, ok := leadingInt(raw)
	if !ok {
		return 0, "", false
	}
	return value, label, true
}

func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func trimmedNotes(notes string) *string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil
	}
	return &notes
}

func notesField(notes *string) any {
	if notes == nil {
		return nil
	}
	return *notes
}

func decodeDimensions(docs []docstore.Document) ([]models.Dimension, error) {
	dims := make([]models.Dimension, 0, len(docs))
	for _, doc := range docs {
		var d models.Dimension
		if err := docstore.Decode(doc, &d); err != nil {
			return nil, err
		}
		d.ID = doc.ID
		dims = append(dims, d)
	}
	return dims, nil
}
