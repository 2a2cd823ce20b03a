package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore stores documents in Cloud Firestore, whose collection layout the
// path helpers mirror one to one.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID string, opts ...option.ClientOption) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("while creating firestore client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !ValidCollection(collection) {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, collection)
	}
	id := NewID()
	if _, err := f.client.Collection(collection).Doc(id).Create(ctx, toFirestore(fields)); err != nil {
		return "", mapFirestoreError(err, Join(collection, id))
	}
	return id, nil
}

func (f *Firestore) Set(ctx context.Context, path string, fields map[string]any) error {
	if _, err := f.client.Doc(path).Set(ctx, toFirestore(fields)); err != nil {
		return mapFirestoreError(err, path)
	}
	return nil
}

func (f *Firestore) Get(ctx context.Context, path string) (*Document, error) {
	snap, err := f.client.Doc(path).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError(err, path)
	}
	doc := fromSnapshot(snap, path)
	return &doc, nil
}

func (f *Firestore) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, err := f.client.Doc(path).Update(ctx, toUpdates(fields)); err != nil {
		return mapFirestoreError(err, path)
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, path string) error {
	if _, err := f.client.Doc(path).Delete(ctx); err != nil {
		return mapFirestoreError(err, path)
	}
	return nil
}

func (f *Firestore) List(ctx context.Context, q Query) ([]Document, error) {
	snaps, err := f.query(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("while listing %s: %w", q.Collection, err)
	}
	return fromSnapshots(snaps, q.Collection), nil
}

func (f *Firestore) Batch(ctx context.Context, writes []Write) error {
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, w := range writes {
			ref := f.client.Doc(w.Path)
			if ref == nil {
				return fmt.Errorf("%w: %s", ErrInvalidPath, w.Path)
			}
			var err error
			switch w.Op {
			case OpCreate:
				err = tx.Create(ref, toFirestore(w.Fields))
			case OpSet:
				err = tx.Set(ref, toFirestore(w.Fields))
			case OpUpdate:
				err = tx.Update(ref, toUpdates(w.Fields))
			case OpDelete:
				err = tx.Delete(ref)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("while committing batch of %d writes: %w", len(writes), mapFirestoreError(err, ""))
	}
	return nil
}

func (f *Firestore) Mutate(ctx context.Context, path string, fn MutateFunc) error {
	ref := f.client.Doc(path)
	if ref == nil {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current *Document
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			doc := fromSnapshot(snap, path)
			current = &doc
		}

		fields, err := fn(current)
		if err != nil || fields == nil {
			return err
		}
		if current == nil {
			return tx.Set(ref, toFirestore(fields))
		}
		return tx.Update(ref, toUpdates(fields))
	})
	if err != nil {
		return mapFirestoreError(err, path)
	}
	return nil
}

func (f *Firestore) Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error) {
	if !ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, q.Collection)
	}

	ctx, cancel := context.WithCancel(ctx)
	it := f.query(q).Snapshots(ctx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				slog.ErrorContext(ctx, "firestore snapshot stream failed",
					slog.String("collection", q.Collection), slog.Any("err", err))
				return
			}

			snaps, err := snap.Documents.GetAll()
			if err != nil {
				slog.WarnContext(ctx, "while reading snapshot documents",
					slog.String("collection", q.Collection), slog.Any("err", err))
				continue
			}
			fn(fromSnapshots(snaps, q.Collection))
		}
	}()

	return cancel, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) query(q Query) firestore.Query {
	dir := firestore.Asc
	if q.Direction == Desc {
		dir = firestore.Desc
	}
	return f.client.Collection(q.Collection).OrderBy(q.OrderBy, dir)
}

func toFirestore(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == ServerTimestamp {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func toUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range toFirestore(fields) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return updates
}

func fromSnapshot(snap *firestore.DocumentSnapshot, path string) Document {
	return Document{
		ID:         snap.Ref.ID,
		Path:       path,
		Fields:     snap.Data(),
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}
}

func fromSnapshots(snaps []*firestore.DocumentSnapshot, collection string) []Document {
	docs := make([]Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, fromSnapshot(snap, Join(collection, snap.Ref.ID)))
	}
	return docs
}

func mapFirestoreError(err error, path string) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}
	return err
}
