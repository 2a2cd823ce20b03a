package supabase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"design-portal-backend/internal/docstore"

	"github.com/lib/pq"
)

// DatabaseClient stores documents as JSONB rows in the Supabase Postgres
// database. Timestamps are written as fixed-width UTC strings so ordering by
// a JSON field sorts them chronologically.
type DatabaseClient struct {
	db       *sql.DB
	realtime *Realtime
	now      func() time.Time
}

func NewDatabaseClient(ctx context.Context, connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	realtime, err := NewRealtime(ctx, connectionString)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &DatabaseClient{
		db:       db,
		realtime: realtime,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (d *DatabaseClient) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !docstore.ValidCollection(collection) {
		return "", fmt.Errorf("%w: %q is not a collection", docstore.ErrInvalidPath, collection)
	}
	id := docstore.NewID()
	err := d.Batch(ctx, []docstore.Write{{Op: docstore.OpCreate, Path: docstore.Join(collection, id), Fields: fields}})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (d *DatabaseClient) Set(ctx context.Context, path string, fields map[string]any) error {
	return d.Batch(ctx, []docstore.Write{{Op: docstore.OpSet, Path: path, Fields: fields}})
}

func (d *DatabaseClient) Update(ctx context.Context, path string, fields map[string]any) error {
	return d.Batch(ctx, []docstore.Write{{Op: docstore.OpUpdate, Path: path, Fields: fields}})
}

func (d *DatabaseClient) Delete(ctx context.Context, path string) error {
	return d.Batch(ctx, []docstore.Write{{Op: docstore.OpDelete, Path: path}})
}

func (d *DatabaseClient) Get(ctx context.Context, path string) (*docstore.Document, error) {
	if _, _, err := docstore.Split(path); err != nil {
		return nil, err
	}
	doc, err := scanDocument(d.db.QueryRowContext(ctx, `
		SELECT path, id, data, create_time, update_time
		FROM documents
		WHERE path = $1
	`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}
	return doc, nil
}

func (d *DatabaseClient) List(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if !docstore.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q is not a collection", docstore.ErrInvalidPath, q.Collection)
	}

	direction := "ASC"
	if q.Direction == docstore.Desc {
		direction = "DESC"
	}
	query := `
		SELECT path, id, data, create_time, update_time
		FROM documents
		WHERE collection = $1
	`
	args := []any{q.Collection}
	if q.OrderBy != "" {
		query += fmt.Sprintf(" ORDER BY data -> $2::text %s NULLS LAST, id %s", direction, direction)
		args = append(args, q.OrderBy)
	} else {
		query += " ORDER BY id"
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.Collection, err)
	}
	return docs, nil
}

// Batch applies every write in one transaction.
func (d *DatabaseClient) Batch(ctx context.Context, writes []docstore.Write) error {
	for _, w := range writes {
		if _, _, err := docstore.Split(w.Path); err != nil {
			return err
		}
	}
	return d.inTx(ctx, func(tx *sql.Tx) error {
		now := d.now()
		for _, w := range writes {
			if err := applyWrite(ctx, tx, w, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// Mutate serializes on the document path with a transaction-scoped advisory
// lock, which also covers documents that do not exist yet.
func (d *DatabaseClient) Mutate(ctx context.Context, path string, fn docstore.MutateFunc) error {
	if _, _, err := docstore.Split(path); err != nil {
		return err
	}
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, path); err != nil {
			return fmt.Errorf("failed to lock %s: %w", path, err)
		}

		current, err := scanDocument(tx.QueryRowContext(ctx, `
			SELECT path, id, data, create_time, update_time
			FROM documents
			WHERE path = $1
			FOR UPDATE
		`, path))
		if errors.Is(err, sql.ErrNoRows) {
			current = nil
		} else if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		fields, err := fn(current)
		if err != nil || fields == nil {
			return err
		}

		op := docstore.OpUpdate
		if current == nil {
			op = docstore.OpSet
		}
		return applyWrite(ctx, tx, docstore.Write{Op: op, Path: path, Fields: fields}, d.now())
	})
}

// Subscribe re-runs q whenever the database reports a change to its
// collection.
func (d *DatabaseClient) Subscribe(ctx context.Context, q docstore.Query, fn docstore.SnapshotFunc) (func(), error) {
	if !docstore.ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q is not a collection", docstore.ErrInvalidPath, q.Collection)
	}
	sub := docstore.NewSubscription(ctx, q, d.List, fn)
	d.realtime.add(sub)
	return sub.Stop, nil
}

func (d *DatabaseClient) Close() error {
	return errors.Join(d.realtime.Close(), d.db.Close())
}

func (d *DatabaseClient) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func applyWrite(ctx context.Context, tx *sql.Tx, w docstore.Write, now time.Time) error {
	collection, id, _ := docstore.Split(w.Path)

	if w.Op == docstore.OpDelete {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE path = $1`, w.Path); err != nil {
			return fmt.Errorf("failed to delete %s: %w", w.Path, err)
		}
		return nil
	}

	data, err := encodeFields(w.Fields, now)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", w.Path, err)
	}

	switch w.Op {
	case docstore.OpCreate:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (path, collection, id, data, create_time, update_time)
			VALUES ($1, $2, $3, $4, $5, $5)
		`, w.Path, collection, id, data, now)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, w.Path)
		}
	case docstore.OpSet:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (path, collection, id, data, create_time, update_time)
			VALUES ($1, $2, $3, $4, $5, $5)
			ON CONFLICT (path) DO UPDATE SET data = EXCLUDED.data, update_time = EXCLUDED.update_time
		`, w.Path, collection, id, data, now)
	case docstore.OpUpdate:
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
			UPDATE documents
			SET data = data || $2::jsonb, update_time = $3
			WHERE path = $1
		`, w.Path, data, now)
		if err == nil {
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("%w: %s", docstore.ErrNotFound, w.Path)
			}
		}
	default:
		return fmt.Errorf("unknown write op %d for %s", w.Op, w.Path)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", w.Path, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*docstore.Document, error) {
	var (
		doc  docstore.Document
		data []byte
	)
	if err := row.Scan(&doc.Path, &doc.ID, &data, &doc.CreateTime, &doc.UpdateTime); err != nil {
		return nil, err
	}
	doc.Fields = map[string]any{}
	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", doc.Path, err)
	}
	return &doc, nil
}

// encodeFields resolves server timestamps and renders times in
// docstore.TimeLayout. The result is passed as text; lib/pq would send a
// []byte as bytea.
func encodeFields(fields map[string]any, now time.Time) (string, error) {
	data, err := json.Marshal(encodeValue(fields, now))
	return string(data), err
}

func encodeValue(v any, now time.Time) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = encodeValue(inner, now)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = encodeValue(inner, now)
		}
		return out
	case time.Time:
		return x.UTC().Format(docstore.TimeLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(docstore.TimeLayout)
	}
	if v == docstore.ServerTimestamp {
		return now.Format(docstore.TimeLayout)
	}
	return v
}
