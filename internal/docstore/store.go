// Package docstore defines the hierarchical document store the portal keeps
// its users, projects, messages and dimensions in.
//
// Paths alternate collection and document segments, exactly like the hosted
// document databases the backends wrap:
//
//	users/{uid}
//	users/{uid}/messages/{mid}
//	users/{uid}/projects/{pid}
//	users/{uid}/projects/{pid}/messages/{mid}
//	users/{uid}/projects/{pid}/dimensions/{did}
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
	ErrInvalidPath   = errors.New("invalid document path")
)

type serverTimestamp struct{}

// ServerTimestamp is a field value that each backend replaces with its own
// commit time.
var ServerTimestamp = serverTimestamp{}

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Query selects every document of one collection, ordered by a single field.
type Query struct {
	Collection string
	OrderBy    string
	Direction  Direction
}

type Document struct {
	ID         string
	Path       string
	Fields     map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

type WriteOp int

const (
	OpCreate WriteOp = iota
	OpSet
	OpUpdate
	OpDelete
)

// Write is one element of an atomic batch.
type Write struct {
	Op     WriteOp
	Path   string
	Fields map[string]any
}

// MutateFunc receives the current document (nil if it does not exist) and
// returns the fields to update. Returning nil fields skips the write.
type MutateFunc func(current *Document) (map[string]any, error)

// SnapshotFunc receives the full ordered result set of a query.
type SnapshotFunc func(docs []Document)

type Store interface {
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	Set(ctx context.Context, path string, fields map[string]any) error
	Get(ctx context.Context, path string) (*Document, error)
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, q Query) ([]Document, error)

	// Batch commits every write or none of them.
	Batch(ctx context.Context, writes []Write) error

	// Mutate runs a read-modify-write of one document inside the backend's
	// transaction.
	Mutate(ctx context.Context, path string, fn MutateFunc) error

	// Subscribe delivers the current result set immediately and again after
	// every change to the collection. The returned func stops delivery.
	Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error)

	Close() error
}
