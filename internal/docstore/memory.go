package docstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory is a process-local Store used for development and tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]*Document
	now  func() time.Time

	subsMu sync.Mutex
	subs   map[*Subscription]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string]*Document),
		now:  func() time.Time { return time.Now().UTC() },
		subs: make(map[*Subscription]struct{}),
	}
}

func (m *Memory) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if !ValidCollection(collection) {
		return "", fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, collection)
	}
	id := NewID()
	if err := m.Batch(ctx, []Write{{Op: OpCreate, Path: Join(collection, id), Fields: fields}}); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, path string, fields map[string]any) error {
	return m.Batch(ctx, []Write{{Op: OpSet, Path: path, Fields: fields}})
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]any) error {
	return m.Batch(ctx, []Write{{Op: OpUpdate, Path: path, Fields: fields}})
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	return m.Batch(ctx, []Write{{Op: OpDelete, Path: path}})
}

func (m *Memory) Get(ctx context.Context, path string) (*Document, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return cloneDocument(doc), nil
}

func (m *Memory) List(ctx context.Context, q Query) ([]Document, error) {
	if !ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, q.Collection)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for path, doc := range m.docs {
		collection, _, _ := Split(path)
		if collection == q.Collection {
			out = append(out, *cloneDocument(doc))
		}
	}
	SortDocuments(out, q)
	return out, nil
}

func (m *Memory) Batch(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	touched, err := m.applyLocked(writes)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.notify(touched)
	return nil
}

func (m *Memory) Mutate(ctx context.Context, path string, fn MutateFunc) error {
	if _, _, err := Split(path); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	var current *Document
	if doc, ok := m.docs[path]; ok {
		current = cloneDocument(doc)
	}
	fields, err := fn(current)
	if err != nil || fields == nil {
		m.mu.Unlock()
		return err
	}

	op := OpUpdate
	if current == nil {
		op = OpSet
	}
	touched, err := m.applyLocked([]Write{{Op: op, Path: path, Fields: fields}})
	m.mu.Unlock()
	if err != nil {
		return err
	}

	m.notify(touched)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (func(), error) {
	if !ValidCollection(q.Collection) {
		return nil, fmt.Errorf("%w: %q is not a collection", ErrInvalidPath, q.Collection)
	}

	sub := NewSubscription(ctx, q, m.List, fn)
	m.subsMu.Lock()
	m.subs[sub] = struct{}{}
	m.subsMu.Unlock()

	go func() {
		<-sub.Done()
		m.subsMu.Lock()
		delete(m.subs, sub)
		m.subsMu.Unlock()
	}()

	return sub.Stop, nil
}

func (m *Memory) Close() error {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for sub := range m.subs {
		sub.Stop()
	}
	return nil
}

// applyLocked validates every write before applying any of them.
func (m *Memory) applyLocked(writes []Write) (map[string]struct{}, error) {
	for _, w := range writes {
		if _, _, err := Split(w.Path); err != nil {
			return nil, err
		}
		_, exists := m.docs[w.Path]
		switch w.Op {
		case OpCreate:
			if exists {
				return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, w.Path)
			}
		case OpUpdate:
			if !exists {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, w.Path)
			}
		}
	}

	now := m.now()
	touched := make(map[string]struct{})
	for _, w := range writes {
		collection, id, _ := Split(w.Path)
		touched[collection] = struct{}{}

		switch w.Op {
		case OpDelete:
			delete(m.docs, w.Path)
		case OpCreate, OpSet:
			createTime := now
			if prev, ok := m.docs[w.Path]; ok {
				createTime = prev.CreateTime
			}
			m.docs[w.Path] = &Document{
				ID:         id,
				Path:       w.Path,
				Fields:     resolveFields(w.Fields, now),
				CreateTime: createTime,
				UpdateTime: now,
			}
		case OpUpdate:
			doc := m.docs[w.Path]
			for k, v := range resolveFields(w.Fields, now) {
				doc.Fields[k] = v
			}
			doc.UpdateTime = now
		}
	}
	return touched, nil
}

func (m *Memory) notify(collections map[string]struct{}) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for sub := range m.subs {
		if _, ok := collections[sub.Query().Collection]; ok {
			sub.Notify()
		}
	}
}

func resolveFields(fields map[string]any, now time.Time) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == ServerTimestamp {
			out[k] = now
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneDocument(doc *Document) *Document {
	c := *doc
	c.Fields = cloneValue(doc.Fields).(map[string]any)
	return &c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// SortDocuments orders docs by the query's field, breaking ties by id.
func SortDocuments(docs []Document, q Query) {
	sort.SliceStable(docs, func(i, j int) bool {
		c := compareValues(docs[i].Fields[q.OrderBy], docs[j].Fields[q.OrderBy])
		if c == 0 {
			return docs[i].ID < docs[j].ID
		}
		if q.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
}

// compareValues orders nil first, then numbers, strings and times.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}

	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
