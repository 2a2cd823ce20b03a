package docstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"design-portal-backend/internal/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	id, err := store.Create(ctx, "users/u1/projects", map[string]any{
		"title":     "Kitchen",
		"paid":      false,
		"createdAt": docstore.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	path := docstore.ProjectPath("u1", id)
	doc, err := store.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "Kitchen", doc.Fields["title"])
	assert.IsType(t, time.Time{}, doc.Fields["createdAt"])

	require.NoError(t, store.Update(ctx, path, map[string]any{"paid": true}))
	doc, err = store.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, true, doc.Fields["paid"])
	assert.Equal(t, "Kitchen", doc.Fields["title"])

	require.NoError(t, store.Delete(ctx, path))
	_, err = store.Get(ctx, path)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	// Deleting twice is not an error.
	assert.NoError(t, store.Delete(ctx, path))
}

func TestMemory_UpdateMissingDocument(t *testing.T) {
	store := docstore.NewMemory()
	err := store.Update(context.Background(), "users/nobody", map[string]any{"role": "designer"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestMemory_InvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	_, err := store.Create(ctx, "users/u1", map[string]any{})
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = store.Get(ctx, "users")
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)

	_, err = store.List(ctx, docstore.Query{Collection: "users//projects"})
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
}

func TestMemory_ListOrdering(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	collection := docstore.DimensionsPath("u1", "p1")

	for _, order := range []int{3, 1, 2} {
		_, err := store.Create(ctx, collection, map[string]any{"order": order})
		require.NoError(t, err)
	}

	docs, err := store.List(ctx, docstore.Query{Collection: collection, OrderBy: "order"})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []any{1, 2, 3}, []any{docs[0].Fields["order"], docs[1].Fields["order"], docs[2].Fields["order"]})

	docs, err = store.List(ctx, docstore.Query{Collection: collection, OrderBy: "order", Direction: docstore.Desc})
	require.NoError(t, err)
	assert.Equal(t, 3, docs[0].Fields["order"])

	// Documents in nested collections are not part of the parent listing.
	others, err := store.List(ctx, docstore.Query{Collection: docstore.ProjectsPath("u1"), OrderBy: "order"})
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestMemory_BatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	collection := docstore.DimensionsPath("u1", "p1")

	err := store.Batch(ctx, []docstore.Write{
		{Op: docstore.OpCreate, Path: docstore.Join(collection, "a"), Fields: map[string]any{"order": 1}},
		{Op: docstore.OpUpdate, Path: docstore.Join(collection, "missing"), Fields: map[string]any{"order": 2}},
	})
	require.ErrorIs(t, err, docstore.ErrNotFound)

	docs, err := store.List(ctx, docstore.Query{Collection: collection, OrderBy: "order"})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemory_MutateSeesCurrentDocument(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	path := docstore.ProjectPath("u1", "p1")
	require.NoError(t, store.Set(ctx, path, map[string]any{"paid": false}))

	var wg sync.WaitGroup
	writes := 0
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Mutate(ctx, path, func(current *docstore.Document) (map[string]any, error) {
				if current.Fields["paid"] == true {
					return nil, nil
				}
				mu.Lock()
				writes++
				mu.Unlock()
				return map[string]any{"paid": true}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, writes)
}

func TestMemory_SubscribeDeliversInitialAndChanges(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	collection := docstore.MessagesPath("u1", "")

	_, err := store.Create(ctx, collection, map[string]any{"text": "first"})
	require.NoError(t, err)

	var mu sync.Mutex
	var snapshots [][]docstore.Document
	stop, err := store.Subscribe(ctx, docstore.Query{Collection: collection, OrderBy: "createdAt", Direction: docstore.Desc},
		func(docs []docstore.Document) {
			mu.Lock()
			snapshots = append(snapshots, docs)
			mu.Unlock()
		})
	require.NoError(t, err)

	latestLen := func() int {
		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) == 0 {
			return -1
		}
		return len(snapshots[len(snapshots)-1])
	}

	assert.Eventually(t, func() bool { return latestLen() == 1 }, time.Second, 5*time.Millisecond)

	_, err = store.Create(ctx, collection, map[string]any{"text": "second"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return latestLen() == 2 }, time.Second, 5*time.Millisecond)

	stop()
	mu.Lock()
	delivered := len(snapshots)
	mu.Unlock()

	_, err = store.Create(ctx, collection, map[string]any{"text": "third"})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, len(snapshots), delivered+1)
	assert.Equal(t, 2, len(snapshots[len(snapshots)-1]))
}

func TestDecode(t *testing.T) {
	type dimension struct {
		Order int       `doc:"order"`
		Label string    `doc:"label"`
		Notes *string   `doc:"notes"`
		When  time.Time `doc:"createdAt"`
	}

	when := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var d dimension
	err := docstore.Decode(docstore.Document{Path: "x/y", Fields: map[string]any{
		"order":     float64(2),
		"label":     "Wall",
		"notes":     nil,
		"createdAt": when.Format(docstore.TimeLayout),
	}}, &d)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Order)
	assert.Equal(t, "Wall", d.Label)
	assert.Nil(t, d.Notes)
	assert.True(t, when.Equal(d.When))
}

func TestSplit(t *testing.T) {
	collection, id, err := docstore.Split("users/u1/projects/p1")
	require.NoError(t, err)
	assert.Equal(t, "users/u1/projects", collection)
	assert.Equal(t, "p1", id)

	_, _, err = docstore.Split("users/u1/projects")
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
}
