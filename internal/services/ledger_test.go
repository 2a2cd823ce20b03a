package services_test

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"design-portal-backend/internal/docstore"
	"design-portal-backend/internal/events"
	"design-portal-backend/internal/models"
	"design-portal-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*services.Ledger, *docstore.Memory, services.Scope) {
	t.Helper()
	store := docstore.NewMemory()
	seedProject(t, store, "u1", "p1", nil)
	return services.NewLedger(store, nil).WithRetryPolicy(fastRetry), store, services.ProjectScope("u1", "p1")
}

func orders(dims []models.Dimension) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = d.Order
	}
	return out
}

func labels(dims []models.Dimension) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Label
	}
	return out
}

func TestLedger_AppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	ledger, store, scope := newLedger(t)

	first, err := ledger.Append(ctx, scope, []services.DimensionInput{{Value: "2450", Label: "Wall 1"}})
	require.NoError(t, err)
	require.Len(t, first.Dimensions, 1)
	assert.Equal(t, 1, first.Dimensions[0].Order)
	assert.Contains(t, first.Summary, "1. 2450mm - Wall 1")

	second, err := ledger.Append(ctx, scope, []services.DimensionInput{{Value: "1200", Label: "Wall 2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Dimensions[0].Order)
	assert.Contains(t, second.Summary, "2. 1200mm - Wall 2")

	thread := services.NewThread(store, nil)
	msgs, err := thread.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, models.RoleCustomer, m.Sender)
		assert.False(t, m.Read)
	}
	texts := []string{msgs[0].Text, msgs[1].Text}
	assert.Contains(t, texts, first.Summary)
	assert.Contains(t, texts, second.Summary)
}

func TestLedger_AppendFiltersInvalidEntries(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	res, err := ledger.Append(ctx, scope, []services.DimensionInput{
		{Value: "10", Label: "A"},
		{Value: "", Label: "B"},
		{Value: "20", Label: ""},
	})
	require.NoError(t, err)

	dims, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "A", dims[0].Label)
	assert.Equal(t, 10, dims[0].Value)
	assert.Equal(t, 1, dims[0].Order)
	assert.Equal(t, 1, dims[0].MeasurementNumber)
	assert.Equal(t, res.Dimensions[0].ID, dims[0].ID)
}

func TestLedger_AppendKeepsLeadingInteger(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	res, err := ledger.Append(ctx, scope, []services.DimensionInput{
		{Value: "2450.5", Label: "Wall 1"},
		{Value: "12abc", Label: "Skirting"},
		{Value: ".5", Label: "Dropped"},
		{Value: "-5", Label: "Offset"},
	})
	require.NoError(t, err)
	require.Len(t, res.Dimensions, 3)
	assert.Equal(t, 2450, res.Dimensions[0].Value)
	assert.Equal(t, 12, res.Dimensions[1].Value)
	assert.Equal(t, -5, res.Dimensions[2].Value)
	assert.Contains(t, res.Summary, "1. 2450mm - Wall 1")
	assert.Contains(t, res.Summary, "2. 12mm - Skirting")
	assert.Contains(t, res.Summary, "3. -5mm - Offset")
	assert.NotContains(t, res.Summary, "Dropped")
}

func TestLedger_AppendRejectsEmptyBatches(t *testing.T) {
	ctx := context.Background()
	ledger, store, scope := newLedger(t)

	for _, batch := range [][]services.DimensionInput{
		nil,
		{{Value: " ", Label: "A"}, {Value: "5", Label: "  "}},
		{{Value: "abc", Label: "No number"}},
	} {
		_, err := ledger.Append(ctx, scope, batch)
		require.ErrorIs(t, err, services.ErrValidation)
		assert.Equal(t, "Please add at least one measurement with a value and label", err.Error())
	}

	docs, err := store.List(ctx, docstore.Query{Collection: scope.MessagesCollection(), OrderBy: "createdAt"})
	require.NoError(t, err)
	assert.Empty(t, docs, "no summary message for a rejected batch")
}

func TestLedger_AppendSummaryFormat(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	res, err := ledger.Append(ctx, scope, []services.DimensionInput{
		{Value: " 2450 ", Label: " Wall 1 ", Notes: "Behind radiator"},
		{Value: "1200", Label: "Wall 2", Notes: "   "},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"📏 Dimensions Added:\n\n1. 2450mm - Wall 1\n   Notes: Behind radiator\n\n2. 1200mm - Wall 2",
		res.Summary)

	dims, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	require.Len(t, dims, 2)
	require.NotNil(t, dims[0].Notes)
	assert.Equal(t, "Behind radiator", *dims[0].Notes)
	assert.Nil(t, dims[1].Notes)
}

func TestLedger_AppendUnknownProject(t *testing.T) {
	ledger, _, _ := newLedger(t)
	_, err := ledger.Append(context.Background(), services.ProjectScope("u1", "missing"),
		[]services.DimensionInput{{Value: "1", Label: "A"}})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestLedger_AppendIsAtomic(t *testing.T) {
	ctx := context.Background()
	mem := docstore.NewMemory()
	seedProject(t, mem, "u1", "p1", nil)
	failing := &failingStore{Store: mem}
	ledger := services.NewLedger(failing, nil).WithRetryPolicy(fastRetry)
	scope := services.ProjectScope("u1", "p1")

	_, err := ledger.Append(ctx, scope, []services.DimensionInput{{Value: "1", Label: "A"}})
	require.ErrorIs(t, err, services.ErrSaveFailed)
	assert.Equal(t, 3, failing.batches, "batch is retried before giving up")

	dims, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, dims)
	msgs, err := services.NewThread(mem, nil).List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLedger_AppendPublishesEvent(t *testing.T) {
	store := docstore.NewMemory()
	seedProject(t, store, "u1", "p1", nil)
	rec := &events.Recorder{}
	ledger := services.NewLedger(store, rec).WithRetryPolicy(fastRetry)

	_, err := ledger.Append(context.Background(), services.ProjectScope("u1", "p1"),
		[]services.DimensionInput{{Value: "1", Label: "A"}, {Value: "2", Label: "B"}})
	require.NoError(t, err)

	published := rec.OfType(events.DimensionsAdded)
	require.Len(t, published, 1)
	assert.Equal(t, 2, published[0].Payload["count"])
	assert.Equal(t, "p1", published[0].Payload["project_id"])
}

func TestLedger_RemoveRenumbers(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	_, err := ledger.Append(ctx, scope, []services.DimensionInput{
		{Value: "1", Label: "A"},
		{Value: "2", Label: "B"},
		{Value: "3", Label: "C"},
		{Value: "4", Label: "D"},
	})
	require.NoError(t, err)

	dims, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C", "D"}, labels(dims))

	require.NoError(t, ledger.Remove(ctx, scope, dims[1].ID))

	dims, err = ledger.List(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, orders(dims))
	assert.Equal(t, []string{"A", "C", "D"}, labels(dims))
	for _, d := range dims {
		assert.Equal(t, d.Order, d.MeasurementNumber)
	}

	// Removing again is a no-op.
	require.NoError(t, ledger.Remove(ctx, scope, "already-gone"))
	again, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, dims, again)
}

func TestLedger_UpdateKeepsNumber(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	res, err := ledger.Append(ctx, scope, []services.DimensionInput{{Value: "1", Label: "A"}, {Value: "2", Label: "B"}})
	require.NoError(t, err)
	id := res.Dimensions[1].ID

	require.NoError(t, ledger.Update(ctx, scope, id, services.DimensionInput{Value: "900", Label: "Door", Notes: "frame"}))

	dims, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, dims[1].Order)
	assert.Equal(t, 900, dims[1].Value)
	assert.Equal(t, "Door", dims[1].Label)
	require.NotNil(t, dims[1].Notes)
	assert.Equal(t, "frame", *dims[1].Notes)

	err = ledger.Update(ctx, scope, id, services.DimensionInput{Value: "", Label: "Door"})
	assert.ErrorIs(t, err, services.ErrValidation)
	err = ledger.Update(ctx, scope, id, services.DimensionInput{Value: "5", Label: " "})
	assert.ErrorIs(t, err, services.ErrValidation)

	err = ledger.Update(ctx, scope, "missing", services.DimensionInput{Value: "5", Label: "X"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestLedger_NumberingStaysContiguous(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)
	rng := rand.New(rand.NewSource(7))

	for step := 0; step < 60; step++ {
		dims, err := ledger.List(ctx, scope)
		require.NoError(t, err)

		if len(dims) > 0 && rng.Intn(3) == 0 {
			require.NoError(t, ledger.Remove(ctx, scope, dims[rng.Intn(len(dims))].ID))
		} else {
			n := 1 + rng.Intn(3)
			batch := make([]services.DimensionInput, n)
			for i := range batch {
				batch[i] = services.DimensionInput{Value: "100", Label: "L"}
			}
			_, err := ledger.Append(ctx, scope, batch)
			require.NoError(t, err)
		}

		dims, err = ledger.List(ctx, scope)
		require.NoError(t, err)
		for i, d := range dims {
			require.Equal(t, i+1, d.Order, "step %d", step)
		}
	}
}

func TestLedger_ConcurrentAppendsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Append(ctx, scope, []services.DimensionInput{{Value: "1", Label: "A"}, {Value: "2", Label: "B"}})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	dims, err := ledger.List(ctx, scope)
	require.NoError(t, err)
	got := orders(dims)
	sort.Ints(got)
	want := make([]int, 16)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
}

func TestLedger_Subscribe(t *testing.T) {
	ctx := context.Background()
	ledger, _, scope := newLedger(t)

	var mu sync.Mutex
	var latest []models.Dimension
	stop, err := ledger.Subscribe(ctx, scope, func(dims []models.Dimension) {
		mu.Lock()
		latest = dims
		mu.Unlock()
	})
	require.NoError(t, err)
	defer stop()

	_, err = ledger.Append(ctx, scope, []services.DimensionInput{{Value: "5", Label: "A"}, {Value: "6", Label: "B"}})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(latest) == 2 && latest[0].Label == "A" && latest[1].Label == "B"
	}, time.Second, 5*time.Millisecond)
}

func TestRenumber(t *testing.T) {
	changed := services.Renumber([]models.Dimension{
		{ID: "c", Order: 3, MeasurementNumber: 3},
		{ID: "a", Order: 1, MeasurementNumber: 1},
		{ID: "d", Order: 4, MeasurementNumber: 4},
	})
	require.Len(t, changed, 2)
	assert.Equal(t, "c", changed[0].ID)
	assert.Equal(t, 2, changed[0].Order)
	assert.Equal(t, "d", changed[1].ID)
	assert.Equal(t, 3, changed[1].Order)

	// Duplicate orders resolve by id and stay stable on a second pass.
	dup := []models.Dimension{{ID: "y", Order: 2}, {ID: "x", Order: 2}}
	first := services.Renumber(dup)
	require.Len(t, first, 2)
	assert.Equal(t, "x", first[0].ID)
	assert.Equal(t, 1, first[0].Order)
	assert.Empty(t, services.Renumber(first))
}
