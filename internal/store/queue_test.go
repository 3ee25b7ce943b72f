package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/feedsearch/internal/errors"
)

func newQueue(t *testing.T) *OutstandingQueue {
	t.Helper()
	q, err := OpenOutstandingQueue(DriverSQLite, filepath.Join(t.TempDir(), "outstanding.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func TestMergeEvents(t *testing.T) {
	tests := []struct {
		prev, next, want IndexEvent
	}{
		{EventPersisted, EventUpdated, EventUpdated},
		{EventUpdated, EventPersisted, EventPersisted},
		{EventPersisted, EventRemoved, EventRemoved},
		{EventRemoved, EventPersisted, EventRemoved},
		{EventRemoved, EventUpdated, EventRemoved},
	}
	for _, tt := range tests {
		t.Run(tt.prev.String()+"_"+tt.next.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, MergeEvents(tt.prev, tt.next))
		})
	}
}

func TestOutstandingQueue_RecordMergesPerEntity(t *testing.T) {
	// Given: an empty queue
	ctx := context.Background()
	q := newQueue(t)

	// When: recording several events for two entities
	require.NoError(t, q.Record(ctx, 1, EventPersisted))
	require.NoError(t, q.Record(ctx, 1, EventUpdated))
	require.NoError(t, q.Record(ctx, 2, EventRemoved))
	require.NoError(t, q.Record(ctx, 2, EventPersisted))

	// Then: one row per entity, SQL merge agrees with MergeEvents
	entries, err := q.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	e1, ok, err := q.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, MergeEvents(EventPersisted, EventUpdated), e1.Event)

	e2, ok, err := q.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventRemoved, e2.Event)
	assert.Greater(t, e2.Seq, e1.Seq)
}

func TestOutstandingQueue_AckSkipsRewrittenEntries(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	require.NoError(t, q.RecordMany(ctx, []int64{1, 2, 3}, EventPersisted))

	// Given: a listed snapshot
	snapshot, err := q.List(ctx, 0)
	require.NoError(t, err)

	// When: entity 2 is rewritten before the ack
	require.NoError(t, q.Record(ctx, 2, EventUpdated))
	removed, err := q.Ack(ctx, snapshot)
	require.NoError(t, err)

	// Then: only untouched entries are gone
	assert.Equal(t, 2, removed)
	left, err := q.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, int64(2), left[0].EntityID)
	assert.Equal(t, EventUpdated, left[0].Event)
}

func TestOutstandingQueue_ListLimitAndOrder(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	require.NoError(t, q.RecordMany(ctx, []int64{30, 10, 20}, EventPersisted))

	entries, err := q.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(30), entries[0].EntityID)
	assert.Equal(t, int64(10), entries[1].EntityID)
}

func TestOutstandingQueue_AckThrough(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)
	require.NoError(t, q.RecordMany(ctx, []int64{1, 2}, EventPersisted))
	mark := q.Watermark()
	require.NoError(t, q.Record(ctx, 3, EventPersisted))

	removed, err := q.AckThrough(ctx, mark)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOutstandingQueue_SurvivesReopen(t *testing.T) {
	// Given: a queue with pending work that is closed
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outstanding.db")
	q, err := OpenOutstandingQueue(DriverSQLite, path, nil)
	require.NoError(t, err)
	require.NoError(t, q.Record(ctx, 42, EventPersisted))
	mark := q.Watermark()
	require.NoError(t, q.Close())

	// When: reopening
	q, err = OpenOutstandingQueue(DriverSQLite, path, nil)
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	// Then: the entry and the sequence survive
	e, ok, err := q.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventPersisted, e.Event)
	assert.Equal(t, mark, q.Watermark())
	assert.False(t, q.Recovered())
}

func TestOutstandingQueue_RecoversFromGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outstanding.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite, just some bytes padding the header out"), 0o644))

	q, err := OpenOutstandingQueue(DriverSQLite, path, nil)
	require.NoError(t, err)
	defer func() { _ = q.Close() }()

	assert.True(t, q.Recovered())
	assert.FileExists(t, path+".corrupt")
	require.NoError(t, q.Record(context.Background(), 1, EventPersisted))
}

func TestOutstandingQueue_ClosedIsUnavailable(t *testing.T) {
	q, err := OpenOutstandingQueue(DriverSQLite, "", nil)
	require.NoError(t, err)
	require.NoError(t, q.Close())

	err = q.Record(context.Background(), 1, EventPersisted)
	assert.ErrorIs(t, err, fserrors.ErrEngineUnavailable)
}

func TestOutstandingQueue_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, q.Record(ctx, int64(i), EventUpdated))
			}
			if w == 0 {
				assert.NoError(t, q.Record(ctx, 5, EventRemoved))
			}
		}(w)
	}
	wg.Wait()

	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	e, ok, err := q.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, EventRemoved, e.Event)
}
