package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventfold/pkg/eventfold/event"
	"github.com/randalmurphal/eventfold/pkg/eventfold/store"
)

// fullStore is the surface both implementations provide.
type fullStore interface {
	store.EventStore
	store.ClockStore
}

type storeFactory func(t *testing.T) fullStore

var storeBase = time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)

func storedEvent(t *testing.T, aggregateID string, seq int, lamport uint64) event.Event {
	t.Helper()
	evt, err := event.New("workitem.transition", aggregateID, "n1", lamport,
		map[string]any{"to": "planned"},
		event.WithID(fmt.Sprintf("%032d", seq)),
		event.WithTimestamp(storeBase.Add(time.Duration(seq)*time.Millisecond)))
	require.NoError(t, err)
	return evt
}

// storeContractTest runs contract tests against any store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	ctx := context.Background()

	t.Run(name+"/Append_and_Load", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		evt := storedEvent(t, "wp/WP-1", 1, 1)
		require.NoError(t, s.Append(ctx, evt))

		loaded, err := s.Load(ctx, "wp/WP-1")
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Equal(t, evt.ID(), loaded[0].ID())
		assert.Equal(t, evt.Payload(), loaded[0].Payload())
		assert.Equal(t, evt.LamportClock(), loaded[0].LamportClock())
	})

	t.Run(name+"/Load_UnknownAggregate", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		loaded, err := s.Load(ctx, "wp/nonexistent")
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run(name+"/Append_DuplicateIgnored", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		evt := storedEvent(t, "wp/WP-1", 1, 1)
		require.NoError(t, s.Append(ctx, evt))
		require.NoError(t, s.Append(ctx, evt))

		loaded, err := s.Load(ctx, "wp/WP-1")
		require.NoError(t, err)
		assert.Len(t, loaded, 1)
	})

	t.Run(name+"/Append_InvalidEvent", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		err := s.Append(ctx, event.Event{})
		assert.ErrorIs(t, err, store.ErrInvalidEvent)
	})

	t.Run(name+"/Load_CanonicalOrder", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		// Append out of order; Load must come back total-ordered.
		require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-1", 3, 3)))
		require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-1", 1, 1)))
		require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-1", 2, 2)))

		loaded, err := s.Load(ctx, "wp/WP-1")
		require.NoError(t, err)
		require.Len(t, loaded, 3)
		assert.Equal(t, uint64(1), loaded[0].LamportClock())
		assert.Equal(t, uint64(2), loaded[1].LamportClock())
		assert.Equal(t, uint64(3), loaded[2].LamportClock())
	})

	t.Run(name+"/ListAggregates", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-2", 1, 1)))
		require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-1", 2, 1)))
		require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-1", 3, 2)))

		ids, err := s.ListAggregates(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"wp/WP-1", "wp/WP-2"}, ids)
	})

	t.Run(name+"/Clock_DefaultZero", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		v, err := s.LoadClock(ctx, "never-seen")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), v)
	})

	t.Run(name+"/Clock_SaveAndLoad", func(t *testing.T) {
		s := factory(t)
		defer s.Close()

		require.NoError(t, s.SaveClock(ctx, "alice", 7))
		require.NoError(t, s.SaveClock(ctx, "alice", 12))
		require.NoError(t, s.SaveClock(ctx, "bob", 3))

		v, err := s.LoadClock(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, uint64(12), v)

		v, err = s.LoadClock(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), v)
	})

	t.Run(name+"/Close_ThenError", func(t *testing.T) {
		s := factory(t)
		require.NoError(t, s.Close())

		err := s.Append(ctx, storedEvent(t, "wp/WP-1", 1, 1))
		assert.ErrorIs(t, err, store.ErrStoreClosed)

		_, err = s.Load(ctx, "wp/WP-1")
		assert.ErrorIs(t, err, store.ErrStoreClosed)

		_, err = s.ListAggregates(ctx)
		assert.ErrorIs(t, err, store.ErrStoreClosed)

		_, err = s.LoadClock(ctx, "alice")
		assert.ErrorIs(t, err, store.ErrStoreClosed)

		err = s.SaveClock(ctx, "alice", 1)
		assert.ErrorIs(t, err, store.ErrStoreClosed)
	})
}

// TestMemoryStore runs contract tests against MemoryStore.
func TestMemoryStore(t *testing.T) {
	storeContractTest(t, "MemoryStore", func(t *testing.T) fullStore {
		return store.NewMemoryStore()
	})
}

// TestSQLiteStore runs contract tests against SQLiteStore.
func TestSQLiteStore(t *testing.T) {
	storeContractTest(t, "SQLiteStore", func(t *testing.T) fullStore {
		s, err := store.NewSQLiteStore(":memory:")
		require.NoError(t, err)
		return s
	})
}

// TestMemoryStore_Len covers the test helper.
func TestMemoryStore_Len(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-1", 1, 1)))
	require.NoError(t, s.Append(ctx, storedEvent(t, "wp/WP-2", 2, 1)))
	assert.Equal(t, 2, s.Len())
}
