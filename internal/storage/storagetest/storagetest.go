// Package storagetest holds the behavioral suite every storage backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// Factory returns a fresh store seeded with types.DefaultStatuses.
type Factory func(t *testing.T) storage.Storage

// Run executes the whole suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("ItemCRUD", func(t *testing.T) { testItemCRUD(t, newStore(t)) })
	t.Run("Statuses", func(t *testing.T) { testStatuses(t, newStore(t)) })
	t.Run("Relations", func(t *testing.T) { testRelations(t, newStore(t)) })
	t.Run("DeleteRemovesIncidentRelations", func(t *testing.T) { testDeleteCascade(t, newStore(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("TransactionCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TransactionPanic", func(t *testing.T) { testTxPanic(t, newStore(t)) })
}

func date(s string) *time.Time {
	d, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return &d
}

// NewItem creates a work item in the new status and returns it.
func NewItem(t *testing.T, s storage.Storage, subject string) *types.WorkItem {
	t.Helper()
	item := &types.WorkItem{Subject: subject, StatusID: types.StatusNew}
	require.NoError(t, s.CreateItem(context.Background(), item, "tester"))
	require.NotZero(t, item.ID)
	return item
}

func testItemCRUD(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	item := &types.WorkItem{
		Subject:   "Write docs",
		ProjectID: "p1",
		StatusID:  types.StatusNew,
		StartDate: date("2024-05-01"),
		DueDate:   date("2024-05-03"),
	}
	require.NoError(t, s.CreateItem(ctx, item, "alice"))
	assert.Equal(t, types.DefaultType, item.TypeID)

	got, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write docs", got.Subject)
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, "2024-05-01", types.FormatDate(got.StartDate))
	assert.Equal(t, "2024-05-03", types.FormatDate(got.DueDate))
	assert.Equal(t, 2, got.Duration())

	got.StatusID = types.StatusInProgress
	got.DueDate = nil
	require.NoError(t, s.SaveItem(ctx, got))

	again, err := s.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, again.StatusID)
	assert.Nil(t, again.DueDate)

	other := NewItem(t, s, "Other project")
	list, err := s.ListItems(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, item.ID, list[0].ID)

	all, err := s.ListItems(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = s.GetItem(ctx, 9999)
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)

	missing := &types.WorkItem{ID: 9999, Subject: "ghost", StatusID: types.StatusNew}
	assert.True(t, errors.Is(s.SaveItem(ctx, missing), storage.ErrNotFound))

	bad := &types.WorkItem{Subject: "bad status", StatusID: "nope"}
	assert.Error(t, s.CreateItem(ctx, bad, "alice"))

	backwards := other.Clone()
	backwards.StartDate = date("2024-01-02")
	backwards.DueDate = date("2024-01-01")
	assert.Error(t, s.SaveItem(ctx, backwards))
}

func testStatuses(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	list, err := s.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(types.DefaultStatuses()))
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, list[i-1].Position, list[i].Position)
	}

	require.NoError(t, s.CreateStatus(ctx, &types.Status{ID: "done", Name: "Done", IsClosed: true, Position: 10}))
	st, err := s.GetStatus(ctx, "done")
	require.NoError(t, err)
	assert.True(t, st.IsClosed)
	assert.Equal(t, "Done", st.Name)

	assert.Error(t, s.CreateStatus(ctx, &types.Status{ID: "done", Name: "Again"}))

	_, err = s.GetStatus(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func testRelations(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	a := NewItem(t, s, "A")
	b := NewItem(t, s, "B")
	c := NewItem(t, s, "C")

	ab := &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelPrecedes, Delay: types.IntPtr(2), CreatedBy: "alice"}
	require.NoError(t, s.AddRelation(ctx, ab))
	require.NotZero(t, ab.ID)
	require.NoError(t, s.AddRelation(ctx, &types.Relation{FromID: c.ID, ToID: b.ID, Kind: types.RelPrecedes}))
	require.NoError(t, s.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelBlocks}))

	err := s.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelPrecedes})
	assert.True(t, errors.Is(err, storage.ErrDuplicateRelation), "got %v", err)

	assert.Error(t, s.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelFollows}),
		"inverse kinds must be normalized before storing")
	assert.True(t, errors.Is(s.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: 9999, Kind: types.RelRelates}), storage.ErrNotFound))

	out, err := s.GetRelationsFor(ctx, a.ID, types.RelPrecedes, false)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, b.ID, out[0].ToID)
	assert.Equal(t, 2, out[0].DelayDays())
	assert.Equal(t, "alice", out[0].CreatedBy)

	in, err := s.GetRelationsFor(ctx, b.ID, types.RelPrecedes, true)
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, a.ID, in[0].FromID)
	assert.Equal(t, c.ID, in[1].FromID)
	assert.Nil(t, in[1].Delay)

	got, err := s.GetRelation(ctx, ab.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RelPrecedes, got.Kind)

	all, err := s.ListRelations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	blocks, err := s.ListRelations(ctx, types.RelBlocks)
	require.NoError(t, err)
	assert.Len(t, blocks, 1)

	require.NoError(t, s.RemoveRelation(ctx, ab.ID))
	_, err = s.GetRelation(ctx, ab.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.True(t, errors.Is(s.RemoveRelation(ctx, ab.ID), storage.ErrNotFound))
}

func testDeleteCascade(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	a := NewItem(t, s, "A")
	b := NewItem(t, s, "B")
	c := NewItem(t, s, "C")
	require.NoError(t, s.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelDuplicates}))
	require.NoError(t, s.AddRelation(ctx, &types.Relation{FromID: c.ID, ToID: a.ID, Kind: types.RelBlocks}))
	require.NoError(t, s.AddRelation(ctx, &types.Relation{FromID: b.ID, ToID: c.ID, Kind: types.RelRelates}))

	require.NoError(t, s.DeleteItem(ctx, a.ID))

	all, err := s.ListRelations(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, types.RelRelates, all[0].Kind)

	events, err := s.GetEvents(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, events, "events are removed with their item")

	assert.True(t, errors.Is(s.DeleteItem(ctx, a.ID), storage.ErrNotFound))
}

func testEvents(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	a := NewItem(t, s, "A")
	require.NoError(t, s.AddEvent(ctx, &types.Event{
		ItemID:    a.ID,
		EventType: types.EventStatusChanged,
		Actor:     "bob",
		OldValue:  types.StrPtr(types.StatusNew),
		NewValue:  types.StrPtr(types.StatusClosed),
		CascadeID: "01HZX",
	}))

	evs, err := s.GetEvents(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, types.EventStatusChanged, evs[0].EventType, "newest first")
	assert.Equal(t, types.StatusClosed, *evs[0].NewValue)
	assert.Equal(t, "01HZX", evs[0].CascadeID)
	assert.Equal(t, types.EventCreated, evs[1].EventType)
	assert.Equal(t, "tester", evs[1].Actor)

	limited, err := s.GetEvents(ctx, a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testTxCommit(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	a := NewItem(t, s, "A")
	var created *types.WorkItem
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		got, err := tx.GetItem(ctx, a.ID)
		if err != nil {
			return err
		}
		got.StatusID = types.StatusClosed
		if err := tx.SaveItem(ctx, got); err != nil {
			return err
		}
		created = &types.WorkItem{Subject: "B", StatusID: types.StatusNew}
		if err := tx.CreateItem(ctx, created, "tester"); err != nil {
			return err
		}
		// Read-your-writes inside the transaction
		again, err := tx.GetItem(ctx, a.ID)
		if err != nil {
			return err
		}
		if again.StatusID != types.StatusClosed {
			t.Errorf("transaction did not observe its own write")
		}
		return tx.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: created.ID, Kind: types.RelBlocks})
	})
	require.NoError(t, err)

	got, err := s.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusClosed, got.StatusID)
	_, err = s.GetItem(ctx, created.ID)
	require.NoError(t, err)
	rels, err := s.ListRelations(ctx, types.RelBlocks)
	require.NoError(t, err)
	assert.Len(t, rels, 1)
}

func testTxRollback(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	a := NewItem(t, s, "A")
	b := NewItem(t, s, "B")
	boom := errors.New("boom")

	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		got, err := tx.GetItem(ctx, a.ID)
		if err != nil {
			return err
		}
		got.StatusID = types.StatusClosed
		got.StartDate = date("2030-01-01")
		if err := tx.SaveItem(ctx, got); err != nil {
			return err
		}
		if err := tx.AddRelation(ctx, &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelPrecedes}); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, b.ID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNew, got.StatusID)
	assert.Nil(t, got.StartDate)
	_, err = s.GetItem(ctx, b.ID)
	assert.NoError(t, err, "deleted item must come back after rollback")
	rels, err := s.ListRelations(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func testTxPanic(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	defer s.Close()

	a := NewItem(t, s, "A")
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic to propagate")
			}
		}()
		_ = s.RunInTransaction(ctx, func(tx storage.Transaction) error {
			got, err := tx.GetItem(ctx, a.ID)
			if err != nil {
				return err
			}
			got.StatusID = types.StatusClosed
			if err := tx.SaveItem(ctx, got); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	got, err := s.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusNew, got.StatusID)
}
