package memory

import (
	"context"
	"testing"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/storage/storagetest"
	"github.com/wpgraph/wpgraph/internal/types"
)

func TestMemoryStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return NewSeeded()
	})
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	m := NewSeeded()
	item := &types.WorkItem{Subject: "A", StatusID: types.StatusNew}
	if err := m.CreateItem(ctx, item, "tester"); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	got, err := m.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	got.StatusID = types.StatusClosed

	again, _ := m.GetItem(ctx, item.ID)
	if again.StatusID != types.StatusNew {
		t.Errorf("mutating a returned item leaked into the store: %s", again.StatusID)
	}
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	m := NewSeeded()
	_ = m.Close()

	if _, err := m.GetItem(ctx, 1); err != storage.ErrClosed {
		t.Errorf("GetItem after Close = %v, want ErrClosed", err)
	}
	err := m.RunInTransaction(ctx, func(tx storage.Transaction) error { return nil })
	if err != storage.ErrClosed {
		t.Errorf("RunInTransaction after Close = %v, want ErrClosed", err)
	}
}

func TestCanceledContextRollsBack(t *testing.T) {
	m := NewSeeded()
	ctx, cancel := context.WithCancel(context.Background())

	err := m.RunInTransaction(ctx, func(tx storage.Transaction) error {
		cancel()
		return tx.CreateItem(ctx, &types.WorkItem{Subject: "late", StatusID: types.StatusNew}, "tester")
	})
	if err == nil {
		t.Fatal("expected context error")
	}
	items, _ := m.ListItems(context.Background(), "")
	if len(items) != 0 {
		t.Errorf("expected rollback, found %d items", len(items))
	}
}
