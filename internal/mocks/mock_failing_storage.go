package mocks

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// ErrSimulatedSave is returned by a failing storage once its save budget is spent.
var ErrSimulatedSave = errors.New("simulated save failure")

// failingStorage is a proxy to the actual store except SaveItem fails after a
// fixed number of successful calls, inside or outside transactions.
// This allows simulating a repository that breaks halfway through a cascade.
type failingStorage struct {
	storage.Storage
	remaining atomic.Int64
}

// NewMockFailingStorage returns a wrapper whose SaveItem succeeds okSaves times
// and fails with ErrSimulatedSave afterwards.
func NewMockFailingStorage(s storage.Storage, okSaves int) storage.Storage {
	f := &failingStorage{Storage: s}
	f.remaining.Store(int64(okSaves))
	return f
}

func (f *failingStorage) save(ctx context.Context, w storage.Writer, item *types.WorkItem) error {
	if f.remaining.Add(-1) < 0 {
		return ErrSimulatedSave
	}
	return w.SaveItem(ctx, item)
}

func (f *failingStorage) SaveItem(ctx context.Context, item *types.WorkItem) error {
	return f.save(ctx, f.Storage, item)
}

func (f *failingStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	return f.Storage.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return fn(&failingTx{Transaction: tx, parent: f})
	})
}

type failingTx struct {
	storage.Transaction
	parent *failingStorage
}

func (t *failingTx) SaveItem(ctx context.Context, item *types.WorkItem) error {
	return t.parent.save(ctx, t.Transaction, item)
}
