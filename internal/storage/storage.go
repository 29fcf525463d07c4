// Package storage provides the repository contract for work items, statuses
// and relations.
//
// Concrete implementations live in the memory and sqlstore sub-packages.
// This package holds the interfaces and sentinel errors that the relation
// engine, the CLI and the telemetry decorator depend on.
package storage

import (
	"context"
	"errors"

	"github.com/wpgraph/wpgraph/internal/types"
)

// ErrNotFound is returned when a requested entity does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrDuplicateRelation is returned when an identical (from, to, kind) relation
// already exists.
var ErrDuplicateRelation = errors.New("relation already exists")

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("store is closed")

// Reader is the read half of the repository.
type Reader interface {
	GetItem(ctx context.Context, id int64) (*types.WorkItem, error)
	ListItems(ctx context.Context, projectID string) ([]*types.WorkItem, error)
	GetStatus(ctx context.Context, id string) (*types.Status, error)
	ListStatuses(ctx context.Context) ([]*types.Status, error)

	GetRelation(ctx context.Context, id int64) (*types.Relation, error)
	// GetRelationsFor returns stored relations of the canonical kind touching id.
	// With reverse=false id is the source (FromID); with reverse=true it is the
	// target (ToID). Callers normalize the kind with RelationKind.Canonical first.
	GetRelationsFor(ctx context.Context, id int64, kind types.RelationKind, reverse bool) ([]*types.Relation, error)
	// ListRelations returns all relations of the canonical kind, or every
	// relation when kind is empty.
	ListRelations(ctx context.Context, kind types.RelationKind) ([]*types.Relation, error)

	GetEvents(ctx context.Context, itemID int64, limit int) ([]*types.Event, error)
}

// Writer is the write half of the repository.
type Writer interface {
	CreateItem(ctx context.Context, item *types.WorkItem, actor string) error
	SaveItem(ctx context.Context, item *types.WorkItem) error
	// DeleteItem removes the item together with every incident relation.
	DeleteItem(ctx context.Context, id int64) error
	CreateStatus(ctx context.Context, status *types.Status) error

	// AddRelation stores a relation as given. Callers normalize it first.
	AddRelation(ctx context.Context, rel *types.Relation) error
	RemoveRelation(ctx context.Context, id int64) error

	AddEvent(ctx context.Context, event *types.Event) error
}

// Transaction provides atomic multi-operation support within a single database transaction.
//
// # Transaction Semantics
//
//   - All operations within the transaction observe its own writes
//   - Changes are not visible to other callers until commit
//   - If the callback returns an error, the transaction is rolled back
//   - If the callback panics, the transaction is rolled back and the panic re-raised
//   - On successful return from the callback, the transaction is committed
//
// # Example Usage
//
//	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
//	    if err := tx.SaveItem(ctx, original); err != nil {
//	        return err // Triggers rollback
//	    }
//	    if err := tx.SaveItem(ctx, duplicate); err != nil {
//	        return err // Triggers rollback
//	    }
//	    return nil // Triggers commit
//	})
type Transaction interface {
	Reader
	Writer
}

// Storage is the interface satisfied by every backend.
// Consumers depend on this interface rather than on a concrete type so that
// alternative implementations (mocks, proxies, etc.) can be substituted.
type Storage interface {
	Transaction

	// RunInTransaction executes fn inside one atomic transaction. Backends may
	// retry fn on transient conflicts, so fn must not have side effects outside tx.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	Close() error
}
