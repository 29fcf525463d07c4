// Package wpgraph provides a minimal public API for embedding the relation
// engine in other Go programs.
//
// It re-exports the core types and opens a store plus engine in one call.
// Programs that need more control can use the same building blocks the wpg
// CLI uses.
package wpgraph

import (
	"context"

	"github.com/wpgraph/wpgraph/internal/relations"
	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/storage/factory"
	"github.com/wpgraph/wpgraph/internal/types"
	"github.com/wpgraph/wpgraph/internal/workflow"
)

// Core types for working with items and relations
type (
	WorkItem     = types.WorkItem
	Status       = types.Status
	Relation     = types.Relation
	RelationKind = types.RelationKind
	Actor        = types.Actor
	Event        = types.Event
	BlockedItem  = types.BlockedItem
)

// Engine types
type (
	Engine       = relations.Engine
	EngineOption = relations.Option
	Result       = relations.Result
	Change       = relations.Change
	Skip         = relations.Skip
)

// Storage and workflow
type (
	Storage      = storage.Storage
	StoreOptions = factory.Options
	Gate         = workflow.Gate
	Rule         = workflow.Rule
)

// Relation kinds
const (
	RelRelates    = types.RelRelates
	RelDuplicates = types.RelDuplicates
	RelDuplicated = types.RelDuplicated
	RelBlocks     = types.RelBlocks
	RelBlocked    = types.RelBlocked
	RelPrecedes   = types.RelPrecedes
	RelFollows    = types.RelFollows
)

// Default status ids
const (
	StatusNew        = types.StatusNew
	StatusInProgress = types.StatusInProgress
	StatusOnHold     = types.StatusOnHold
	StatusClosed     = types.StatusClosed
	StatusRejected   = types.StatusRejected
)

// Errors returned by engine operations
var (
	ErrNotFound             = storage.ErrNotFound
	ErrDuplicateRelation    = storage.ErrDuplicateRelation
	ErrTransitionNotAllowed = relations.ErrTransitionNotAllowed
	ErrInvalidDates         = relations.ErrInvalidDates
	ErrSelfRelation         = relations.ErrSelfRelation
	ErrCycle                = relations.ErrCycle
)

// Engine options
var (
	WithLogger      = relations.WithLogger
	WithClock       = relations.WithClock
	WithMaxParallel = relations.WithMaxParallel
	SkipValidation  = relations.SkipValidation
)

// Open opens a store ("memory", "sqlite" or "mysql") and returns an engine
// over it. A nil gate allows every transition between the store's statuses.
// Close the engine's store when done.
func Open(ctx context.Context, backend string, opts StoreOptions, gate Gate, engineOpts ...EngineOption) (*Engine, error) {
	s, err := factory.New(ctx, backend, opts)
	if err != nil {
		return nil, err
	}
	if gate == nil {
		statuses, err := s.ListStatuses(ctx)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		gate = workflow.AllowAll(statuses)
	}
	return relations.New(s, gate, engineOpts...), nil
}

// NewGate builds a workflow gate from rules over the store's statuses.
func NewGate(ctx context.Context, s Storage, rules []Rule) (Gate, error) {
	return workflow.LoadTable(ctx, s, rules)
}

// LoadRules reads workflow rules from a .yaml, .yml or .toml file.
func LoadRules(path string) ([]Rule, error) {
	return workflow.LoadRules(path)
}
