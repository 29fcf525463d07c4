// Package relations propagates changes across the work item relation graph.
//
// Every mutating operation runs inside a single storage transaction together
// with all the changes it triggers: closing an item closes the items that
// duplicate it, and moving an item's end date pushes its successors later.
// Either the whole cascade commits or nothing does. Cycles in legacy data are
// tolerated by every traversal.
package relations

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/telemetry"
	"github.com/wpgraph/wpgraph/internal/timeparsing"
	"github.com/wpgraph/wpgraph/internal/types"
	"github.com/wpgraph/wpgraph/internal/workflow"
)

const scopeName = "github.com/wpgraph/wpgraph/relations"

const defaultMaxParallel = 8

// Engine applies relation semantics on top of a storage backend.
// It is safe for concurrent use; cascades touching the same project run one
// at a time.
type Engine struct {
	store       storage.Storage
	gate        workflow.Gate
	clock       timeparsing.Clock
	logger      *zap.Logger
	maxParallel int
	locks       *keyedMutex

	tracer  trace.Tracer
	changes metric.Int64Counter
	skipped metric.Int64Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Cascade details are logged at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used for UpdatedAt stamps.
func WithClock(c timeparsing.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithMaxParallel bounds how many items BlockedItems evaluates at once.
func WithMaxParallel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxParallel = n
		}
	}
}

// New returns an Engine over store that checks status changes against gate.
func New(store storage.Storage, gate workflow.Gate, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		gate:        gate,
		clock:       timeparsing.SystemClock{},
		logger:      zap.NewNop(),
		maxParallel: defaultMaxParallel,
		locks:       newKeyedMutex(),
		tracer:      telemetry.Tracer(scopeName),
	}
	for _, opt := range opts {
		opt(e)
	}

	m := telemetry.Meter(scopeName)
	e.changes, _ = m.Int64Counter("wpg.cascade.changes",
		metric.WithDescription("Items modified by relation cascades"),
	)
	e.skipped, _ = m.Int64Counter("wpg.cascade.skipped",
		metric.WithDescription("Derived changes refused by the workflow"),
	)
	return e
}

// Store returns the storage the engine writes to.
func (e *Engine) Store() storage.Storage {
	return e.store
}

// mutate runs fn in one transaction under the project locks of ids.
func (e *Engine) mutate(ctx context.Context, op string, actor types.Actor, ids []int64, fn func(ctx context.Context, c *cascade) error) (_ *Result, err error) {
	ctx, span := e.tracer.Start(ctx, "relations."+op, trace.WithAttributes(
		attribute.String("wpg.actor", actor.String()),
		attribute.Int64Slice("wpg.item.ids", ids),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	unlock, err := e.lockProjects(ctx, ids)
	if err != nil {
		return nil, err
	}
	defer unlock()

	id := newCascadeID()
	span.SetAttributes(attribute.String("wpg.cascade.id", id))

	var res *Result
	err = e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		c := e.newCascade(tx, actor, id)
		if err := fn(ctx, c); err != nil {
			return err
		}
		res = c.res
		return nil
	})
	if err != nil {
		e.logger.Debug("cascade rolled back",
			zap.String("op", op), zap.String("cascade", id), zap.Error(err))
		return nil, fmt.Errorf("%s (cascade %s): %w", op, id, err)
	}

	attr := metric.WithAttributes(attribute.String("wpg.op", op))
	e.changes.Add(ctx, int64(len(res.Changes)), attr)
	e.skipped.Add(ctx, int64(len(res.Skipped)), attr)
	span.SetAttributes(
		attribute.Int("wpg.cascade.changes", len(res.Changes)),
		attribute.Int("wpg.cascade.skipped", len(res.Skipped)),
	)
	e.logger.Debug("cascade committed",
		zap.String("op", op), zap.String("cascade", id),
		zap.Int("changes", len(res.Changes)), zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// lockProjects locks the projects of the given items in a fixed order.
func (e *Engine) lockProjects(ctx context.Context, ids []int64) (func(), error) {
	projects := make(map[string]bool)
	for _, id := range ids {
		item, err := e.store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		projects[item.ProjectID] = true
	}
	keys := make([]string, 0, len(projects))
	for p := range projects {
		keys = append(keys, p)
	}
	sort.Strings(keys)

	unlocks := make([]func(), 0, len(keys))
	for _, k := range keys {
		unlocks = append(unlocks, e.locks.Lock(k))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}, nil
}

// ChangeStatus moves item id to statusID. The target must be among the
// actor's allowed statuses. Closing an item closes its duplicates.
func (e *Engine) ChangeStatus(ctx context.Context, actor types.Actor, id int64, statusID string) (*Result, error) {
	return e.mutate(ctx, "ChangeStatus", actor, []int64{id}, func(ctx context.Context, c *cascade) error {
		item, err := c.tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if item.StatusID == statusID {
			return nil
		}
		target, err := c.status(ctx, statusID)
		if err != nil {
			return err
		}
		old, err := c.status(ctx, item.StatusID)
		if err != nil {
			return err
		}
		allowed, err := allowedStatuses(ctx, c.tx, e.gate, item, actor)
		if err != nil {
			return err
		}
		if findStatus(allowed, statusID) == nil {
			return fmt.Errorf("%s -> %s on %d: %w", old.ID, target.ID, id, ErrTransitionNotAllowed)
		}

		item.StatusID = target.ID
		item.UpdatedAt = e.clock.Now()
		if err := c.tx.SaveItem(ctx, item); err != nil {
			return err
		}
		if err := c.record(ctx, Change{ItemID: id, Type: types.EventStatusChanged, Old: old.ID, New: target.ID}); err != nil {
			return err
		}
		if !old.IsClosed && target.IsClosed {
			return c.closeDuplicates(ctx, id, target)
		}
		return nil
	})
}

// ChangeDates sets the start and due date of item id. When the date its
// successors depend on moves, they are rescheduled.
func (e *Engine) ChangeDates(ctx context.Context, actor types.Actor, id int64, start, due *time.Time) (*Result, error) {
	start = truncate(start)
	due = truncate(due)
	if start != nil && due != nil && due.Before(*start) {
		return nil, fmt.Errorf("%s before %s: %w", types.FormatDate(due), types.FormatDate(start), ErrInvalidDates)
	}
	return e.mutate(ctx, "ChangeDates", actor, []int64{id}, func(ctx context.Context, c *cascade) error {
		item, err := c.tx.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if timeparsing.SameDay(item.StartDate, start) && timeparsing.SameDay(item.DueDate, due) {
			return nil
		}
		oldRange := dateRange(item)
		oldEnd := item.EndDate()

		item.StartDate, item.DueDate = start, due
		item.UpdatedAt = e.clock.Now()
		if err := c.tx.SaveItem(ctx, item); err != nil {
			return err
		}
		if err := c.record(ctx, Change{ItemID: id, Type: types.EventDatesChanged, Old: oldRange, New: dateRange(item)}); err != nil {
			return err
		}
		if timeparsing.SameDay(oldEnd, item.EndDate()) {
			return nil
		}
		return c.reschedule(ctx, item)
	})
}

type addOptions struct {
	skipValidation bool
}

// AddOption configures AddRelation.
type AddOption func(*addOptions)

// SkipValidation stores the relation without the cycle check, as legacy
// imports do. Self relations and duplicates are still rejected.
func SkipValidation() AddOption {
	return func(o *addOptions) { o.skipValidation = true }
}

// AddRelation stores rel in its canonical direction. A precedes relation
// immediately reschedules the successor side.
func (e *Engine) AddRelation(ctx context.Context, actor types.Actor, rel *types.Relation, opts ...AddOption) (*Result, error) {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}
	rel.Normalize()
	if rel.FromID != 0 && rel.FromID == rel.ToID {
		return nil, fmt.Errorf("relation on %d: %w", rel.FromID, ErrSelfRelation)
	}
	if err := rel.Validate(); err != nil {
		return nil, err
	}

	return e.mutate(ctx, "AddRelation", actor, []int64{rel.FromID, rel.ToID}, func(ctx context.Context, c *cascade) error {
		from, err := c.tx.GetItem(ctx, rel.FromID)
		if err != nil {
			return err
		}
		if _, err := c.tx.GetItem(ctx, rel.ToID); err != nil {
			return err
		}
		if err := checkDuplicate(ctx, c.tx, rel); err != nil {
			return err
		}
		if !o.skipValidation && (rel.Kind == types.RelPrecedes || rel.Kind == types.RelBlocks) {
			loop, err := reachable(ctx, c.tx, rel.ToID, rel.FromID, rel.Kind)
			if err != nil {
				return err
			}
			if loop {
				return fmt.Errorf("%s: %w", rel, ErrCycle)
			}
		}

		rel.ID = 0
		rel.CreatedBy = actor.String()
		rel.CreatedAt = e.clock.Now()
		if err := c.tx.AddRelation(ctx, rel); err != nil {
			return err
		}
		if err := c.record(ctx, Change{ItemID: rel.FromID, Type: types.EventRelationAdded, New: rel.String()}); err != nil {
			return err
		}
		if rel.Kind == types.RelPrecedes {
			return c.reschedule(ctx, from)
		}
		return nil
	})
}

// checkDuplicate rejects a relation already stored between the same items.
// relates is checked in both directions.
func checkDuplicate(ctx context.Context, r storage.Reader, rel *types.Relation) error {
	existing, err := neighbors(ctx, r, rel.FromID, rel.Kind, false)
	if err != nil {
		return err
	}
	for _, id := range existing {
		if id == rel.ToID {
			return fmt.Errorf("%s: %w", rel, storage.ErrDuplicateRelation)
		}
	}
	return nil
}

// RemoveRelation deletes relation id. Removing an edge never moves dates or statuses.
func (e *Engine) RemoveRelation(ctx context.Context, actor types.Actor, id int64) (*Result, error) {
	rel, err := e.store.GetRelation(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.mutate(ctx, "RemoveRelation", actor, []int64{rel.FromID, rel.ToID}, func(ctx context.Context, c *cascade) error {
		rel, err := c.tx.GetRelation(ctx, id)
		if err != nil {
			return err
		}
		if err := c.tx.RemoveRelation(ctx, id); err != nil {
			return err
		}
		return c.record(ctx, Change{ItemID: rel.FromID, Type: types.EventRelationRemoved, Old: rel.String()})
	})
}

// Neighbors returns the items one edge of kind away from id.
func (e *Engine) Neighbors(ctx context.Context, id int64, kind types.RelationKind, reverse bool) ([]int64, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid relation kind: %s", kind)
	}
	return neighbors(ctx, e.store, id, kind, reverse)
}

// IsBlocked reports whether some open item blocks id.
func (e *Engine) IsBlocked(ctx context.Context, id int64) (bool, error) {
	open, err := e.OpenBlockers(ctx, id)
	return len(open) > 0, err
}

// OpenBlockers lists the open items blocking id.
func (e *Engine) OpenBlockers(ctx context.Context, id int64) ([]int64, error) {
	if _, err := e.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return openBlockers(ctx, e.store, id)
}

// AllowedStatuses returns the statuses actor may move item id to. Closed
// statuses are left out while the item is blocked.
func (e *Engine) AllowedStatuses(ctx context.Context, actor types.Actor, id int64) ([]*types.Status, error) {
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return allowedStatuses(ctx, e.store, e.gate, item, actor)
}

// AllDependentItems returns every item transitively preceded by id, each
// once, in discovery order.
func (e *Engine) AllDependentItems(ctx context.Context, id int64) ([]int64, error) {
	return allDependents(ctx, e.store, id)
}

// BlockedItems evaluates ids concurrently and returns the blocked ones in
// input order.
func (e *Engine) BlockedItems(ctx context.Context, ids []int64) ([]*types.BlockedItem, error) {
	results := make([]*types.BlockedItem, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxParallel)
	for i, id := range ids {
		g.Go(func() error {
			item, err := e.store.GetItem(gctx, id)
			if err != nil {
				return err
			}
			open, err := openBlockers(gctx, e.store, id)
			if err != nil {
				return err
			}
			if len(open) > 0 {
				results[i] = &types.BlockedItem{WorkItem: *item, BlockedByCount: len(open), BlockedBy: open}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*types.BlockedItem, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

// History returns the newest events of item id.
func (e *Engine) History(ctx context.Context, id int64, limit int) ([]*types.Event, error) {
	if _, err := e.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return e.store.GetEvents(ctx, id, limit)
}

func truncate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := timeparsing.TruncateDay(*t)
	return &d
}

// IsValidation reports whether err rejects the request itself rather than
// reporting a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrTransitionNotAllowed) ||
		errors.Is(err, ErrInvalidDates) ||
		errors.Is(err, ErrSelfRelation) ||
		errors.Is(err, ErrCycle) ||
		errors.Is(err, storage.ErrDuplicateRelation)
}
