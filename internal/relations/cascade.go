package relations

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// Change is one mutation applied by an operation, the triggering one included.
type Change struct {
	ItemID int64           `json:"item_id"`
	Type   types.EventType `json:"type"`
	Old    string          `json:"old,omitempty"`
	New    string          `json:"new,omitempty"`
	// Via is the item whose change caused this one; zero for the trigger.
	Via int64 `json:"via,omitempty"`
}

// Skip is a derived mutation that was not applied.
type Skip struct {
	ItemID int64  `json:"item_id"`
	Via    int64  `json:"via"`
	Reason string `json:"reason"`
}

// Result describes everything an operation did. CascadeID is stamped on
// every event the operation wrote.
type Result struct {
	CascadeID string   `json:"cascade_id"`
	Changes   []Change `json:"changes"`
	Skipped   []Skip   `json:"skipped,omitempty"`
}

// Changed reports whether item id was modified.
func (r *Result) Changed(id int64) bool {
	for _, c := range r.Changes {
		if c.ItemID == id {
			return true
		}
	}
	return false
}

// cascade carries the state of one operation through its transaction.
// It is rebuilt from scratch on every transaction attempt.
type cascade struct {
	e      *Engine
	tx     storage.Transaction
	actor  types.Actor
	id     string
	logger *zap.Logger
	res    *Result

	statuses map[string]*types.Status
}

func (e *Engine) newCascade(tx storage.Transaction, actor types.Actor, id string) *cascade {
	return &cascade{
		e:      e,
		tx:     tx,
		actor:  actor,
		id:     id,
		logger: e.logger.With(zap.String("cascade", id)),
		res:    &Result{CascadeID: id},
	}
}

func newCascadeID() string {
	return ulid.Make().String()
}

// status resolves a status id, loading the status list once per cascade.
func (c *cascade) status(ctx context.Context, id string) (*types.Status, error) {
	if c.statuses == nil {
		list, err := c.tx.ListStatuses(ctx)
		if err != nil {
			return nil, err
		}
		c.statuses = make(map[string]*types.Status, len(list))
		for _, s := range list {
			c.statuses[s.ID] = s
		}
	}
	s, ok := c.statuses[id]
	if !ok {
		return nil, fmt.Errorf("status %q: %w", id, storage.ErrNotFound)
	}
	return s, nil
}

// record writes an audit event and adds the change to the result.
func (c *cascade) record(ctx context.Context, ch Change) error {
	event := &types.Event{
		ItemID:    ch.ItemID,
		EventType: ch.Type,
		Actor:     c.actor.String(),
		CascadeID: c.id,
	}
	if ch.Old != "" {
		event.OldValue = types.StrPtr(ch.Old)
	}
	if ch.New != "" {
		event.NewValue = types.StrPtr(ch.New)
	}
	if err := c.tx.AddEvent(ctx, event); err != nil {
		return fmt.Errorf("record %s on %d: %w", ch.Type, ch.ItemID, err)
	}
	c.res.Changes = append(c.res.Changes, ch)
	return nil
}

// skip notes a derived mutation that was refused. It is not an error.
func (c *cascade) skip(ctx context.Context, itemID, via int64, reason string) error {
	c.logger.Debug("propagation skipped",
		zap.Int64("item", itemID), zap.Int64("via", via), zap.String("reason", reason))
	event := &types.Event{
		ItemID:    itemID,
		EventType: types.EventPropagationSkipped,
		Actor:     c.actor.String(),
		NewValue:  types.StrPtr(reason),
		CascadeID: c.id,
	}
	if err := c.tx.AddEvent(ctx, event); err != nil {
		return fmt.Errorf("record skip on %d: %w", itemID, err)
	}
	c.res.Skipped = append(c.res.Skipped, Skip{ItemID: itemID, Via: via, Reason: reason})
	return nil
}

func dateRange(w *types.WorkItem) string {
	return types.FormatDate(w.StartDate) + ".." + types.FormatDate(w.DueDate)
}
