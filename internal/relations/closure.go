package relations

import (
	"context"
	"errors"
	"fmt"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/sets/hashset"
	"go.uber.org/zap"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

type closing struct {
	id     int64
	status *types.Status
}

// closeDuplicates closes every item that transitively duplicates origin.
// Each duplicate takes the closed status of the item it duplicates when the
// actor may set it, otherwise the first closed status the actor may set.
// Duplicates that are already closed end the chain; duplicates with no
// permitted closed status are skipped. Originals are never closed this way.
func (c *cascade) closeDuplicates(ctx context.Context, origin int64, status *types.Status) error {
	visited := hashset.New(origin)
	queue := linkedlistqueue.New()
	queue.Enqueue(closing{id: origin, status: status})

	for !queue.Empty() {
		v, _ := queue.Dequeue()
		cur := v.(closing)

		dups, err := neighbors(ctx, c.tx, cur.id, types.RelDuplicated, false)
		if err != nil {
			return fmt.Errorf("duplicates of %d: %w", cur.id, err)
		}
		for _, dupID := range dups {
			if visited.Contains(dupID) {
				continue
			}
			visited.Add(dupID)

			next, err := c.closeDuplicate(ctx, dupID, cur)
			if err != nil {
				return err
			}
			if next != nil {
				queue.Enqueue(closing{id: dupID, status: next})
			}
		}
	}
	return nil
}

// closeDuplicate closes one duplicate and returns the status it was given,
// or nil when the chain stops at this item.
func (c *cascade) closeDuplicate(ctx context.Context, dupID int64, orig closing) (*types.Status, error) {
	dup, err := c.tx.GetItem(ctx, dupID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	current, err := c.status(ctx, dup.StatusID)
	if err != nil {
		return nil, err
	}
	if current.IsClosed {
		return nil, nil
	}

	allowed, err := allowedStatuses(ctx, c.tx, c.e.gate, dup, c.actor)
	if err != nil {
		return nil, err
	}
	target := findStatus(allowed, orig.status.ID)
	if target == nil {
		for _, s := range allowed {
			if s.IsClosed {
				target = s
				break
			}
		}
	}
	if target == nil {
		return nil, c.skip(ctx, dupID, orig.id, "no closed status permitted")
	}

	dup.StatusID = target.ID
	dup.UpdatedAt = c.e.clock.Now()
	if err := c.tx.SaveItem(ctx, dup); err != nil {
		return nil, fmt.Errorf("close duplicate %d: %w", dupID, err)
	}
	c.logger.Debug("closed duplicate",
		zap.Int64("item", dupID), zap.Int64("original", orig.id), zap.String("status", target.ID))
	err = c.record(ctx, Change{
		ItemID: dupID,
		Type:   types.EventClosedAsDuplicate,
		Old:    current.ID,
		New:    target.ID,
		Via:    orig.id,
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}
