package relations

import (
	"context"
	"errors"
	"fmt"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
	"github.com/wpgraph/wpgraph/internal/workflow"
)

// openBlockers returns the items that block id and are not closed.
// A blocker that no longer exists still counts.
func openBlockers(ctx context.Context, r storage.Reader, id int64) ([]int64, error) {
	blockers, err := neighbors(ctx, r, id, types.RelBlocked, false)
	if err != nil {
		return nil, fmt.Errorf("blockers of %d: %w", id, err)
	}
	var open []int64
	for _, bid := range blockers {
		b, err := r.GetItem(ctx, bid)
		if errors.Is(err, storage.ErrNotFound) {
			open = append(open, bid)
			continue
		}
		if err != nil {
			return nil, err
		}
		st, err := r.GetStatus(ctx, b.StatusID)
		if err != nil {
			return nil, err
		}
		if !st.IsClosed {
			open = append(open, bid)
		}
	}
	return open, nil
}

// allowedStatuses asks the gate for the actor's transitions on item and drops
// closed statuses while the item is blocked.
func allowedStatuses(ctx context.Context, r storage.Reader, gate workflow.Gate, item *types.WorkItem, actor types.Actor) ([]*types.Status, error) {
	allowed, err := gate.AllowedTransitions(ctx, item.StatusID, item.TypeID, actor.RoleIn(item.ProjectID))
	if err != nil {
		return nil, fmt.Errorf("workflow for %d: %w", item.ID, err)
	}
	blockers, err := openBlockers(ctx, r, item.ID)
	if err != nil {
		return nil, err
	}
	if len(blockers) == 0 {
		return allowed, nil
	}
	filtered := allowed[:0:0]
	for _, s := range allowed {
		if !s.IsClosed {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func findStatus(list []*types.Status, id string) *types.Status {
	for _, s := range list {
		if s.ID == id {
			return s
		}
	}
	return nil
}
