package relations

import (
	"context"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/sets/hashset"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// walk runs a breadth-first traversal from root along forward edges of kind
// and calls visit once for every item reached, root excluded, in discovery
// order. Returning false from visit stops the walk. The visited set makes
// cyclic graphs terminate.
func walk(ctx context.Context, r storage.Reader, root int64, kind types.RelationKind, visit func(id int64) bool) error {
	visited := hashset.New(root)
	queue := linkedlistqueue.New()
	queue.Enqueue(root)

	for !queue.Empty() {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, _ := queue.Dequeue()
		next, err := neighbors(ctx, r, v.(int64), kind, false)
		if err != nil {
			return err
		}
		for _, id := range next {
			if visited.Contains(id) {
				continue
			}
			visited.Add(id)
			if !visit(id) {
				return nil
			}
			queue.Enqueue(id)
		}
	}
	return nil
}

// allDependents returns every item transitively preceded by root.
func allDependents(ctx context.Context, r storage.Reader, root int64) ([]int64, error) {
	if _, err := r.GetItem(ctx, root); err != nil {
		return nil, err
	}
	var out []int64
	err := walk(ctx, r, root, types.RelPrecedes, func(id int64) bool {
		out = append(out, id)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
