package relations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"go.uber.org/zap"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/timeparsing"
	"github.com/wpgraph/wpgraph/internal/types"
)

// scheduleGraph is the precedes subgraph reachable from a cascade origin.
type scheduleGraph struct {
	order []int64 // discovery order, origin first
	items map[int64]*types.WorkItem
	out   map[int64][]*types.Relation
	indeg map[int64]int
}

// loadScheduleGraph collects every item reachable from origin over precedes
// edges. Edges into origin are left out so the origin is never shifted.
// Dangling successors are ignored.
func (c *cascade) loadScheduleGraph(ctx context.Context, origin *types.WorkItem) (*scheduleGraph, error) {
	g := &scheduleGraph{
		order: []int64{origin.ID},
		items: map[int64]*types.WorkItem{origin.ID: origin},
		out:   make(map[int64][]*types.Relation),
		indeg: make(map[int64]int),
	}
	queue := linkedlistqueue.New()
	queue.Enqueue(origin.ID)

	for !queue.Empty() {
		v, _ := queue.Dequeue()
		id := v.(int64)
		rels, err := c.tx.GetRelationsFor(ctx, id, types.RelPrecedes, false)
		if err != nil {
			return nil, fmt.Errorf("successors of %d: %w", id, err)
		}
		for _, rel := range rels {
			to := rel.ToID
			if to == origin.ID || to == id {
				continue
			}
			if _, seen := g.items[to]; !seen {
				item, err := c.tx.GetItem(ctx, to)
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				g.items[to] = item
				g.order = append(g.order, to)
				queue.Enqueue(to)
			}
			g.out[id] = append(g.out[id], rel)
			g.indeg[to]++
		}
	}
	return g, nil
}

// reschedule pushes successors of origin forward so each starts after its
// predecessors end. Items are settled in topological order so a successor with
// several predecessors takes the latest constraint. When a cycle stalls the
// order, the earliest discovered item of a cycle with no unsettled
// predecessors outside it is settled next, so items downstream of the cycle
// still wait for it. Every item is settled at most once. Only the origin and
// items that actually moved pass constraints on.
func (c *cascade) reschedule(ctx context.Context, origin *types.WorkItem) error {
	g, err := c.loadScheduleGraph(ctx, origin)
	if err != nil {
		return err
	}

	comp := g.components()
	// external counts unsettled edges entering each component from outside it.
	external := make(map[int]int)
	for from, rels := range g.out {
		for _, rel := range rels {
			if comp[from] != comp[rel.ToID] {
				external[comp[rel.ToID]]++
			}
		}
	}

	settled := make(map[int64]bool, len(g.order))
	before := make(map[int64]*types.WorkItem)
	via := make(map[int64]int64)
	ready := linkedlistqueue.New()
	ready.Enqueue(origin.ID)

	next := func() (int64, bool) {
		for !ready.Empty() {
			v, _ := ready.Dequeue()
			if id := v.(int64); !settled[id] {
				return id, true
			}
		}
		for _, id := range g.order {
			if !settled[id] && external[comp[id]] == 0 {
				return id, true
			}
		}
		return 0, false
	}

	for {
		id, ok := next()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		settled[id] = true
		item := g.items[id]

		if old, moved := before[id]; moved {
			if err := c.saveSchedule(ctx, old, item, via[id]); err != nil {
				return err
			}
		}
		_, moved := before[id]
		push := id == origin.ID || moved

		for _, rel := range g.out[id] {
			succ := g.items[rel.ToID]
			if push && !settled[succ.ID] {
				if old := succ.Clone(); shiftAfter(item, succ, rel.DelayDays()) {
					if _, seen := before[succ.ID]; !seen {
						before[succ.ID] = old
					}
					via[succ.ID] = id
				}
			}
			if comp[id] != comp[succ.ID] {
				external[comp[succ.ID]]--
			}
			g.indeg[succ.ID]--
			if g.indeg[succ.ID] == 0 {
				ready.Enqueue(succ.ID)
			}
		}
	}
}

// components labels the strongly connected components of g with Tarjan's
// algorithm, walking with an explicit stack.
func (g *scheduleGraph) components() map[int64]int {
	type frame struct {
		id   int64
		edge int
	}
	index := make(map[int64]int, len(g.order))
	low := make(map[int64]int, len(g.order))
	onStack := make(map[int64]bool)
	comp := make(map[int64]int, len(g.order))
	var stack []int64
	counter, n := 0, 0

	visit := func(id int64) {
		index[id], low[id] = counter, counter
		counter++
		stack = append(stack, id)
		onStack[id] = true
	}

	for _, root := range g.order {
		if _, seen := index[root]; seen {
			continue
		}
		visit(root)
		work := []frame{{id: root}}
		for len(work) > 0 {
			f := &work[len(work)-1]
			if f.edge < len(g.out[f.id]) {
				to := g.out[f.id][f.edge].ToID
				f.edge++
				if _, seen := index[to]; !seen {
					visit(to)
					work = append(work, frame{id: to})
				} else if onStack[to] {
					low[f.id] = min(low[f.id], index[to])
				}
				continue
			}

			id := f.id
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := work[len(work)-1].id
				low[parent] = min(low[parent], low[id])
			}
			if low[id] != index[id] {
				continue
			}
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				comp[top] = n
				if top == id {
					break
				}
			}
			n++
		}
	}
	return comp
}

// requiredStart is the earliest day a successor of pred may start.
func requiredStart(pred *types.WorkItem, delay int) *time.Time {
	end := pred.EndDate()
	if end == nil {
		return nil
	}
	t := timeparsing.AddDays(*end, delay+1)
	return &t
}

// shiftAfter moves succ so it starts no earlier than pred allows, keeping its
// duration. It reports whether succ changed.
func shiftAfter(pred, succ *types.WorkItem, delay int) bool {
	required := requiredStart(pred, delay)
	if required == nil {
		return false
	}
	if succ.StartDate != nil && !succ.StartDate.Before(*required) {
		return false
	}
	duration := succ.Duration()
	start := *required
	due := timeparsing.AddDays(start, duration)
	succ.StartDate = &start
	succ.DueDate = &due
	return true
}

func (c *cascade) saveSchedule(ctx context.Context, old, item *types.WorkItem, via int64) error {
	item.UpdatedAt = c.e.clock.Now()
	if err := c.tx.SaveItem(ctx, item); err != nil {
		return fmt.Errorf("reschedule %d: %w", item.ID, err)
	}
	c.logger.Debug("rescheduled",
		zap.Int64("item", item.ID), zap.Int64("via", via),
		zap.String("from", dateRange(old)), zap.String("to", dateRange(item)))
	return c.record(ctx, Change{
		ItemID: item.ID,
		Type:   types.EventRescheduled,
		Old:    dateRange(old),
		New:    dateRange(item),
		Via:    via,
	})
}
