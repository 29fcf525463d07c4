package relations

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/wpgraph/wpgraph/internal/types"
)

// DetectCycles finds loops among stored relations of kind. Each cycle is
// rotated to start at its smallest id and reported once. Propagation copes
// with cycles; this is a report for cleaning up legacy data.
func (e *Engine) DetectCycles(ctx context.Context, kind types.RelationKind) ([][]int64, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid relation kind: %s", kind)
	}
	stored, _ := kind.Canonical(false)
	rels, err := e.store.ListRelations(ctx, stored)
	if err != nil {
		return nil, err
	}

	// Build adjacency list
	graph := make(map[int64][]int64)
	for _, rel := range rels {
		graph[rel.FromID] = append(graph[rel.FromID], rel.ToID)
		if stored.IsSymmetric() {
			graph[rel.ToID] = append(graph[rel.ToID], rel.FromID)
		}
	}
	nodes := make([]int64, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
		slices.Sort(graph[n])
	}
	slices.Sort(nodes)

	// Depth-first search with an explicit stack; path mirrors the stack.
	type frame struct {
		node int64
		next int
	}
	var cycles [][]int64
	seen := make(map[string]bool)
	visited := make(map[int64]bool)
	onStack := make(map[int64]bool)

	for _, root := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visited[root] {
			continue
		}
		visited[root], onStack[root] = true, true
		path := []int64{root}
		stack := []frame{{node: root}}

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next == len(graph[f.node]) {
				onStack[f.node] = false
				path = path[:len(path)-1]
				stack = stack[:len(stack)-1]
				continue
			}
			next := graph[f.node][f.next]
			f.next++

			if !visited[next] {
				visited[next], onStack[next] = true, true
				path = append(path, next)
				stack = append(stack, frame{node: next})
				continue
			}
			if !onStack[next] {
				continue
			}
			start := slices.Index(path, next)
			cycle := normalizeCycle(path[start:])
			// For symmetric kinds every edge reads as a two item loop.
			if stored.IsSymmetric() && len(cycle) < 3 {
				continue
			}
			if key := cycleKey(cycle); !seen[key] {
				seen[key] = true
				cycles = append(cycles, cycle)
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycleKey(cycles[i]) < cycleKey(cycles[j])
	})
	return cycles, nil
}

func normalizeCycle(path []int64) []int64 {
	minAt := 0
	for i, id := range path {
		if id < path[minAt] {
			minAt = i
		}
	}
	out := make([]int64, 0, len(path))
	out = append(out, path[minAt:]...)
	return append(out, path[:minAt]...)
}

func cycleKey(cycle []int64) string {
	parts := make([]string, len(cycle))
	for i, id := range cycle {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ">")
}
