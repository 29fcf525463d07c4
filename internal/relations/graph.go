package relations

import (
	"context"

	"github.com/emirpasic/gods/sets/hashset"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

// neighbors returns the ids one edge of kind away from id. reverse reads the
// edge from its target end. Symmetric kinds are read in both directions.
// Results are deduplicated and keep storage order; self loops are returned as is.
func neighbors(ctx context.Context, r storage.Reader, id int64, kind types.RelationKind, reverse bool) ([]int64, error) {
	stored, rev := kind.Canonical(reverse)
	dirs := []bool{rev}
	if stored.IsSymmetric() {
		dirs = []bool{false, true}
	}

	seen := hashset.New()
	var out []int64
	for _, dir := range dirs {
		rels, err := r.GetRelationsFor(ctx, id, stored, dir)
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			next := rel.ToID
			if dir {
				next = rel.FromID
			}
			if seen.Contains(next) {
				continue
			}
			seen.Add(next)
			out = append(out, next)
		}
	}
	return out, nil
}

// reachable reports whether target can be reached from start by following
// stored edges of kind forward.
func reachable(ctx context.Context, r storage.Reader, start, target int64, kind types.RelationKind) (bool, error) {
	found := false
	err := walk(ctx, r, start, kind, func(id int64) bool {
		if id == target {
			found = true
			return false
		}
		return true
	})
	return found, err
}
