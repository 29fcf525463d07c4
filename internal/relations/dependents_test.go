package relations

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgraph/wpgraph/internal/storage"
	"github.com/wpgraph/wpgraph/internal/types"
)

func TestAllDependentItems(t *testing.T) {
	tests := []struct {
		name  string
		extra [][2]int // indexes into wp, added without validation
		want  []int
	}{
		{name: "chain", want: []int{1, 2}},
		{name: "w/o circular dependency", extra: [][2]int{{2, 3}}, want: []int{1, 2, 3}},
		{name: "with circular dependency", extra: [][2]int{{2, 0}}, want: []int{1, 2}},
		{name: "with multiple circular dependency", extra: [][2]int{{2, 3}, {2, 0}, {3, 1}}, want: []int{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eachBackend(t, func(t *testing.T, f *fixture) {
				wp := []*types.WorkItem{f.item("wp 1"), f.item("wp 2"), f.item("wp 3"), f.item("wp 4")}
				f.relate(wp[0], types.RelPrecedes, wp[1])
				f.relate(wp[1], types.RelPrecedes, wp[2])
				for _, e := range tt.extra {
					f.relate(wp[e[0]], types.RelPrecedes, wp[e[1]], SkipValidation())
				}

				got, err := f.eng.AllDependentItems(f.ctx, wp[0].ID)
				require.NoError(t, err)

				var want []int64
				for _, i := range tt.want {
					want = append(want, wp[i].ID)
				}
				assert.ElementsMatch(t, want, got)
			})
		})
	}
}

func TestAllDependentItemsOrderAndMissingRoot(t *testing.T) {
	f := newFixture(t, backends[0].open(t))
	a, b, c, d := f.item("a"), f.item("b"), f.item("c"), f.item("d")
	f.relate(a, types.RelPrecedes, c)
	f.relate(a, types.RelPrecedes, b)
	f.relate(b, types.RelPrecedes, d)
	f.relate(c, types.RelPrecedes, d)

	got, err := f.eng.AllDependentItems(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, idsOf(c, b, d), got, "breadth first, each item once")

	none, err := f.eng.AllDependentItems(f.ctx, d.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.eng.AllDependentItems(f.ctx, 4242)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestNeighbors(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a, b, c := f.item("a"), f.item("b"), f.item("c")
		f.relate(a, types.RelPrecedes, b)
		f.relate(c, types.RelFollows, a)
		f.relate(a, types.RelRelates, b)
		f.relate(c, types.RelRelates, a)

		tests := []struct {
			id      int64
			kind    types.RelationKind
			reverse bool
			want    []int64
		}{
			{a.ID, types.RelPrecedes, false, idsOf(b, c)},
			{a.ID, types.RelFollows, true, idsOf(b, c)},
			{b.ID, types.RelFollows, false, idsOf(a)},
			{b.ID, types.RelPrecedes, true, idsOf(a)},
			{a.ID, types.RelRelates, false, idsOf(b, c)},
			{b.ID, types.RelRelates, true, idsOf(a)},
			{a.ID, types.RelBlocks, false, nil},
		}
		for _, tt := range tests {
			got, err := f.eng.Neighbors(f.ctx, tt.id, tt.kind, tt.reverse)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "%d %s reverse=%v", tt.id, tt.kind, tt.reverse)
		}

		_, err := f.eng.Neighbors(f.ctx, a.ID, "parent", false)
		assert.Error(t, err)
	})
}
