package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpgraph/wpgraph/internal/types"
)

func TestPrecedesSchedulesFollowingItem(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		preceding := f.itemWithDates("preceding", f.day(0), f.day(2))
		following := f.itemWithDates("following", f.day(0), f.day(2))

		f.relate(preceding, types.RelPrecedes, following)
		got := f.reload(following)
		assert.Equal(t, *f.day(3), *got.StartDate, "following starts the day after preceding ends")
		assert.Equal(t, *f.day(5), *got.DueDate, "duration is preserved")

		res, err := f.eng.ChangeDates(f.ctx, member, preceding.ID, f.day(0), f.day(5))
		require.NoError(t, err)
		got = f.reload(following)
		assert.Equal(t, *f.day(6), *got.StartDate)
		assert.Equal(t, *f.day(8), *got.DueDate)
		assert.True(t, res.Changed(following.ID))
	})
}

func TestFollowsIsStoredAsPrecedes(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		preceding := f.itemWithDates("preceding", f.day(0), f.day(2))
		following := f.itemWithDates("following", f.day(0), f.day(0))

		rel := f.relate(following, types.RelFollows, preceding)
		assert.Equal(t, types.RelPrecedes, rel.Kind)
		assert.Equal(t, preceding.ID, rel.FromID)
		assert.Equal(t, *f.day(3), *f.reload(following).StartDate)
	})
}

func TestPrecedesDelay(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.itemWithDates("a", f.day(0), f.day(2))
		b := f.itemWithDates("b", nil, nil)

		rel := &types.Relation{FromID: a.ID, ToID: b.ID, Kind: types.RelPrecedes, Delay: types.IntPtr(2)}
		_, err := f.eng.AddRelation(f.ctx, member, rel)
		require.NoError(t, err)

		got := f.reload(b)
		require.NotNil(t, got.StartDate)
		assert.Equal(t, *f.day(5), *got.StartDate)
		assert.Equal(t, *f.day(5), *got.DueDate, "unknown duration counts as zero")
	})
}

func TestLaterSuccessorIsNotMoved(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.itemWithDates("a", f.day(0), f.day(2))
		b := f.itemWithDates("b", f.day(10), f.day(12))
		c := f.itemWithDates("c", f.day(0), f.day(1))
		f.relate(a, types.RelPrecedes, b)
		f.relate(b, types.RelPrecedes, c)
		// c was pushed behind b when the relation was added
		require.Equal(t, *f.day(13), *f.reload(c).StartDate)

		res, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(0), f.day(4))
		require.NoError(t, err)
		assert.Equal(t, *f.day(10), *f.reload(b).StartDate)
		assert.Equal(t, *f.day(13), *f.reload(c).StartDate)
		assert.Len(t, res.Changes, 1, "only the trigger changed")
	})
}

func TestStartDateDrivesSuccessorsWithoutDueDate(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.itemWithDates("a", f.day(0), nil)
		b := f.itemWithDates("b", nil, nil)
		f.relate(a, types.RelPrecedes, b)
		require.Equal(t, *f.day(1), *f.reload(b).StartDate)

		_, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(4), nil)
		require.NoError(t, err)
		assert.Equal(t, *f.day(5), *f.reload(b).StartDate)
	})
}

func TestDiamondTakesLatestConstraint(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.itemWithDates("a", f.day(0), f.day(1))
		short := f.itemWithDates("short", f.day(0), f.day(0))
		long := f.itemWithDates("long", f.day(0), f.day(5))
		join := f.itemWithDates("join", f.day(0), f.day(1))
		f.relate(short, types.RelPrecedes, join)
		f.relate(long, types.RelPrecedes, join)
		f.relate(a, types.RelPrecedes, short)
		f.relate(a, types.RelPrecedes, long)

		res, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(0), f.day(3))
		require.NoError(t, err)

		assert.Equal(t, *f.day(4), *f.reload(short).StartDate)
		assert.Equal(t, *f.day(4), *f.reload(long).StartDate)
		assert.Equal(t, *f.day(9), *f.reload(long).DueDate)
		got := f.reload(join)
		assert.Equal(t, *f.day(10), *got.StartDate)
		assert.Equal(t, *f.day(11), *got.DueDate)

		var joinChanges int
		for _, c := range res.Changes {
			if c.ItemID == join.ID {
				joinChanges++
				assert.Equal(t, long.ID, c.Via)
			}
		}
		assert.Equal(t, 1, joinChanges, "join is written once")
	})
}

func TestScheduleCycleTerminates(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.itemWithDates("a", f.day(0), f.day(1))
		b := f.itemWithDates("b", f.day(2), f.day(3))
		c := f.itemWithDates("c", f.day(4), f.day(5))
		f.relate(a, types.RelPrecedes, b)
		f.relate(b, types.RelPrecedes, c)
		f.relate(c, types.RelPrecedes, a, SkipValidation())
		// closing the loop pushed a behind c, and b behind a
		require.Equal(t, *f.day(6), *f.reload(a).StartDate)
		require.Equal(t, *f.day(8), *f.reload(b).StartDate)
		require.Equal(t, *f.day(4), *f.reload(c).StartDate)

		_, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(6), f.day(10))
		require.NoError(t, err)

		got := f.reload(a)
		assert.Equal(t, *f.day(6), *got.StartDate, "origin is not moved by its own cascade")
		assert.Equal(t, *f.day(11), *f.reload(b).StartDate)
		assert.Equal(t, *f.day(13), *f.reload(c).StartDate)
	})
}

func TestItemBehindCycleWaitsForIt(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		o := f.itemWithDates("o", f.day(0), f.day(1))
		a := f.itemWithDates("a", f.day(0), f.day(2))
		b := f.itemWithDates("b", f.day(0), f.day(1))
		c := f.itemWithDates("c", f.day(0), f.day(0))
		f.relate(o, types.RelPrecedes, c)
		f.relate(o, types.RelPrecedes, a)
		f.relate(a, types.RelPrecedes, b)
		f.relate(b, types.RelPrecedes, a, SkipValidation())
		f.relate(b, types.RelPrecedes, c)

		_, err := f.eng.ChangeDates(f.ctx, member, o.ID, f.day(0), f.day(20))
		require.NoError(t, err)

		gotA, gotB, gotC := f.reload(a), f.reload(b), f.reload(c)
		assert.Equal(t, *f.day(21), *gotA.StartDate)
		assert.Equal(t, *f.day(24), *gotB.StartDate)
		assert.Equal(t, *f.day(25), *gotB.DueDate)
		assert.True(t, gotC.StartDate.After(*gotB.DueDate), "c starts after b ends")
		assert.Equal(t, *f.day(26), *gotC.StartDate)
	})
}

func TestChangeDatesValidation(t *testing.T) {
	f := newFixture(t, backends[0].open(t))
	a := f.itemWithDates("a", f.day(0), f.day(1))

	_, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(3), f.day(1))
	assert.ErrorIs(t, err, ErrInvalidDates)
	assert.True(t, IsValidation(err))

	res, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(0), f.day(1))
	require.NoError(t, err)
	assert.Empty(t, res.Changes, "unchanged dates are a no-op")
}

func TestChangeDatesWithoutEndChangeDoesNotCascade(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.itemWithDates("a", f.day(0), f.day(2))
		b := f.itemWithDates("b", nil, nil)
		f.relate(a, types.RelPrecedes, b)

		// Move b earlier by hand, then change only a's start date.
		_, err := f.eng.ChangeDates(f.ctx, member, b.ID, f.day(1), f.day(1))
		require.NoError(t, err)
		res, err := f.eng.ChangeDates(f.ctx, member, a.ID, f.day(1), f.day(2))
		require.NoError(t, err)
		assert.False(t, res.Changed(b.ID))
		assert.Equal(t, *f.day(1), *f.reload(b).StartDate)
	})
}

func TestScheduleGraphComponents(t *testing.T) {
	edge := func(from, to int64) *types.Relation {
		return &types.Relation{FromID: from, ToID: to, Kind: types.RelPrecedes}
	}
	g := &scheduleGraph{
		order: []int64{1, 2, 3, 4, 5},
		out: map[int64][]*types.Relation{
			1: {edge(1, 2), edge(1, 5)},
			2: {edge(2, 3)},
			3: {edge(3, 2), edge(3, 4)},
			4: {edge(4, 3)},
		},
	}
	comp := g.components()
	assert.Equal(t, comp[2], comp[3])
	assert.Equal(t, comp[3], comp[4])
	assert.NotEqual(t, comp[1], comp[2])
	assert.NotEqual(t, comp[5], comp[2])
	assert.NotEqual(t, comp[1], comp[5])
}
