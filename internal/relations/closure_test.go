package relations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wpgraph/wpgraph/internal/mocks"
	"github.com/wpgraph/wpgraph/internal/types"
	"github.com/wpgraph/wpgraph/internal/workflow"
)

func TestClosingOriginalClosesDuplicateChain(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		original := f.item("original")
		dup1 := f.item("dup 1")
		dup2 := f.item("dup 2")
		f.relate(dup1, types.RelDuplicates, original)
		f.relate(dup2, types.RelDuplicates, dup1)
		// dup 2 also duplicates the original directly, closing a loop
		f.relate(dup2, types.RelDuplicates, original)

		res, err := f.eng.ChangeStatus(f.ctx, member, original.ID, types.StatusClosed)
		require.NoError(t, err)

		assert.True(t, f.isClosed(dup1))
		assert.True(t, f.isClosed(dup2))
		assert.Len(t, res.Changes, 3, "trigger plus one change per duplicate")
		assert.NotEmpty(t, res.CascadeID)

		events, err := f.store.GetEvents(f.ctx, dup2.ID, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, types.EventClosedAsDuplicate, events[0].EventType)
		assert.Equal(t, res.CascadeID, events[0].CascadeID)
		assert.Equal(t, "alice", events[0].Actor)
	})
}

func TestClosingDuplicateLeavesOriginalOpen(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		original := f.item("original")
		dup := f.item("dup")
		f.relate(dup, types.RelDuplicates, original)

		res, err := f.eng.ChangeStatus(f.ctx, member, dup.ID, types.StatusClosed)
		require.NoError(t, err)

		assert.False(t, f.isClosed(original))
		assert.Len(t, res.Changes, 1)
	})
}

func TestMutualDuplicatesTerminate(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.item("a")
		b := f.item("b")
		f.relate(a, types.RelDuplicates, b)
		f.relate(b, types.RelDuplicates, a)

		_, err := f.eng.ChangeStatus(f.ctx, member, a.ID, types.StatusClosed)
		require.NoError(t, err)
		assert.True(t, f.isClosed(b))
	})
}

func TestDuplicateTakesOriginalsClosedStatus(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		original := f.item("original")
		dup := f.item("dup")
		f.relate(dup, types.RelDuplicates, original)

		_, err := f.eng.ChangeStatus(f.ctx, member, original.ID, types.StatusRejected)
		require.NoError(t, err)
		assert.Equal(t, types.StatusRejected, f.statusOf(dup))
	})
}

func TestDuplicateFallsBackToFirstPermittedClosedStatus(t *testing.T) {
	table, err := workflow.NewTable(types.DefaultStatuses(), []workflow.Rule{
		{Role: "member", From: "*", To: []string{types.StatusInProgress, types.StatusClosed}},
		{Role: "member", From: types.StatusInProgress, To: []string{types.StatusRejected}},
	})
	require.NoError(t, err)

	eachBackend(t, func(t *testing.T, f *fixture) {
		f.withGate(table)
		original := f.item("original")
		dup := f.item("dup")
		f.relate(dup, types.RelDuplicates, original)

		_, err := f.eng.ChangeStatus(f.ctx, member, original.ID, types.StatusInProgress)
		require.NoError(t, err)
		_, err = f.eng.ChangeStatus(f.ctx, member, original.ID, types.StatusRejected)
		require.NoError(t, err)

		// rejected is not reachable from new, closed is
		assert.Equal(t, types.StatusClosed, f.statusOf(dup))
	})
}

func TestAlreadyClosedDuplicateStopsChain(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		a := f.item("a")
		b := f.item("b")
		c := f.item("c")
		f.relate(b, types.RelDuplicates, a)
		f.relate(c, types.RelDuplicates, b)

		_, err := f.eng.ChangeStatus(f.ctx, member, b.ID, types.StatusRejected)
		require.NoError(t, err)
		require.True(t, f.isClosed(c))
		_, err = f.eng.ChangeStatus(f.ctx, member, c.ID, types.StatusNew)
		require.NoError(t, err)

		res, err := f.eng.ChangeStatus(f.ctx, member, a.ID, types.StatusClosed)
		require.NoError(t, err)
		assert.Equal(t, types.StatusRejected, f.statusOf(b), "closed duplicate keeps its status")
		assert.False(t, f.isClosed(c), "chain stops at an already closed duplicate")
		assert.Len(t, res.Changes, 1)
	})
}

func TestUnpermittedDuplicateIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	gate := mocks.NewMockGate(ctrl)

	statuses := map[string]*types.Status{}
	for _, s := range types.DefaultStatuses() {
		statuses[s.ID] = s
	}
	// Managers may close anything, reporters may only start work.
	gate.EXPECT().AllowedTransitions(gomock.Any(), types.StatusNew, gomock.Any(), "manager").
		Return([]*types.Status{statuses[types.StatusClosed]}, nil).AnyTimes()
	gate.EXPECT().AllowedTransitions(gomock.Any(), types.StatusNew, gomock.Any(), "reporter").
		Return([]*types.Status{statuses[types.StatusInProgress]}, nil).AnyTimes()

	f := newFixture(t, backends[0].open(t)).withGate(gate)
	actor := types.Actor{Name: "bob", Role: "manager", ProjectRoles: map[string]string{"restricted": "reporter"}}

	original := f.item("original")
	dup := &types.WorkItem{Subject: "dup", ProjectID: "restricted", StatusID: types.StatusNew}
	require.NoError(t, f.store.CreateItem(f.ctx, dup, "tester"))
	f.relate(dup, types.RelDuplicates, original)

	res, err := f.eng.ChangeStatus(f.ctx, actor, original.ID, types.StatusClosed)
	require.NoError(t, err, "a refused derived change is not an error")

	assert.Equal(t, types.StatusNew, f.statusOf(dup))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, Skip{ItemID: dup.ID, Via: original.ID, Reason: "no closed status permitted"}, res.Skipped[0])

	events, err := f.store.GetEvents(f.ctx, dup.ID, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, types.EventPropagationSkipped, events[0].EventType)
}

func TestBlockedDuplicateIsSkipped(t *testing.T) {
	eachBackend(t, func(t *testing.T, f *fixture) {
		original := f.item("original")
		dup := f.item("dup")
		blocker := f.item("blocker")
		f.relate(dup, types.RelDuplicates, original)
		f.relate(blocker, types.RelBlocks, dup)

		res, err := f.eng.ChangeStatus(f.ctx, member, original.ID, types.StatusClosed)
		require.NoError(t, err)
		assert.False(t, f.isClosed(dup))
		assert.Len(t, res.Skipped, 1)
	})
}

func TestPersistenceFailureRollsBackCascade(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			inner := b.open(t)
			seed := newFixture(t, inner)
			original := seed.item("original")
			dup1 := seed.item("dup 1")
			dup2 := seed.item("dup 2")
			seed.relate(dup1, types.RelDuplicates, original)
			seed.relate(dup2, types.RelDuplicates, dup1)

			// original and dup 1 save, dup 2 fails
			f := newFixture(t, mocks.NewMockFailingStorage(inner, 2))
			_, err := f.eng.ChangeStatus(f.ctx, member, original.ID, types.StatusClosed)
			require.ErrorIs(t, err, mocks.ErrSimulatedSave)
			assert.Contains(t, err.Error(), "cascade ")

			for _, it := range []*types.WorkItem{original, dup1, dup2} {
				assert.Equal(t, types.StatusNew, seed.statusOf(it), "item %d", it.ID)
			}
			events, err := inner.GetEvents(f.ctx, original.ID, 0)
			require.NoError(t, err)
			for _, ev := range events {
				assert.NotEqual(t, types.EventStatusChanged, ev.EventType)
			}
		})
	}
}
