package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtq/bwf2q/internal/entity"
	"github.com/virtq/bwf2q/internal/vtime"
)

// TestBackshiftCorrectionAdvancesParkedEntityToCurrentVTime parks a leaf on
// the idle tree with a stale finish, drives the tree's virtual time far
// past that finish by serving an unrelated leaf, then reactivates the
// parked leaf with nonBlockingWait=true. __bfq_activate_entity's backshift
// branch must slide the parked leaf's Start/Finish forward by the gap so it
// does not collect an unearned head start against entities that stayed
// backlogged the whole time (mirrors bfq_gt(st->vtime, entity->finish)).
//
// Forget() jumps vtime down to the last parked entity's own finish whenever
// the active tree is momentarily empty, which would otherwise mask the
// very staleness this test needs, so a third leaf (c) is kept
// perpetually active to suppress that jump, and a decoy (a2) with a
// smaller stale finish is parked alongside a so Forget's one-entry-per-call
// garbage collection purges the decoy instead of a on the round that
// advances vtime.
func TestBackshiftCorrectionAdvancesParkedEntityToCurrentVTime(t *testing.T) {
	eng := newTestEngine(1)
	obs := &countingObserver{}
	eng.SetObserver(obs)

	c := entity.NewLeaf("c", 100)
	c.Budget = 100
	eng.AttachChild(nil, c)
	eng.AddBusy(c, false) // stays on the active tree for the whole test

	a := entity.NewLeaf("a", 100)
	a.Budget = 100
	eng.AttachChild(nil, a)
	eng.AddBusy(a, false)

	a2 := entity.NewLeaf("a2", 100)
	a2.Budget = 10 // smaller budget -> smaller finish, forgotten before a
	eng.AttachChild(nil, a2)
	eng.AddBusy(a2, false)

	b := entity.NewLeaf("b", 100)
	b.Budget = 1 // smallest finish of the active set, guaranteed to be picked next
	eng.AttachChild(nil, b)
	eng.AddBusy(b, false)

	eng.DelBusy(a, true)  // parks on the idle tree; a.Finish stays at its activation value
	eng.DelBusy(a2, true) // parks alongside a with a smaller finish

	require.Equal(t, entity.IdleTree, a.Tree)
	require.Equal(t, entity.IdleTree, a2.Tree)
	staleFinish := a.Finish
	require.True(t, vtime.After(staleFinish, a2.Finish), "test setup requires a2 to be the smaller stale finish")

	got := eng.GetNextQueue()
	require.Equal(t, b, got)

	st := serviceTreeFor(eng.root.MySchedData, a)
	eng.Served(b, 1_000_000) // c stays active, so this advances vtime without the empty-active jump

	require.True(t, vtime.After(st.VTime, staleFinish), "test setup must advance vtime past the parked leaf's finish")
	require.Equal(t, entity.NoTree, a2.Tree, "a2 should have been garbage-collected by Forget on this round")
	require.Equal(t, entity.IdleTree, a.Tree, "a must survive this round so it can be reactivated with a stale finish")
	require.Equal(t, staleFinish, a.Finish, "a's finish must be untouched by the round that expired it")

	eng.ActivateEntity(a, true)

	assert.Equal(t, 1, obs.backshifts)
	assert.Equal(t, entity.ActiveTree, a.Tree)
	assert.Equal(t, st.VTime, a.Finish, "backshift correction should land the reactivated leaf's finish exactly on the current vtime")
	assert.True(t, vtime.Before(a.Start, a.Finish))
}

// TestOnSTReflectsTreeMembershipThroughoutRotation exercises several
// activate/serve/deactivate cycles on two leaves and checks, after every
// step, that OnST is true exactly when the entity is on a tree or
// in-service, and that once a is deleted neither the in-service nor the
// next-in-service cache still points at it.
func TestOnSTReflectsTreeMembershipThroughoutRotation(t *testing.T) {
	eng := newTestEngine(1)

	a := entity.NewLeaf("a", 100)
	a.Budget = 200
	eng.AttachChild(nil, a)

	b := entity.NewLeaf("b", 200)
	b.Budget = 200
	eng.AttachChild(nil, b)

	checkInvariants := func() {
		t.Helper()
		for _, leaf := range []*entity.Entity{a, b} {
			onTree := leaf.Tree == entity.ActiveTree || leaf.Tree == entity.IdleTree
			inService := leaf == eng.root.MySchedData.InServiceEntity
			assert.Equal(t, onTree || inService, leaf.OnST, "entity %q must have OnST set exactly when on a tree or in service", leaf.ID)
		}
	}

	eng.AddBusy(a, false)
	checkInvariants()
	eng.AddBusy(b, false)
	checkInvariants()

	for i := 0; i < 5; i++ {
		ent := eng.GetNextQueue()
		require.NotNil(t, ent)
		checkInvariants()
		eng.Served(ent, 50)
		eng.ActivateEntity(ent, false)
		checkInvariants()
	}

	eng.DelBusy(a, false)
	checkInvariants()
	assert.NotEqual(t, a, eng.root.MySchedData.InServiceEntity)
	assert.NotEqual(t, a, eng.root.MySchedData.NextInService)

	eng.DelBusy(b, false)
	checkInvariants()
	assert.Equal(t, 0, eng.BusyQueues())
}
