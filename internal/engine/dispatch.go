package engine

import "github.com/virtq/bwf2q/internal/entity"

// AddBusy transitions leaf from inactive to backlogged: it is activated up
// to the root and the busy-queue count increases.
func (e *Engine) AddBusy(leaf *entity.Entity, nonBlockingWait bool) {
	assertf(leaf.IsLeaf(), "AddBusy: entity %q is not a leaf", leaf.ID)
	assertf(!leaf.OnST, "AddBusy: entity %q is already busy", leaf.ID)
	e.ActivateEntity(leaf, nonBlockingWait)
	e.busyQueues++
	if e.observer != nil {
		e.observer.OnActivate(leaf.ID)
	}
}

// DelBusy transitions leaf from backlogged to empty: it is deactivated and
// the busy-queue count decreases. If requeue is true and the leaf's finish
// has not yet expired, it is parked on the idle tree to preserve its
// credit.
func (e *Engine) DelBusy(leaf *entity.Entity, requeue bool) {
	assertf(leaf.IsLeaf(), "DelBusy: entity %q is not a leaf", leaf.ID)
	e.DeactivateEntity(leaf, requeue)
	e.busyQueues--
	if e.observer != nil {
		e.observer.OnDeactivate(leaf.ID)
	}
}

// GetNextQueue descends the hierarchy from the root, selecting the
// in-service entity at each level and following its my_sched_data if it
// is a group, until it reaches a leaf. Service is reset to zero at every
// level entered. Returns nil if there are no busy queues.
func (e *Engine) GetNextQueue() *entity.Entity {
	if e.busyQueues == 0 {
		return nil
	}

	sd := e.root.MySchedData
	var ent *entity.Entity
	for sd != nil {
		var forced bool
		ent, forced = sd.LookupNext(e.params.Clock(), e.params.StarvationWindow, true)
		assertf(ent != nil, "GetNextQueue: no entity selected while busyQueues=%d", e.busyQueues)
		if forced && e.observer != nil {
			e.observer.OnForcedIdleClassPick()
		}
		ent.Service = 0
		sd = ent.MySchedData
	}

	assertf(ent != nil && ent.IsLeaf(), "GetNextQueue: selection terminated on a non-leaf entity")
	return ent
}

// ResetInService clears the currently-serving leaf at every level of the
// hierarchy, for when its slot expires or it is preempted. It does not
// touch the entity's tree membership or timestamps. ActivateEntity and
// DeactivateEntity finalize a leaf's finish from its consumed service only
// while the leaf is still cached as in service; once ResetInService has
// cleared that cache, ActivateEntity on the same leaf fails its "already
// on a service tree" assertion.
func (e *Engine) ResetInService(leaf *entity.Entity) {
	for cur := leaf; cur != nil; cur = cur.Parent {
		if cur.SchedData != nil {
			cur.SchedData.InServiceEntity = nil
		}
	}
}

// NextMayPreempt reports whether the root's cached next-in-service choice
// differs from the entity currently in service, a hint that a
// higher-priority entity became eligible while the current one was being
// served.
func (e *Engine) NextMayPreempt() bool {
	return e.root.MySchedData.MayPreempt()
}
