package entity

// SchedulingNode is the per-group fan-in point: one ServiceTree per
// priority class, plus the cached in-service and next-in-service
// entities used to avoid re-walking the whole subtree on every dispatch.
type SchedulingNode struct {
	Trees []ServiceTree

	InServiceEntity *Entity
	NextInService   *Entity

	// idleLastService is the wall-clock time (caller-supplied units; the
	// core only ever compares deltas) at which the idle priority class
	// was last given a forced turn, backing the starvation-avoidance
	// rule.
	idleLastService uint64
}

// NewSchedulingNode allocates a node with numClasses empty service trees.
func NewSchedulingNode(numClasses int) *SchedulingNode {
	return &SchedulingNode{Trees: make([]ServiceTree, numClasses)}
}

// NumClasses reports how many priority classes this node serves.
func (sd *SchedulingNode) NumClasses() int { return len(sd.Trees) }

// Tree returns the service tree for priority class class.
func (sd *SchedulingNode) Tree(class int) *ServiceTree { return &sd.Trees[class] }

// ServiceTreeFor returns the service tree an entity currently belongs to
// (by its effective PrioClass), the per-class analogue of
// bfq_entity_service_tree.
func (sd *SchedulingNode) ServiceTreeFor(e *Entity) *ServiceTree { return &sd.Trees[e.PrioClass] }

// updateBudget copies e's budget into its parent entity, so the parent's
// own scheduling decisions see an up to date budget without waiting for
// the parent to itself be selected, mirroring bfq_update_budget. The root
// entity has no parent and is never touched.
func updateBudget(e *Entity) {
	if e.Parent != nil {
		e.Parent.Budget = e.Budget
	}
}

// lookupInTree returns the first eligible entity of Trees[class]. When
// force is true and the chosen entity isn't already cached as
// NextInService, the chosen entity's budget is bubbled up the ancestor
// chain via updateBudget, matching __bfq_lookup_next_entity's "force"
// path used for the forced idle-class turn.
func (sd *SchedulingNode) lookupInTree(class int, force bool) *Entity {
	st := &sd.Trees[class]
	e := st.LookupNext()
	if e == nil {
		return nil
	}
	if force && e != sd.NextInService {
		for n := e; n != nil; n = n.Parent {
			updateBudget(n)
		}
	}
	return e
}

// idleTimeout reports whether enough time has elapsed since the idle
// class's last forced turn, per the starvation-avoidance window.
func (sd *SchedulingNode) idleTimeout(now, window uint64) bool {
	return now-sd.idleLastService > window
}

// LookupNext finds the entity this node would select next: normally the
// first eligible entity across all priority classes in ascending class
// order, except that once every window units of time it forces a turn
// for the lowest class (the idle class) to guard against starvation. If
// extract is true, the chosen entity is pulled out of its active tree
// and installed as InServiceEntity.
//
// A zero window disables the starvation check entirely, whatever now is
// (for a caller with no notion of wall-clock time).
func (sd *SchedulingNode) LookupNext(now, window uint64, extract bool) (result *Entity, forced bool) {
	idleClass := len(sd.Trees) - 1
	start := 0

	if window > 0 && idleClass > 0 && sd.idleTimeout(now, window) {
		if e := sd.lookupInTree(idleClass, true); e != nil {
			start = idleClass
			sd.idleLastService = now
			sd.NextInService = e
			forced = true
		}
	}

	for class := start; class < len(sd.Trees); class++ {
		e := sd.lookupInTree(class, false)
		if e == nil {
			continue
		}
		if extract {
			sd.Trees[class].ExtractActive(e)
			sd.InServiceEntity = e
			sd.NextInService = nil
		}
		return e, forced
	}
	return nil, forced
}

// UpdateNextInService recomputes NextInService by a fresh lookup and
// propagates its budget to the owning group entity. It returns false
// (meaning: caller need not propagate the update further up the tree)
// whenever this node still has an entity in service, since that
// entity's own deactivation/requeue will trigger the next update. It
// otherwise always returns true, matching bfq_update_next_in_service's
// "by now we worry more about correctness than performance" policy of
// always doing a full lookup rather than trying to special-case no-op
// updates.
func (sd *SchedulingNode) UpdateNextInService() bool {
	if sd.InServiceEntity != nil {
		return false
	}

	next := sd.lookupNextNoForce()
	sd.NextInService = next
	if next != nil {
		updateBudget(next)
	}
	return true
}

// lookupNextNoForce is UpdateNextInService's plain lookup: no
// starvation override, no extraction.
func (sd *SchedulingNode) lookupNextNoForce() *Entity {
	for class := range sd.Trees {
		if e := sd.Trees[class].LookupNext(); e != nil {
			return e
		}
	}
	return nil
}

// CheckNextInService reports whether entity matches this node's cached
// NextInService, for invariant testing (bfq_check_next_in_service is a
// WARN_ON in the original; here it's exposed for tests to assert on).
func (sd *SchedulingNode) CheckNextInService(e *Entity) bool {
	return sd.NextInService == e
}

// MayPreempt reports whether the in-service entity should be preempted
// because a different, more urgent entity is now cached as
// NextInService.
func (sd *SchedulingNode) MayPreempt() bool {
	return sd.NextInService != sd.InServiceEntity
}
