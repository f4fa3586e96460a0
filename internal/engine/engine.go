// Package engine implements the B-WF2Q+ activation, deactivation and
// service-charging machinery that turns the entity.Entity/ServiceTree/
// SchedulingNode primitives into the eight operations the surrounding
// dispatcher actually calls: AddBusy, DelBusy, GetNextQueue, Served,
// ChargeTime, ResetInService, NextMayPreempt and UpdateWeight.
//
// Engine itself performs no locking and no I/O; the caller is expected to
// hold an exclusive lock around every call, the way pkg/workload.Generator
// wraps its own state with a sync.Mutex.
package engine

import (
	"github.com/rs/zerolog"

	"github.com/virtq/bwf2q/internal/entity"
)

// Params are the caller-supplied parameters fixed for the lifetime of an
// Engine.
type Params struct {
	// Clock returns a monotonic tick count; only deltas matter.
	Clock func() uint64

	MaxBudget uint64

	// StarvationWindow is the number of ticks that may elapse since a
	// scheduling node's idle (lowest-priority) class was last forced into
	// service before the next lookup forces it regardless of eligibility.
	// Zero disables the starvation override.
	StarvationWindow uint64

	MinWeight, MaxWeight uint32
	NumClasses           int

	// Weights, if non-nil, receives IncrementWeight/DecrementWeight calls
	// whenever an entity is attached to or forgotten from a service tree,
	// and whenever its effective weight changes.
	Weights entity.WeightCounterSink

	// Logger receives Warn-level bounds-violation records. The zero value
	// is zerolog.Nop(), so Engine is usable without a caller-supplied
	// logger.
	Logger zerolog.Logger
}

// Engine holds one hierarchy of entities rooted at Root and the parameters
// that govern it.
type Engine struct {
	params Params
	root   *entity.Entity

	busyQueues int
	observer   Observer
}

// New creates an engine rooted at a fresh group entity with NumClasses
// service trees. The root entity is never itself returned by GetNextQueue.
func New(p Params) *Engine {
	if p.Clock == nil {
		p.Clock = func() uint64 { return 0 }
	}
	root := entity.NewGroup("root", p.MaxWeight, p.NumClasses)
	if p.Weights != nil {
		for i := range root.MySchedData.Trees {
			root.MySchedData.Trees[i].Weights = p.Weights
		}
	}
	return &Engine{params: p, root: root}
}

// Root exposes the root group entity, mainly so callers can attach new
// child groups/leaves to it before the first AddBusy.
func (e *Engine) Root() *entity.Entity { return e.root }

// BusyQueues reports how many leaf queues are currently backlogged.
func (e *Engine) BusyQueues() int { return e.busyQueues }

// serviceTreeFor returns the service tree ent belongs to given its current
// (possibly pending) priority class, within its parent's scheduling node.
func serviceTreeFor(sd *entity.SchedulingNode, ent *entity.Entity) *entity.ServiceTree {
	return sd.ServiceTreeFor(ent)
}

// AttachChild wires child under parent (nil parent means the root group),
// setting up the sched_data/parent back-pointers. Groups and leaves are
// both accepted; this is the only place those pointers are established,
// matching the reference implementation's group-creation and
// queue-creation paths.
func (e *Engine) AttachChild(parent, child *entity.Entity) {
	if parent == nil {
		parent = e.root
	}
	assertf(parent.Kind == entity.GroupKind, "AttachChild: parent %q is not a group", parent.ID)
	child.Parent = parent
	child.SchedData = parent.MySchedData
	if e.params.Weights != nil && child.Kind == entity.GroupKind {
		for i := range child.MySchedData.Trees {
			child.MySchedData.Trees[i].Weights = e.params.Weights
		}
	}
}
