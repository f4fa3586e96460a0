// Package entity implements the B-WF2Q+ data model: the schedulable
// Entity (leaf queue or group), the per-class ServiceTree that holds
// entities ordered by finish time, and the per-group SchedulingNode that
// selects among an entity's priority classes.
//
// Entity, ServiceTree and SchedulingNode live in one package because they
// are mutually referential by design (an Entity points at its parent's
// SchedulingNode and, if it is itself a group, owns one; a SchedulingNode
// holds pointers back to Entities). Go forbids import cycles across
// packages, so the cyclic leaf/group/scheduling-node graph is realized with
// plain pointers inside a single package rather than split across package
// boundaries.
package entity

import "github.com/virtq/bwf2q/internal/vtime"

// Kind discriminates a leaf queue from a group entity, replacing the
// my_sched_data == NULL test of the reference implementation with a tag.
type Kind int

const (
	LeafKind Kind = iota
	GroupKind
)

func (k Kind) String() string {
	if k == GroupKind {
		return "group"
	}
	return "leaf"
}

// TreeKind records which service tree, if any, currently holds an entity.
type TreeKind int

const (
	NoTree TreeKind = iota
	ActiveTree
	IdleTree
)

// Entity is a schedulable unit: either a leaf I/O queue or a group that
// contains other entities. All timestamp, weight and tree-membership
// bookkeeping lives here regardless of kind; tree code operates on this
// common header without needing to know whether it is a leaf or a group.
type Entity struct {
	ID   string
	Kind Kind

	// Weight is the currently effective weight (OrigWeight * WRCoeff for
	// leaves, OrigWeight for groups). OrigWeight is the clamped base
	// weight. NewWeight/NewPrioClass/PrioChanged record a pending change
	// applied lazily at the next activation.
	Weight      uint32
	OrigWeight  uint32
	NewWeight   uint32
	PrioChanged bool

	// WRCoeff is the weight-raising coefficient; callers outside this
	// core manage when it changes, the engine only consults it when
	// computing effective weight and backshift correction. 1 means "not
	// weight-raised".
	WRCoeff uint32

	// PrioClass is the index of the service tree this entity currently
	// belongs to (0 = highest priority). NewPrioClass is the pending
	// class, applied together with NewWeight at the next activation.
	PrioClass    int
	NewPrioClass int

	Start  vtime.Timestamp
	Finish vtime.Timestamp

	// Budget is the service this entity is permitted to consume in its
	// current slot; Service is what it has actually consumed so far.
	Budget  uint64
	Service uint64

	OnST bool
	Tree TreeKind

	// SchedData is the scheduling node of the enclosing group; nil only
	// for the root entity. MySchedData is non-nil iff this entity is
	// itself a group containing children.
	SchedData   *SchedulingNode
	MySchedData *SchedulingNode
	Parent      *Entity

	// refCount tracks external per-process I/O context references; only
	// meaningful for leaf queues, which are reference-counted. Group
	// entities are owned by the group lifecycle instead.
	refCount int

	// minStart is the active-tree augmentation: the minimum Start across
	// this node's subtree. Meaningless while off the active tree.
	minStart vtime.Timestamp

	// Intrusive AVL linkage, shared by the active and idle trees (an
	// entity is never in both at once, per invariant 1).
	treeLeft, treeRight, treeParent *Entity
	height                          int8
}

// NewLeaf creates an unattached leaf queue entity with one reference held
// by the caller.
func NewLeaf(id string, weight uint32) *Entity {
	e := &Entity{
		ID:         id,
		Kind:       LeafKind,
		Weight:     weight,
		OrigWeight: weight,
		NewWeight:  weight,
		WRCoeff:    1,
		refCount:   1,
	}
	return e
}

// NewGroup creates an unattached group entity with its own scheduling
// node holding numClasses service trees.
func NewGroup(id string, weight uint32, numClasses int) *Entity {
	e := &Entity{
		ID:         id,
		Kind:       GroupKind,
		Weight:     weight,
		OrigWeight: weight,
		NewWeight:  weight,
		WRCoeff:    1,
	}
	e.MySchedData = NewSchedulingNode(numClasses)
	return e
}

// IsLeaf reports whether the entity owns I/O requests directly rather than
// delegating to a scheduling node.
func (e *Entity) IsLeaf() bool { return e.Kind == LeafKind }

// Get increments the leaf's reference count. Groups are not refcounted.
func (e *Entity) Get() {
	if e.Kind == LeafKind {
		e.refCount++
	}
}

// Put decrements the leaf's reference count and reports whether it reached
// zero. Groups are not refcounted and Put is a no-op for them.
func (e *Entity) Put() bool {
	if e.Kind != LeafKind {
		return false
	}
	e.refCount--
	return e.refCount <= 0
}

// RefCount reports the current reference count (leaves only; always 0 for
// groups).
func (e *Entity) RefCount() int {
	if e.Kind != LeafKind {
		return 0
	}
	return e.refCount
}

// ClampWeight bounds a weight into [min, max]. Callers are expected to log
// when a clamp actually changed the value.
func ClampWeight(w, min, max uint32) (clamped uint32, wasClamped bool) {
	switch {
	case w < min:
		return min, true
	case w > max:
		return max, true
	default:
		return w, false
	}
}
