package entity

import "github.com/virtq/bwf2q/internal/vtime"

// ServiceTree is the per-priority-class structure of a SchedulingNode: an
// ordered "active" tree of backlogged entities keyed by Finish and
// augmented with MinStart for eligibility lookup, plus an "idle" tree of
// recently-drained entities retained so re-activation can reuse their
// timestamps.
type ServiceTree struct {
	active *Entity
	idle   *Entity

	firstIdle *Entity
	lastIdle  *Entity

	VTime vtime.Timestamp
	WSum  uint64

	// Weights is an optional sink tracking how many entities currently
	// use each distinct weight value; it backs throughput heuristics
	// outside this core. Nil is a valid no-op sink.
	Weights WeightCounterSink
}

// WeightCounterSink tracks how many entities attached to any service tree
// in the hierarchy use a given weight value. The engine maintains these
// counts when an entity is attached to a service tree, when it is
// forgotten, and on the weight/priority update path; what consumes them
// (throughput-heuristic decisions) is outside this core's scope.
type WeightCounterSink interface {
	IncrementWeight(weight uint32)
	DecrementWeight(weight uint32)
}

// WeightCounter is a simple map-backed WeightCounterSink implementation
// usable by callers that want the counts without implementing the
// interface themselves.
type WeightCounter struct {
	counts map[uint32]int
}

func NewWeightCounter() *WeightCounter {
	return &WeightCounter{counts: make(map[uint32]int)}
}

func (w *WeightCounter) IncrementWeight(weight uint32) { w.counts[weight]++ }

func (w *WeightCounter) DecrementWeight(weight uint32) {
	if w.counts[weight] <= 1 {
		delete(w.counts, weight)
		return
	}
	w.counts[weight]--
}

// Distinct reports how many distinct weight values are currently in use.
func (w *WeightCounter) Distinct() int { return len(w.counts) }

// --- AVL primitives shared by the active and idle variants ---
//
// The tree is intrusive: nodes are *Entity values themselves, ordered by
// wrap-safe Finish comparison. The "active" variant also maintains the
// minStart augmentation used by eligibility lookup; the "idle" variant
// does not need it and skips the extra bookkeeping.

func nodeHeight(n *Entity) int8 {
	if n == nil {
		return 0
	}
	return n.height
}

func max8(a, b int8) int8 {
	if a > b {
		return a
	}
	return b
}

func balanceFactor(n *Entity) int {
	return int(nodeHeight(n.treeLeft)) - int(nodeHeight(n.treeRight))
}

// refreshNode recomputes n's height and, if augmented, its minStart from
// its current children. Called after any change to n's children,
// including the two nodes pivoted by a rotation.
func refreshNode(n *Entity, augmented bool) {
	n.height = 1 + max8(nodeHeight(n.treeLeft), nodeHeight(n.treeRight))
	if !augmented {
		return
	}
	m := n.Start
	if n.treeLeft != nil && vtime.Before(n.treeLeft.minStart, m) {
		m = n.treeLeft.minStart
	}
	if n.treeRight != nil && vtime.Before(n.treeRight.minStart, m) {
		m = n.treeRight.minStart
	}
	n.minStart = m
}

func replaceChild(root **Entity, parent, old, new *Entity) {
	if parent == nil {
		*root = new
		return
	}
	if parent.treeLeft == old {
		parent.treeLeft = new
	} else {
		parent.treeRight = new
	}
}

func rotateLeft(root **Entity, x *Entity, augmented bool) *Entity {
	y := x.treeRight
	x.treeRight = y.treeLeft
	if y.treeLeft != nil {
		y.treeLeft.treeParent = x
	}
	y.treeParent = x.treeParent
	replaceChild(root, x.treeParent, x, y)
	y.treeLeft = x
	x.treeParent = y
	refreshNode(x, augmented)
	refreshNode(y, augmented)
	return y
}

func rotateRight(root **Entity, x *Entity, augmented bool) *Entity {
	y := x.treeLeft
	x.treeLeft = y.treeRight
	if y.treeRight != nil {
		y.treeRight.treeParent = x
	}
	y.treeParent = x.treeParent
	replaceChild(root, x.treeParent, x, y)
	y.treeRight = x
	x.treeParent = y
	refreshNode(x, augmented)
	refreshNode(y, augmented)
	return y
}

// rebalanceUp walks from n to the root, refreshing height/minStart and
// applying rotations to restore the AVL balance property. Used both after
// insertion and after extraction.
func rebalanceUp(root **Entity, n *Entity, augmented bool) {
	for n != nil {
		refreshNode(n, augmented)
		bf := balanceFactor(n)
		if bf > 1 {
			if balanceFactor(n.treeLeft) < 0 {
				rotateLeft(root, n.treeLeft, augmented)
			}
			n = rotateRight(root, n, augmented)
		} else if bf < -1 {
			if balanceFactor(n.treeRight) > 0 {
				rotateRight(root, n.treeRight, augmented)
			}
			n = rotateLeft(root, n, augmented)
		}
		n = n.treeParent
	}
}

// treeInsert links e into the tree rooted at *root, ordered so that a walk
// preferring the left child whenever the current node's Finish is greater
// than e.Finish reproduces bfq_insert's ordering (entries with a smaller
// Finish end up to the left).
func treeInsert(root **Entity, augmented bool, e *Entity) {
	e.treeLeft, e.treeRight, e.treeParent = nil, nil, nil
	e.height = 1
	if augmented {
		e.minStart = e.Start
	}
	if *root == nil {
		*root = e
		return
	}
	cur := *root
	for {
		if vtime.After(cur.Finish, e.Finish) {
			if cur.treeLeft == nil {
				cur.treeLeft = e
				e.treeParent = cur
				break
			}
			cur = cur.treeLeft
		} else {
			if cur.treeRight == nil {
				cur.treeRight = e
				e.treeParent = cur
				break
			}
			cur = cur.treeRight
		}
	}
	rebalanceUp(root, e.treeParent, augmented)
}

// treeExtract unlinks e from the tree rooted at *root using standard
// intrusive-node splicing (never copying e's data into another node,
// since external code holds pointers to specific Entities).
func treeExtract(root **Entity, augmented bool, e *Entity) {
	var rebalanceStart *Entity

	if e.treeLeft != nil && e.treeRight != nil {
		s := e.treeRight
		for s.treeLeft != nil {
			s = s.treeLeft
		}
		if s.treeParent != e {
			rebalanceStart = s.treeParent
			rebalanceStart.treeLeft = s.treeRight
			if s.treeRight != nil {
				s.treeRight.treeParent = rebalanceStart
			}
			s.treeRight = e.treeRight
			s.treeRight.treeParent = s
		} else {
			rebalanceStart = s
		}
		s.treeLeft = e.treeLeft
		s.treeLeft.treeParent = s
		s.treeParent = e.treeParent
		replaceChild(root, e.treeParent, e, s)
	} else {
		child := e.treeLeft
		if child == nil {
			child = e.treeRight
		}
		parent := e.treeParent
		if child != nil {
			child.treeParent = parent
		}
		replaceChild(root, parent, e, child)
		rebalanceStart = parent
	}

	e.treeLeft, e.treeRight, e.treeParent = nil, nil, nil
	e.height = 1
	if augmented {
		e.minStart = e.Start
	}
	rebalanceUp(root, rebalanceStart, augmented)
}

// --- ServiceTree active-tree operations ---

// InsertActive inserts e into the active tree by Finish, maintaining the
// MinStart augmentation on the path to the root.
func (st *ServiceTree) InsertActive(e *Entity) {
	treeInsert(&st.active, true, e)
	e.Tree = ActiveTree
}

// ExtractActive removes e from the active tree, recomputing MinStart from
// the point of structural change upward.
func (st *ServiceTree) ExtractActive(e *Entity) {
	treeExtract(&st.active, true, e)
	e.Tree = NoTree
}

// ActiveEmpty reports whether the active tree has no entities.
func (st *ServiceTree) ActiveEmpty() bool { return st.active == nil }

// ActiveRoot exposes the active tree's root, mainly for invariant testing.
func (st *ServiceTree) ActiveRoot() *Entity { return st.active }

// MinStartOf reports the MinStart augmentation stored on a node; exported
// for invariant testing.
func MinStartOf(e *Entity) vtime.Timestamp { return e.minStart }

// TreeChildren exposes a node's tree children, for invariant testing only.
func TreeChildren(e *Entity) (left, right *Entity) { return e.treeLeft, e.treeRight }

// WalkAll visits every entity on both the active and idle trees, in no
// particular order. Used by callers that need a full census (e.g. metrics
// snapshots) without reaching into the unexported tree roots themselves.
func (st *ServiceTree) WalkAll(fn func(*Entity)) {
	walkSubtree(st.active, fn)
	walkSubtree(st.idle, fn)
}

func walkSubtree(n *Entity, fn func(*Entity)) {
	if n == nil {
		return
	}
	walkSubtree(n.treeLeft, fn)
	fn(n)
	walkSubtree(n.treeRight, fn)
}

// --- ServiceTree idle-tree operations ---

// InsertIdle inserts e into the idle tree by Finish and updates the
// FirstIdle/LastIdle caches.
func (st *ServiceTree) InsertIdle(e *Entity) {
	if st.firstIdle == nil || vtime.After(st.firstIdle.Finish, e.Finish) {
		st.firstIdle = e
	}
	if st.lastIdle == nil || vtime.After(e.Finish, st.lastIdle.Finish) {
		st.lastIdle = e
	}
	treeInsert(&st.idle, false, e)
	e.Tree = IdleTree
}

// ExtractIdle removes e from the idle tree, sliding the first/last caches
// to the successor/predecessor.
func (st *ServiceTree) ExtractIdle(e *Entity) {
	if e == st.firstIdle {
		st.firstIdle = treeSuccessor(e)
	}
	if e == st.lastIdle {
		st.lastIdle = treePredecessor(e)
	}
	treeExtract(&st.idle, false, e)
	e.Tree = NoTree
}

func treeSuccessor(e *Entity) *Entity {
	if e.treeRight != nil {
		n := e.treeRight
		for n.treeLeft != nil {
			n = n.treeLeft
		}
		return n
	}
	n, p := e, e.treeParent
	for p != nil && n == p.treeRight {
		n, p = p, p.treeParent
	}
	return p
}

func treePredecessor(e *Entity) *Entity {
	if e.treeLeft != nil {
		n := e.treeLeft
		for n.treeRight != nil {
			n = n.treeRight
		}
		return n
	}
	n, p := e, e.treeParent
	for p != nil && n == p.treeLeft {
		n, p = p, p.treeParent
	}
	return p
}

// --- forget / garbage collection ---

// forgetEntity releases st's bookkeeping for e: marks it off-tree and
// subtracts its weight from WSum. Leaf queues additionally drop the
// reference held by the idle tree.
func (st *ServiceTree) forgetEntity(e *Entity) {
	e.OnST = false
	st.WSum -= uint64(e.Weight)
	if st.Weights != nil {
		st.Weights.DecrementWeight(e.Weight)
	}
	e.Put()
}

func (st *ServiceTree) putIdleEntity(e *Entity) {
	st.ExtractIdle(e)
	st.forgetEntity(e)
}

// ForgetEntity releases st's bookkeeping for e directly, for callers (the
// deactivation path) that already extracted e themselves and now need the
// wsum/weight-counter/refcount side effects of bfq_forget_entity without
// an idle-tree extraction.
func (st *ServiceTree) ForgetEntity(e *Entity) {
	st.forgetEntity(e)
}

// Forget garbage-collects at most one expired idle entry (Finish <=
// VTime), and lazily jumps VTime to the last idle entity's Finish if the
// active tree is empty and that entity has already expired.
func (st *ServiceTree) Forget() {
	if st.ActiveEmpty() && st.lastIdle != nil && vtime.AtMost(st.lastIdle.Finish, st.VTime) {
		st.VTime = st.lastIdle.Finish
	}
	if st.firstIdle != nil && vtime.AtMost(st.firstIdle.Finish, st.VTime) {
		st.putIdleEntity(st.firstIdle)
	}
}

// ForgetAll drops every remaining idle entity. Exposed for callers that
// need a deterministic clean slate (e.g. group teardown); the hot path
// only ever calls Forget, which is amortized to one entry per event.
func (st *ServiceTree) ForgetAll() {
	for st.firstIdle != nil {
		st.putIdleEntity(st.firstIdle)
	}
}

// --- eligibility lookup ---

// UpdateVTime advances VTime to the active tree's MinStart if necessary,
// guaranteeing at least one eligible entity exists before FirstActive is
// called. Assumes the active tree is non-empty.
func (st *ServiceTree) UpdateVTime() {
	root := st.active
	if root == nil {
		return
	}
	if vtime.After(root.minStart, st.VTime) {
		st.VTime = root.minStart
		st.Forget()
	}
}

// FirstActive finds the eligible entity (Start <= VTime) with the
// smallest Finish, descending left whenever the left subtree might
// contain an eligible entity (witnessed by its MinStart).
func (st *ServiceTree) FirstActive() *Entity {
	node := st.active
	var first *Entity
	for node != nil {
		if vtime.AtMost(node.Start, st.VTime) {
			first = node
		}
		if node.treeLeft != nil && vtime.AtMost(node.treeLeft.minStart, st.VTime) {
			node = node.treeLeft
			continue
		}
		if first != nil {
			break
		}
		node = node.treeRight
	}
	return first
}

// LookupNext returns the eligible entity with the smallest Finish in st,
// or nil if the active tree is empty. Combines UpdateVTime and
// FirstActive, matching __bfq_lookup_next_entity without the "force"
// budget-propagation side effect, which lives in SchedulingNode.LookupNext.
func (st *ServiceTree) LookupNext() *Entity {
	if st.ActiveEmpty() {
		return nil
	}
	st.UpdateVTime()
	return st.FirstActive()
}
