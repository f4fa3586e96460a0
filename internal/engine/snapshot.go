package engine

import "github.com/virtq/bwf2q/internal/entity"

// Snapshot is a point-in-time read of engine-wide gauges, used by
// pkg/metrics' polling collector rather than event-driven counters.
type Snapshot struct {
	BusyQueues      int
	RootVirtualTime uint64
	EntitiesByKind  map[string]map[string]int // kind -> tree -> count
	DistinctWeights int
}

// Snapshot walks the hierarchy and reports its current size and the root
// scheduling node's highest-priority virtual time.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		BusyQueues:     e.busyQueues,
		EntitiesByKind: make(map[string]map[string]int),
	}
	if len(e.root.MySchedData.Trees) > 0 {
		s.RootVirtualTime = uint64(e.root.MySchedData.Trees[0].VTime)
	}
	if wc, ok := e.params.Weights.(*entity.WeightCounter); ok {
		s.DistinctWeights = wc.Distinct()
	}
	e.walk(e.root, &s)
	return s
}

func (e *Engine) walk(ent *entity.Entity, s *Snapshot) {
	if ent.MySchedData == nil {
		return
	}
	visit := func(child *entity.Entity) {
		kind := child.Kind.String()
		tree := treeName(child.Tree)
		if s.EntitiesByKind[kind] == nil {
			s.EntitiesByKind[kind] = make(map[string]int)
		}
		s.EntitiesByKind[kind][tree]++
		e.walk(child, s)
	}
	for i := range ent.MySchedData.Trees {
		ent.MySchedData.Trees[i].WalkAll(visit)
	}
	// The in-service entity is off every tree but still attached.
	if in := ent.MySchedData.InServiceEntity; in != nil {
		visit(in)
	}
}

func treeName(t entity.TreeKind) string {
	switch t {
	case entity.ActiveTree:
		return "active"
	case entity.IdleTree:
		return "idle"
	default:
		return "none"
	}
}
