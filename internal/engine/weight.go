package engine

import (
	"github.com/virtq/bwf2q/internal/entity"
)

// applyPendingWeight realizes a pending weight/priority-class change at
// activation time, mirroring __bfq_entity_update_weight_prio. The change is
// applied immediately rather than deferred until the entity's outstanding
// finish has caught up with the old vtime, matching the reference
// implementation's own (acknowledged, preserved) behavior.
func applyPendingWeight(sd *entity.SchedulingNode, oldST *entity.ServiceTree, ent *entity.Entity, e *Engine) *entity.ServiceTree {
	if !ent.PrioChanged {
		return oldST
	}
	p := e.params

	oldST.WSum -= uint64(ent.Weight)

	if ent.NewWeight != ent.OrigWeight {
		clamped, violated := entity.ClampWeight(ent.NewWeight, p.MinWeight, p.MaxWeight)
		if violated {
			p.Logger.Warn().
				Str("entity", ent.ID).
				Uint32("requested_weight", ent.NewWeight).
				Uint32("clamped_weight", clamped).
				Msg("weight out of bounds, clamped")
			if e.observer != nil {
				e.observer.OnWeightBoundsViolation()
			}
		}
		ent.NewWeight = clamped
		ent.OrigWeight = clamped
	}

	ent.PrioClass = ent.NewPrioClass
	ent.PrioChanged = false

	newST := sd.ServiceTreeFor(ent)

	prevWeight := ent.Weight
	newWeight := ent.OrigWeight
	if ent.IsLeaf() {
		newWeight *= ent.WRCoeff
	}

	if prevWeight != newWeight && p.Weights != nil {
		p.Weights.DecrementWeight(prevWeight)
	}
	ent.Weight = newWeight
	if prevWeight != newWeight && ent.WRCoeff == 1 && p.Weights != nil {
		p.Weights.IncrementWeight(newWeight)
	}

	newST.WSum += uint64(ent.Weight)

	if newST != oldST {
		ent.Start = newST.VTime
	}

	return newST
}

// UpdateWeight records a pending weight change, applied lazily at the
// entity's next activation.
func (e *Engine) UpdateWeight(ent *entity.Entity, newWeight uint32) {
	ent.NewWeight = newWeight
	ent.NewPrioClass = ent.PrioClass
	ent.PrioChanged = true
}

// UpdatePriorityClass records a pending priority-class change alongside a
// pending weight change, both applied together at the next activation.
func (e *Engine) UpdatePriorityClass(ent *entity.Entity, newWeight uint32, newPrioClass int) {
	assertf(newPrioClass >= 0 && newPrioClass < e.params.NumClasses, "UpdatePriorityClass: class %d out of range", newPrioClass)
	ent.NewWeight = newWeight
	ent.NewPrioClass = newPrioClass
	ent.PrioChanged = true
}
