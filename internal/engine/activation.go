package engine

import (
	"github.com/virtq/bwf2q/internal/entity"
	"github.com/virtq/bwf2q/internal/vtime"
)

// activateEntity attaches ent to the appropriate service tree and assigns
// its timestamps, mirroring __bfq_activate_entity exactly.
func (e *Engine) activateEntity(ent *entity.Entity, nonBlockingWait bool) {
	sd := ent.SchedData
	assertf(sd != nil, "activateEntity: entity %q has no scheduling node", ent.ID)

	st := serviceTreeFor(sd, ent)
	backshifted := false

	switch {
	case ent == sd.InServiceEntity:
		assertf(ent.Tree == entity.NoTree, "activateEntity: in-service entity %q is still on a tree", ent.ID)
		calcFinish(ent, ent.Service)
		ent.Start = ent.Finish
		sd.InServiceEntity = nil

	case ent.Tree == entity.ActiveTree:
		st.ExtractActive(ent)

	default:
		var minVstart vtime.Timestamp
		if nonBlockingWait && vtime.After(st.VTime, ent.Finish) {
			backshifted = true
			minVstart = ent.Finish
		} else {
			minVstart = st.VTime
		}

		switch ent.Tree {
		case entity.IdleTree:
			st.ExtractIdle(ent)
			if vtime.After(minVstart, ent.Finish) {
				ent.Start = minVstart
			} else {
				ent.Start = ent.Finish
			}
		default:
			ent.Start = minVstart
			st.WSum += uint64(ent.Weight)
			if st.Weights != nil {
				st.Weights.IncrementWeight(ent.Weight)
			}
			ent.Get()
			assertf(!ent.OnST, "activateEntity: entity %q already on a service tree", ent.ID)
			ent.OnST = true
		}
	}

	st = applyPendingWeight(sd, st, ent, e)
	calcFinish(ent, ent.Budget)

	if backshifted && vtime.After(st.VTime, ent.Finish) {
		delta := uint64(st.VTime - ent.Finish)
		if ent.WRCoeff > 1 {
			delta /= uint64(ent.WRCoeff)
		}
		ent.Start += vtime.Timestamp(delta)
		ent.Finish += vtime.Timestamp(delta)
		if e.observer != nil {
			e.observer.OnBackshiftCorrection()
		}
	}

	st.InsertActive(ent)
}

// calcFinish assigns ent.Finish from ent.Start and the service to be
// charged, per bfq_calc_finish.
func calcFinish(ent *entity.Entity, service uint64) {
	assertf(ent.Weight != 0, "calcFinish: entity %q has zero weight", ent.ID)
	ent.Finish = ent.Start + vtime.Delta(service, uint64(ent.Weight))
}

// ActivateEntity activates ent and every ancestor up to the root, stopping
// early at the first parent whose UpdateNextInService returns false, i.e.
// one that still has an entity in service.
func (e *Engine) ActivateEntity(ent *entity.Entity, nonBlockingWait bool) {
	for cur := ent; cur != nil && cur.SchedData != nil; cur = cur.Parent {
		e.activateEntity(cur, nonBlockingWait)
		if !cur.SchedData.UpdateNextInService() {
			// The parent's choice is unaffected; no need to propagate
			// the activation further up.
			break
		}
	}
}
