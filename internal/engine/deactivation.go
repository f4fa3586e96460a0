package engine

import (
	"github.com/virtq/bwf2q/internal/entity"
	"github.com/virtq/bwf2q/internal/vtime"
)

// deactivateEntity removes ent from its service tree, independent of its
// previous state, mirroring __bfq_deactivate_entity. It reports whether
// the caller should recompute and propagate the parent's next-in-service
// cache.
func (e *Engine) deactivateEntity(ent *entity.Entity, requeue bool) bool {
	sd := ent.SchedData
	if sd == nil || !ent.OnST {
		return false
	}

	st := serviceTreeFor(sd, ent)
	wasInService := ent == sd.InServiceEntity
	assertf(!wasInService || ent.Tree == entity.NoTree, "deactivateEntity: in-service entity %q is still on a tree", ent.ID)

	switch {
	case wasInService:
		calcFinish(ent, ent.Service)
		sd.InServiceEntity = nil
	case ent.Tree == entity.ActiveTree:
		st.ExtractActive(ent)
	case ent.Tree == entity.IdleTree:
		st.ExtractIdle(ent)
	default:
		assertf(ent.Tree == entity.NoTree, "deactivateEntity: entity %q on unexpected tree %v", ent.ID, ent.Tree)
	}

	var shouldPropagate bool
	if wasInService || sd.NextInService == ent {
		shouldPropagate = sd.UpdateNextInService()
	}

	if !requeue || !vtime.After(ent.Finish, st.VTime) {
		st.ForgetEntity(ent)
	} else {
		st.InsertIdle(ent)
	}

	assertf(sd.InServiceEntity != ent, "deactivateEntity: entity %q still cached as in-service", ent.ID)
	assertf(sd.NextInService != ent, "deactivateEntity: entity %q still cached as next-in-service", ent.ID)

	return shouldPropagate
}

// DeactivateEntity deactivates ent and walks upward, either continuing the
// deactivation (when a parent became fully empty) or switching to the
// "update path" that reactivates ancestors whose next-in-service choice
// changed without them becoming empty.
func (e *Engine) DeactivateEntity(ent *entity.Entity, requeue bool) {
	cur := ent
	var parent *entity.Entity

	for cur != nil {
		parent = cur.Parent
		sd := cur.SchedData

		if !e.deactivateEntity(cur, requeue) {
			return
		}
		if sd.NextInService != nil {
			e.updatePath(parent)
			return
		}
		requeue = true
		cur = parent
	}
}

// updatePath reactivates ent and its ancestors (without the
// non-blocking-wait flag, matching the reference's unconditional `false`
// on this path) until a level's UpdateNextInService returns false, i.e.
// that level still has an entity in service.
func (e *Engine) updatePath(ent *entity.Entity) {
	for cur := ent; cur != nil && cur.SchedData != nil; cur = cur.Parent {
		e.activateEntity(cur, false)
		if !cur.SchedData.UpdateNextInService() {
			break
		}
	}
}
