package engine

import (
	"github.com/virtq/bwf2q/internal/entity"
	"github.com/virtq/bwf2q/internal/vtime"
)

// chargeTimeBudgetCapFactor, as a multiple of MaxBudget, bounds how far
// ChargeTime is allowed to grow an
// entity's budget to cover an inflated time-based charge, so a
// pathologically slow queue cannot make its own budget (and therefore its
// own finish delta) grow without bound. Grounded on the reference
// implementation's general budget-growth caps elsewhere in bfq-sched.c,
// which leave the exact cap implicit in "grow budget to cover."
const chargeTimeBudgetCapFactor = 2

// Served credits bytes of service to leaf and every ancestor, advancing
// each level's virtual time and lazily forgetting one expired idle entry
// per level, mirroring bfq_bfqq_served.
func (e *Engine) Served(leaf *entity.Entity, bytes uint64) {
	assertf(leaf.IsLeaf(), "Served: entity %q is not a leaf", leaf.ID)

	for cur := leaf; cur != nil && cur.SchedData != nil; cur = cur.Parent {
		st := serviceTreeFor(cur.SchedData, cur)
		cur.Service += bytes
		assertf(st.WSum != 0, "Served: service tree wsum is zero while charging entity %q", cur.ID)
		st.VTime += vtime.Delta(bytes, st.WSum)
		st.Forget()
	}
}

// ChargeTime charges leaf (and its ancestors) an amount of service
// equivalent to elapsedMS of wall-clock time at the configured peak rate,
// instead of the service actually measured, converting service-fair
// accounting into time-fair accounting for a queue that consumed its
// budget slowly, mirroring bfq_bfqq_charge_time. timeoutMS is the nominal
// slot duration used to scale max budget down to the observed interval.
func (e *Engine) ChargeTime(leaf *entity.Entity, elapsedMS, timeoutMS uint64) {
	assertf(leaf.IsLeaf(), "ChargeTime: entity %q is not a leaf", leaf.ID)

	toCharge := leaf.Service
	if elapsedMS > 0 && timeoutMS > 0 && elapsedMS < timeoutMS {
		toCharge = (e.params.MaxBudget * elapsedMS) / timeoutMS
	}
	if toCharge < leaf.Service {
		toCharge = leaf.Service
	}

	budgetCap := chargeTimeBudgetCapFactor * e.params.MaxBudget
	if toCharge > leaf.Budget {
		leaf.Budget = toCharge
		if leaf.Budget > budgetCap {
			leaf.Budget = budgetCap
		}
	}

	delta := uint64(0)
	if toCharge > leaf.Service {
		delta = toCharge - leaf.Service
	}
	if delta > 0 && e.observer != nil {
		e.observer.OnChargeTimeInflation()
	}
	e.Served(leaf, delta)
}
