package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtq/bwf2q/internal/entity"
)

// TestProportionalServiceConvergesToWeightRatio drives two permanently
// backlogged leaves of weight 100 and 300 through many small dispatch
// rounds and checks that the cumulative bytes served converge to the 1:3
// weight ratio, the central fairness guarantee a WF2Q+ scheduler exists to
// provide: long-run service share proportional to weight.
func TestProportionalServiceConvergesToWeightRatio(t *testing.T) {
	eng := newTestEngine(1)

	light := entity.NewLeaf("light", 100)
	light.Budget = 1000
	eng.AttachChild(nil, light)

	heavy := entity.NewLeaf("heavy", 300)
	heavy.Budget = 1000
	eng.AttachChild(nil, heavy)

	eng.AddBusy(light, false)
	eng.AddBusy(heavy, false)

	const rounds = 4000
	const chunk = 50
	served := map[string]uint64{}

	for i := 0; i < rounds; i++ {
		ent := eng.GetNextQueue()
		require.NotNil(t, ent)
		eng.Served(ent, chunk)
		served[ent.ID] += chunk
		// Infinite demand: the leaf just served always has more queued, so
		// requeue it immediately rather than deactivating it.
		eng.ActivateEntity(ent, false)
	}

	require.NotZero(t, served["light"])
	require.NotZero(t, served["heavy"])

	ratio := float64(served["heavy"]) / float64(served["light"])
	assert.InDelta(t, 3.0, ratio, 0.3, "heavy:light service ratio should track the 300:100 weight ratio")
}

// TestProportionalServiceHoldsAcrossThreeWeights extends the two-leaf case
// to three simultaneously-backlogged leaves with distinct weights, checking
// that every pairwise ratio tracks the weight ratio, not just the
// heaviest-vs-lightest pair.
func TestProportionalServiceHoldsAcrossThreeWeights(t *testing.T) {
	eng := newTestEngine(1)

	weights := map[string]uint32{"w100": 100, "w200": 200, "w400": 400}
	for id, w := range weights {
		leaf := entity.NewLeaf(id, w)
		leaf.Budget = 1000
		eng.AttachChild(nil, leaf)
		eng.AddBusy(leaf, false)
	}

	const rounds = 6000
	const chunk = 40
	served := map[string]uint64{}

	for i := 0; i < rounds; i++ {
		ent := eng.GetNextQueue()
		require.NotNil(t, ent)
		eng.Served(ent, chunk)
		served[ent.ID] += chunk
		eng.ActivateEntity(ent, false)
	}

	for id := range weights {
		require.NotZero(t, served[id])
	}

	base := float64(served["w100"]) / float64(weights["w100"])
	for id, w := range weights {
		share := float64(served[id]) / float64(w)
		assert.InDelta(t, base, share, base*0.25, "service-per-weight-unit should be roughly equal for %s", id)
	}
}
