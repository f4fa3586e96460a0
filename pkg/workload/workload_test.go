package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/virtq/bwf2q/internal/engine"
	"github.com/virtq/bwf2q/internal/entity"
)

func newTestGenerator(t *testing.T, leafNames ...string) (*Generator, map[string]*entity.Entity) {
	t.Helper()
	eng := engine.New(engine.Params{
		NumClasses: 1,
		MaxBudget:  4096,
		MinWeight:  1,
		MaxWeight:  1000,
	})

	leaves := make(map[string]*entity.Entity, len(leafNames))
	for _, name := range leafNames {
		leaf := entity.NewLeaf(name, 100)
		leaf.Budget = 4096
		eng.AttachChild(nil, leaf)
		leaves[name] = leaf
	}

	return NewGenerator(eng, leaves), leaves
}

func TestSubmitActivatesPreviouslyIdleLeaf(t *testing.T) {
	gen, leaves := newTestGenerator(t, "a")

	_, err := gen.Submit("a", 100)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.eng.BusyQueues())
	assert.Equal(t, 1, gen.BacklogLen("a"))
	assert.True(t, leaves["a"].OnST)
}

func TestSubmitAppendsToExistingBacklogWithoutReactivating(t *testing.T) {
	gen, _ := newTestGenerator(t, "a")

	_, err := gen.Submit("a", 100)
	require.NoError(t, err)
	_, err = gen.Submit("a", 200)
	require.NoError(t, err)

	assert.Equal(t, 1, gen.eng.BusyQueues())
	assert.Equal(t, 2, gen.BacklogLen("a"))
}

func TestSubmitUnknownLeafReturnsError(t *testing.T) {
	gen, _ := newTestGenerator(t, "a")

	_, err := gen.Submit("missing", 100)
	assert.ErrorContains(t, err, "unknown leaf")
}

func TestDispatchNextServesOldestRequestFIFO(t *testing.T) {
	gen, _ := newTestGenerator(t, "a")

	first, err := gen.Submit("a", 100)
	require.NoError(t, err)
	_, err = gen.Submit("a", 200)
	require.NoError(t, err)

	req, ok := gen.DispatchNext()
	require.True(t, ok)
	assert.Equal(t, first.ID, req.ID)
	assert.Equal(t, uint64(100), req.Bytes)
	assert.Equal(t, 1, gen.BacklogLen("a"))
}

func TestDispatchNextDeactivatesWhenBacklogDrains(t *testing.T) {
	gen, leaves := newTestGenerator(t, "a")

	_, err := gen.Submit("a", 100)
	require.NoError(t, err)

	_, ok := gen.DispatchNext()
	require.True(t, ok)

	assert.Equal(t, 0, gen.eng.BusyQueues())
	assert.False(t, leaves["a"].OnST)
}

func TestDispatchNextRequeuesWhenBacklogRemains(t *testing.T) {
	gen, _ := newTestGenerator(t, "a")

	_, err := gen.Submit("a", 100)
	require.NoError(t, err)
	second, err := gen.Submit("a", 200)
	require.NoError(t, err)

	req1, ok := gen.DispatchNext()
	require.True(t, ok)
	assert.Equal(t, 1, gen.eng.BusyQueues(), "leaf must still be busy with one request left")

	req2, ok := gen.DispatchNext()
	require.True(t, ok)
	assert.Equal(t, second.ID, req2.ID)
	assert.NotEqual(t, req1.ID, req2.ID)
	assert.Equal(t, 0, gen.eng.BusyQueues())
}

func TestDispatchNextReturnsFalseWhenNothingBusy(t *testing.T) {
	gen, _ := newTestGenerator(t, "a")

	_, ok := gen.DispatchNext()
	assert.False(t, ok)
}

func TestDispatchAcrossMultipleLeavesSharesRotation(t *testing.T) {
	gen, _ := newTestGenerator(t, "a", "b")

	_, err := gen.Submit("a", 100)
	require.NoError(t, err)
	_, err = gen.Submit("b", 100)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		req, ok := gen.DispatchNext()
		require.True(t, ok)
		seen[req.LeafID] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
	assert.Equal(t, 0, gen.eng.BusyQueues())
}
