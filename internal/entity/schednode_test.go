package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupNextPrefersHigherPriorityClass(t *testing.T) {
	sd := NewSchedulingNode(2)

	low := newActiveLeaf("low", 0, 10, 10)
	low.PrioClass = 1
	sd.Tree(1).InsertActive(low)

	high := newActiveLeaf("high", 0, 10, 10)
	high.PrioClass = 0
	sd.Tree(0).InsertActive(high)

	got, forced := sd.LookupNext(0, 0, false)
	require.NotNil(t, got)
	assert.Equal(t, high, got)
	assert.False(t, forced)
}

func TestLookupNextForcesIdleClassAfterStarvationWindow(t *testing.T) {
	sd := NewSchedulingNode(2)

	high := newActiveLeaf("high", 0, 10, 10)
	high.PrioClass = 0
	sd.Tree(0).InsertActive(high)

	idle := newActiveLeaf("idle", 0, 10, 10)
	idle.PrioClass = 1
	sd.Tree(1).InsertActive(idle)

	// Force the idle class once the starvation window has elapsed.
	got, forced := sd.LookupNext(1000, 100, false)
	require.NotNil(t, got)
	assert.Equal(t, idle, got)
	assert.True(t, forced)
}

func TestLookupNextExtractInstallsInService(t *testing.T) {
	sd := NewSchedulingNode(1)
	leaf := newActiveLeaf("leaf", 0, 10, 10)
	sd.Tree(0).InsertActive(leaf)

	got, _ := sd.LookupNext(0, 0, true)
	require.Equal(t, leaf, got)
	assert.Equal(t, leaf, sd.InServiceEntity)
	assert.Equal(t, NoTree, leaf.Tree)
}

func TestUpdateNextInServiceSkipsWhileInService(t *testing.T) {
	sd := NewSchedulingNode(1)
	leaf := newActiveLeaf("leaf", 0, 10, 10)
	sd.InServiceEntity = leaf

	changed := sd.UpdateNextInService()
	assert.False(t, changed)
}

func TestUpdateNextInServicePropagatesBudgetToParent(t *testing.T) {
	parent := NewGroup("parent", 100, 1)
	sd := parent.MySchedData

	child := newActiveLeaf("child", 0, 10, 10)
	child.Parent = parent
	child.Budget = 4096
	sd.Tree(0).InsertActive(child)

	changed := sd.UpdateNextInService()
	assert.True(t, changed)
	assert.Equal(t, child, sd.NextInService)
	assert.Equal(t, uint64(4096), parent.Budget)
}

func TestMayPreemptReflectsCachedMismatch(t *testing.T) {
	sd := NewSchedulingNode(1)
	inService := newActiveLeaf("in-service", 0, 10, 10)
	nextUp := newActiveLeaf("next-up", 0, 5, 10)

	sd.InServiceEntity = inService
	sd.NextInService = inService
	assert.False(t, sd.MayPreempt())

	sd.NextInService = nextUp
	assert.True(t, sd.MayPreempt())
}
