package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiPlannerAddSpanAtomic(t *testing.T) {
	mp, err := NewMulti(0, 3600, []string{"core", "gpu"}, []uint64{8, 2})
	require.NoError(t, err)

	n, err := mp.AvailDuring(0, 100, []uint64{4, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	id, err := mp.AddSpan(0, 100, []uint64{4, 1})
	require.NoError(t, err)
	require.NotZero(t, id)

	n, err = mp.AvailDuring(0, 100, []uint64{4, 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMultiPlannerAddSpanRollsBackOnPartialFailure(t *testing.T) {
	mp, err := NewMulti(0, 3600, []string{"core", "gpu"}, []uint64{8, 2})
	require.NoError(t, err)

	_, err = mp.AddSpan(0, 100, []uint64{4, 3}) // gpu req exceeds total
	require.Error(t, err)

	// core planner must not retain the partially-applied span.
	corePlanner := mp.Planner("core")
	avail, err := corePlanner.AvailDuring(0, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(8), avail)
}

func TestMultiPlannerReduceSpanRemovesWhenAllZero(t *testing.T) {
	mp, err := NewMulti(0, 3600, []string{"core", "gpu"}, []uint64{8, 2})
	require.NoError(t, err)
	id, err := mp.AddSpan(0, 100, []uint64{4, 1})
	require.NoError(t, err)

	removed, err := mp.ReduceSpan(id, []uint64{4, 0})
	require.NoError(t, err)
	assert.False(t, removed, "gpu side still holds 1 unit")

	removed, err = mp.ReduceSpan(id, []uint64{0, 1})
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestMultiPlannerAggregate(t *testing.T) {
	mp, err := NewMulti(0, 3600, []string{"core", "gpu"}, []uint64{8, 2})
	require.NoError(t, err)
	got := mp.Aggregate(map[string]uint64{"core": 4, "node": 99})
	assert.Equal(t, []uint64{4, 0}, got)
}
