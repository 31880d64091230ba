package traverser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khryptorgraphics/gridmatch/pkg/filter"
	"github.com/khryptorgraphics/gridmatch/pkg/policy"
)

func TestRemoveTaggedClearsAllocation(t *testing.T) {
	root, _ := buildTestGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	match, err := tv.Select(twoCoreJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)
	require.NoError(t, tv.Update(match, "job1", Meta{At: 0, Duration: 5}, Allocate, nil))

	// The picked node is tagged by Update, so Remove takes the tagged walk
	// from it.
	nodePick := match.Picks[0].Children[0]
	require.NoError(t, tv.Remove(nodePick.Vertex, "job1"))

	_, tagged := nodePick.Vertex.IData.Tags["job1"]
	assert.False(t, tagged)
	_, hasXSpan := nodePick.Vertex.IData.XSpans["job1"]
	assert.False(t, hasXSpan)
	for _, cp := range nodePick.Children[0].Children {
		_, tagged := cp.Vertex.IData.Tags["job1"]
		assert.False(t, tagged)
	}
}

func TestRemoveExhaustiveFallsBackWhenUntagged(t *testing.T) {
	root, names := buildTestGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	match, err := tv.Select(twoCoreJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)
	require.NoError(t, tv.Update(match, "job1", Meta{At: 0, Duration: 5}, Allocate, nil))

	// Update never tags the anchor vertex itself, only the vertices it
	// picks, so Remove(root, ...) always takes the exhaustive path here —
	// exercising the fallback sweep that finds jobid deeper in the tree.
	require.NoError(t, tv.Remove(root, "job1"))

	for _, v := range names {
		_, tagged := v.IData.Tags["job1"]
		assert.False(t, tagged, "vertex %s should have been swept", v.Name)
	}
}
