package traverser

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khryptorgraphics/gridmatch/pkg/filter"
	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
	"github.com/khryptorgraphics/gridmatch/pkg/policy"
)

// allNodesJobspec requests every node, all its cores, exclusively — S5's
// "allocate 4 nodes exclusively with cores" scenario scaled down to the
// 2-node test fixture.
func allNodesJobspec() *jobspec.Jobspec {
	return &jobspec.Jobspec{
		Version: 1,
		Resources: []jobspec.Resource{
			{
				Type:      "node",
				Count:     jobspec.Count{Min: 2, Max: 2, Operator: jobspec.OpAdd, Operand: 1},
				Exclusive: true,
				With: []jobspec.Resource{
					{Type: "core", Count: jobspec.Count{Min: 3, Max: 3, Operator: jobspec.OpAdd, Operand: 1}},
				},
			},
		},
	}
}

// TestPartialCancelJGFRemovesNamedVertexAndReducesAncestor exercises the
// JGF branch of spec.md §4.6.4 at a vertex (a picked core) whose parent
// (the picked node) is itself an anchor in the matched tree: naming just
// that core must free it, leave its sibling core and the node tagged, and
// shrink the node's own subplan aggregate by the one core removed.
func TestPartialCancelJGFRemovesNamedVertexAndReducesAncestor(t *testing.T) {
	root, _ := buildTestGraph(t)
	filters := filter.New()
	require.NoError(t, filters.SetPruningTypesWithSpec("containment", "ALL:node,ALL:core"))

	tv := New(root, policy.NewFirstFit(), filters)
	require.NoError(t, tv.PrimeGraph(0, 10))

	match, err := tv.Select(twoCoreJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)
	require.NoError(t, tv.Update(match, "job7", Meta{At: 0, Duration: 5}, Allocate, nil))

	node := match.Picks[0].Children[0].Vertex // first-fit takes the first out-edge
	corePicks := match.Picks[0].Children[0].Children[0].Children
	require.Len(t, corePicks, 2)
	removedCore := corePicks[0].Vertex
	keptCore := corePicks[1].Vertex

	nodeSub := node.IData.Subplans[DominantSubsystem]
	require.NotNil(t, nodeSub, "the node must be an anchor tracking its core descendants")
	before, err := nodeSub.Planner("core").AvailAt(0)
	require.NoError(t, err)

	jgf := struct {
		Graph struct {
			Nodes []struct {
				ID string `json:"id"`
			} `json:"nodes"`
		} `json:"graph"`
	}{}
	jgf.Graph.Nodes = append(jgf.Graph.Nodes, struct {
		ID string `json:"id"`
	}{ID: strconv.FormatInt(removedCore.UniqID, 10)})
	raw, err := json.Marshal(jgf)
	require.NoError(t, err)

	full, err := tv.PartialCancel(root, raw, "job7")
	require.NoError(t, err)
	assert.False(t, full, "the node and its remaining core still hold job7")

	_, removedTagged := removedCore.IData.Tags["job7"]
	assert.False(t, removedTagged, "the named core must be untagged")
	_, keptTagged := keptCore.IData.Tags["job7"]
	assert.True(t, keptTagged, "the core not named must remain tagged")
	_, nodeTagged := node.IData.Tags["job7"]
	assert.True(t, nodeTagged, "the node itself was not named, so it must remain tagged")

	after, err := nodeSub.Planner("core").AvailAt(0)
	require.NoError(t, err)
	assert.Equal(t, before+1, after, "the node's own subplan must free up the one removed core")
}

// TestPartialCancelRV1RemovesRankSubtree exercises the RV1 branch of
// spec.md §4.6.4: R_lite carries only ranks, so the whole tagged subtree
// at the named rank (a node and its cores) is fully cancelled together.
func TestPartialCancelRV1RemovesRankSubtree(t *testing.T) {
	root, names := buildTestGraph(t)
	filters := filter.New()
	require.NoError(t, filters.SetPruningTypesWithSpec("containment", "ALL:node,ALL:core"))

	tv := New(root, policy.NewFirstFit(), filters)
	require.NoError(t, tv.PrimeGraph(0, 10))

	match, err := tv.Select(allNodesJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)
	require.NoError(t, tv.Update(match, "job7", Meta{At: 0, Duration: 5}, Allocate, nil))

	node0 := names["node0"] // rank 0

	rv1 := struct {
		Execution struct {
			RLite []struct {
				Rank string `json:"rank"`
			} `json:"R_lite"`
		} `json:"execution"`
	}{}
	rv1.Execution.RLite = append(rv1.Execution.RLite, struct {
		Rank string `json:"rank"`
	}{Rank: "0"})
	raw, err := json.Marshal(rv1)
	require.NoError(t, err)

	full, err := tv.PartialCancel(root, raw, "job7")
	require.NoError(t, err)
	assert.False(t, full, "job7 still holds node1 and its cores")

	_, tagged := node0.IData.Tags["job7"]
	assert.False(t, tagged)
	for _, e := range node0.Out {
		_, coreTagged := e.Target.IData.Tags["job7"]
		assert.False(t, coreTagged, "node0's cores must be cancelled along with it")
	}

	node1 := names["node1"]
	_, node1Tagged := node1.IData.Tags["job7"]
	assert.True(t, node1Tagged)
	for _, e := range node1.Out {
		_, coreTagged := e.Target.IData.Tags["job7"]
		assert.True(t, coreTagged, "node1's cores must be untouched")
	}
}
