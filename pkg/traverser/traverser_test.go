package traverser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khryptorgraphics/gridmatch/pkg/filter"
	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
	"github.com/khryptorgraphics/gridmatch/pkg/planner"
	"github.com/khryptorgraphics/gridmatch/pkg/policy"
)

// buildTestGraph returns a tiny cluster -> node(x2) -> core(x3 each)
// containment tree, every vertex carrying a one-unit planner over
// [0, 10).
func buildTestGraph(t *testing.T) (*graph.Vertex, map[string]*graph.Vertex) {
	t.Helper()
	byName := make(map[string]*graph.Vertex)

	newPlannedVertex := func(id int64, typ, name string, rank int64) *graph.Vertex {
		v := graph.NewVertex(id, typ, typ, name, rank, 1)
		p, err := planner.New(0, 10, 1, typ)
		require.NoError(t, err)
		v.Schedule.Plans = p
		byName[name] = v
		return v
	}

	cluster := newPlannedVertex(1, "cluster", "cluster0", -1)
	node1 := newPlannedVertex(2, "node", "node0", 0)
	node2 := newPlannedVertex(3, "node", "node1", 1)
	cluster.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: "node0", Target: node1, Weight: node1.UniqID})
	cluster.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: "node1", Target: node2, Weight: node2.UniqID})

	for _, n := range []*graph.Vertex{node1, node2} {
		for i := 0; i < 3; i++ {
			id := n.UniqID*10 + int64(i)
			c := newPlannedVertex(id, "core", n.Name+"-core"+string(rune('0'+i)), n.Rank)
			n.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: c.Name, Target: c, Weight: c.UniqID})
		}
	}

	return cluster, byName
}

func twoCoreJobspec() *jobspec.Jobspec {
	return &jobspec.Jobspec{
		Version: 1,
		Resources: []jobspec.Resource{
			{
				Type:  "node",
				Count: jobspec.Count{Min: 1, Max: 1, Operator: jobspec.OpAdd, Operand: 1},
				With: []jobspec.Resource{
					{Type: "core", Count: jobspec.Count{Min: 2, Max: 2, Operator: jobspec.OpAdd, Operand: 1}},
				},
			},
		},
	}
}

func TestSelectPicksRequestedCounts(t *testing.T) {
	root, _ := buildTestGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	match, err := tv.Select(twoCoreJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)
	require.Len(t, match.Picks, 1)

	nodeAgg := match.Picks[0]
	require.Len(t, nodeAgg.Children, 1, "exactly one node should be selected")

	nodePick := nodeAgg.Children[0]
	require.NotNil(t, nodePick.Vertex)
	require.Len(t, nodePick.Children, 1)

	coreAgg := nodePick.Children[0]
	assert.Len(t, coreAgg.Children, 2, "exactly two cores should be selected")
	for _, cp := range coreAgg.Children {
		assert.Equal(t, "core", cp.Resource.Type)
	}
}

func TestSelectFailsWhenCountUnsatisfiable(t *testing.T) {
	root, _ := buildTestGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	js := &jobspec.Jobspec{
		Resources: []jobspec.Resource{
			{Type: "node", Count: jobspec.Count{Min: 5, Max: 5, Operator: jobspec.OpAdd, Operand: 1}},
		},
	}
	_, err := tv.Select(js, Meta{At: 0, Duration: 5})
	require.Error(t, err)
}

func TestUpdateTagsSelectedVerticesAndBooksXChecker(t *testing.T) {
	root, _ := buildTestGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	match, err := tv.Select(twoCoreJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)

	require.NoError(t, tv.Update(match, "job1", Meta{At: 0, Duration: 5}, Allocate, nil))

	nodePick := match.Picks[0].Children[0]
	_, tagged := nodePick.Vertex.IData.Tags["job1"]
	assert.True(t, tagged)
	_, hasXSpan := nodePick.Vertex.IData.XSpans["job1"]
	assert.True(t, hasXSpan)

	for _, cp := range nodePick.Children[0].Children {
		_, tagged := cp.Vertex.IData.Tags["job1"]
		assert.True(t, tagged)
	}
}

func TestUpdateRollsBackOnFailure(t *testing.T) {
	root, _ := buildTestGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	match, err := tv.Select(twoCoreJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)

	nodePick := match.Picks[0].Children[0]
	cores := nodePick.Children[0].Children
	require.Len(t, cores, 2)

	// Starve the second core's x_checker so its AddSpan fails, forcing
	// Update to unwind the bookings it already made on the node and the
	// first core.
	starved, err := planner.New(0, 5, 0, "x_checker")
	require.NoError(t, err)
	cores[1].Vertex.IData.XChecker = starved

	err = tv.Update(match, "job1", Meta{At: 0, Duration: 5}, Allocate, nil)
	require.Error(t, err)

	_, tagged := nodePick.Vertex.IData.Tags["job1"]
	assert.False(t, tagged, "node booking must be undone after the failure")
	_, tagged = cores[0].Vertex.IData.Tags["job1"]
	assert.False(t, tagged, "first core's booking must be undone after the failure")
}
