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

// buildRackSlotGraph returns a cluster -> rack -> node -> core(x4)
// containment tree, matching spec.md §8's S1 scenario shape: a rack
// whose one node carries exactly enough cores for a single 4-core slot.
func buildRackSlotGraph(t *testing.T) *graph.Vertex {
	t.Helper()
	newPlannedVertex := func(id int64, typ, name string, rank int64) *graph.Vertex {
		v := graph.NewVertex(id, typ, typ, name, rank, 1)
		p, err := planner.New(0, 10, 1, typ)
		require.NoError(t, err)
		v.Schedule.Plans = p
		return v
	}

	cluster := newPlannedVertex(1, "cluster", "cluster0", -1)
	rack := newPlannedVertex(2, "rack", "rack0", -1)
	node := newPlannedVertex(3, "node", "node0", 0)
	cluster.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: "rack0", Target: rack, Weight: rack.UniqID})
	rack.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: "node0", Target: node, Weight: node.UniqID})

	for i := 0; i < 4; i++ {
		c := newPlannedVertex(int64(10+i), "core", "node0-core"+string(rune('0'+i)), 0)
		node.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: c.Name, Target: c, Weight: c.UniqID})
	}
	return cluster
}

func rackSlotJobspec() *jobspec.Jobspec {
	return &jobspec.Jobspec{
		Version: 1,
		Resources: []jobspec.Resource{
			{
				Type:      "rack",
				Count:     jobspec.Count{Min: 1, Max: 1, Operator: jobspec.OpAdd, Operand: 1},
				Exclusive: true,
				With: []jobspec.Resource{
					{
						Type:  "node",
						Count: jobspec.Count{Min: 1, Max: 1, Operator: jobspec.OpAdd, Operand: 1},
						With: []jobspec.Resource{
							{
								Type:  "slot",
								Label: "s",
								Count: jobspec.Count{Min: 1, Max: 1, Operator: jobspec.OpAdd, Operand: 1},
								With: []jobspec.Resource{
									{Type: "core", Count: jobspec.Count{Min: 4, Max: 4, Operator: jobspec.OpAdd, Operand: 1}},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestSelectMatchesSlotResource(t *testing.T) {
	root := buildRackSlotGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	match, err := tv.Select(rackSlotJobspec(), Meta{At: 0, Duration: 5})
	require.NoError(t, err)
	require.Len(t, match.Picks, 1)

	rackAgg := match.Picks[0]
	require.Len(t, rackAgg.Children, 1, "exactly one rack selected")
	rackPick := rackAgg.Children[0]
	require.NotNil(t, rackPick.Vertex)
	require.Len(t, rackPick.Children, 1)
	nodeAgg := rackPick.Children[0]
	require.Len(t, nodeAgg.Children, 1, "exactly one node selected")
	nodePick := nodeAgg.Children[0]
	require.NotNil(t, nodePick.Vertex)
	require.Len(t, nodePick.Children, 1)

	slotPick := nodePick.Children[0]
	assert.Equal(t, "slot", slotPick.Resource.Type)
	require.Len(t, slotPick.Children, 1, "exactly one slot instance selected")

	instance := slotPick.Children[0]
	assert.Nil(t, instance.Vertex, "a slot instance is a synthetic grouping, not a vertex pick")
	require.Len(t, instance.Children, 4, "the slot instance must carve out all four cores")
	for _, cp := range instance.Children {
		assert.Equal(t, "core", cp.Resource.Type)
		assert.NotNil(t, cp.Vertex)
	}
}

func TestSelectFailsWhenSlotElementsInsufficient(t *testing.T) {
	root := buildRackSlotGraph(t)
	tv := New(root, policy.NewFirstFit(), filter.New())

	js := rackSlotJobspec()
	js.Resources[0].With[0].With[0].With[0].Count = jobspec.Count{Min: 5, Max: 5, Operator: jobspec.OpAdd, Operand: 1}

	_, err := tv.Select(js, Meta{At: 0, Duration: 5})
	require.Error(t, err, "only four cores exist, so a 5-core slot element can never be satisfied")
}
