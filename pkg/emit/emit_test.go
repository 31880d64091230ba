package emit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khryptorgraphics/gridmatch/pkg/emit"
	"github.com/khryptorgraphics/gridmatch/pkg/filter"
	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/planner"
	"github.com/khryptorgraphics/gridmatch/pkg/traverser"
)

// buildRackGraph mirrors spec.md §8 S1: cluster -> rack[2] -> node[2] ->
// core[4], every vertex carrying a one-unit planner over [0, 3600).
// Out-edges are kept weight-descending, so rack0 and node0 are each the
// last out-edge of their parent.
func buildRackGraph(t *testing.T) *graph.Vertex {
	t.Helper()
	newVtx := func(id int64, typ, name string, rank int64, size uint64) *graph.Vertex {
		v := graph.NewVertex(id, typ, typ, name, rank, size)
		p, err := planner.New(0, 3600, size, typ)
		require.NoError(t, err)
		v.Schedule.Plans = p
		return v
	}

	cluster := newVtx(1, "cluster", "cluster0", -1, 1)
	id := int64(2)
	for r := 0; r < 2; r++ {
		rack := newVtx(id, "rack", "rack"+string(rune('0'+r)), -1, 1)
		id++
		cluster.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: rack.Name, Target: rack, Weight: rack.UniqID})
		for n := 0; n < 2; n++ {
			rank := int64(r*2 + n)
			node := newVtx(id, "node", "node"+string(rune('0'+rank)), rank, 1)
			id++
			rack.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: node.Name, Target: node, Weight: node.UniqID})
			for c := 0; c < 4; c++ {
				core := newVtx(id, "core", node.Name+"-core"+string(rune('0'+c)), rank, 1)
				core.ID = int64(c)
				id++
				node.AddOutEdge(&graph.Edge{Subsystem: "containment", Name: core.Name, Target: core, Weight: core.UniqID})
			}
		}
	}
	return cluster
}

// pickNodeAllCores hand-builds the Match a select() over S1's jobspec
// would produce for one node and all 4 of its cores — enough to drive
// Update and exercise the emitters without re-deriving Select's own
// behavior in this package's tests.
func pickNodeAllCores(node *graph.Vertex) *traverser.Pick {
	p := &traverser.Pick{Vertex: node, Needs: 1, Exclusive: true}
	for _, e := range node.Out {
		p.Children = append(p.Children, traverser.Pick{Vertex: e.Target, Needs: 1, Exclusive: true})
	}
	return p
}

func TestRecorderJGFRoundTripsVertexAndEdgeCount(t *testing.T) {
	cluster := buildRackGraph(t)
	node0 := cluster.Out[1].Target.Out[1].Target

	tv := traverser.New(cluster, nil, filter.New())
	rec := emit.NewRecorder()
	pick := pickNodeAllCores(node0)
	match := &traverser.Match{Picks: []traverser.Pick{*pick}}
	require.NoError(t, tv.Update(match, "job1", traverser.Meta{At: 0, Duration: 3600}, traverser.Allocate, rec))

	doc := rec.JGF("containment")
	assert.Len(t, doc.Graph.Nodes, 5, "node0 + its 4 cores")
	assert.Len(t, doc.Graph.Edges, 4, "node0 -> each core")
	for _, n := range doc.Graph.Nodes {
		assert.NotEmpty(t, n.Metadata["type"])
	}
}

func TestRecorderRLiteCompactsCoreRange(t *testing.T) {
	cluster := buildRackGraph(t)
	node0 := cluster.Out[1].Target.Out[1].Target

	tv := traverser.New(cluster, nil, filter.New())
	rec := emit.NewRecorder()
	pick := pickNodeAllCores(node0)
	match := &traverser.Match{Picks: []traverser.Pick{*pick}}
	require.NoError(t, tv.Update(match, "job1", traverser.Meta{At: 0, Duration: 3600}, traverser.Allocate, rec))

	entries := rec.RLite("node", []string{"core"})
	require.Len(t, entries, 1)
	assert.Equal(t, "0", entries[0].Rank)
	assert.Equal(t, "0-3", entries[0].Children["core"])
}

func TestRecorderRV1EmbedsSchedulingUnlessNoSched(t *testing.T) {
	cluster := buildRackGraph(t)
	node0 := cluster.Out[1].Target.Out[1].Target

	tv := traverser.New(cluster, nil, filter.New())
	rec := emit.NewRecorder()
	pick := pickNodeAllCores(node0)
	match := &traverser.Match{Picks: []traverser.Pick{*pick}}
	require.NoError(t, tv.Update(match, "job1", traverser.Meta{At: 0, Duration: 3600}, traverser.Allocate, rec))

	full := rec.RV1(emit.RV1Options{GathererType: "node", ReducerTypes: []string{"core"}, Subsystem: "containment", At: 0, Duration: 3600})
	require.NotNil(t, full.Scheduling)
	assert.Equal(t, int64(3600), full.Execution.Expiration)

	noSched := rec.RV1(emit.RV1Options{GathererType: "node", ReducerTypes: []string{"core"}, Subsystem: "containment", At: 0, Duration: 3600, NoSched: true})
	assert.Nil(t, noSched.Scheduling)
}

func TestFindJGFReportsAgfilterUtilizationPerJobAndTotals(t *testing.T) {
	cluster := buildRackGraph(t)
	node0 := cluster.Out[1].Target.Out[1].Target

	filters := filter.New()
	require.NoError(t, filters.SetPruningTypesWithSpec("containment", "ALL:node,ALL:core"))
	tv := traverser.New(cluster, nil, filters)
	require.NoError(t, tv.PrimeGraph(0, 3600))

	pick := pickNodeAllCores(node0)
	match := &traverser.Match{Picks: []traverser.Pick{*pick}}
	require.NoError(t, tv.Update(match, "job1", traverser.Meta{At: 0, Duration: 3600}, traverser.Allocate, nil))

	withJob := emit.FindJGF([]*graph.Vertex{node0}, true, "job1")
	require.Len(t, withJob.Graph.Nodes, 1)
	util, ok := withJob.Graph.Nodes[0].Metadata["agfilter"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(4), util["core"], "job1 holds all 4 of node0's cores")

	totals := emit.FindJGF([]*graph.Vertex{node0}, true, "")
	totalsUtil, ok := totals.Graph.Nodes[0].Metadata["agfilter"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(4), totalsUtil["core"], "jobid=0 reports current total usage")

	none := emit.FindJGF([]*graph.Vertex{node0}, false, "")
	assert.NotContains(t, none.Graph.Nodes[0].Metadata, "agfilter")
}

func TestSimpleWriterIndentsByDepth(t *testing.T) {
	cluster := buildRackGraph(t)
	node0 := cluster.Out[1].Target.Out[1].Target

	tv := traverser.New(cluster, nil, filter.New())
	w := emit.NewSimple()
	pick := pickNodeAllCores(node0)
	match := &traverser.Match{Picks: []traverser.Pick{*pick}}
	require.NoError(t, tv.Update(match, "job1", traverser.Meta{At: 0, Duration: 3600}, traverser.Allocate, w))

	lines := w.Lines()
	require.Len(t, lines, 5)
	assert.Equal(t, "node0[1:x]", lines[0])
	assert.Contains(t, lines[1], "  node0-core3[1:x]")
}
