package emit

import "github.com/khryptorgraphics/gridmatch/pkg/graph"

// recorded is one vertex's recorded visit plus the children edges
// traverser.Update/Find reported into it.
type recorded struct {
	vertex    *graph.Vertex
	jobid     string
	needs     int64
	exclusive bool
	children  []*recorded
}

// Recorder is the base every structured emitter (JGF, RLITE, RV1) builds
// on: Update's hooks are preorder-only (Vertex on discovery, Edge before
// descending into a child) with no postorder "subtree closed" signal, but
// RLITE's reducer-type accumulation and JGF's full node/edge list both
// need the whole subtree at once. Recorder plays the preorder visit back
// into an in-memory tree during the live walk; each concrete format then
// synthesizes its output from that tree in a second, read-only pass after
// the walk completes.
type Recorder struct {
	roots []*recorded
	byID  map[int64]*recorded
}

// NewRecorder returns an empty recorder, ready to pass as a
// traverser.Writer (and, since it implements Edge too, a
// traverser.EdgeWriter).
func NewRecorder() *Recorder {
	return &Recorder{byID: make(map[int64]*recorded)}
}

func (r *Recorder) ensure(v *graph.Vertex) *recorded {
	n, ok := r.byID[v.UniqID]
	if ok {
		return n
	}
	n = &recorded{vertex: v}
	r.byID[v.UniqID] = n
	r.roots = append(r.roots, n)
	return n
}

// Vertex records v's allocation for the current walk (traverser.Writer).
func (r *Recorder) Vertex(v *graph.Vertex, jobid string, needs int64, exclusive bool) {
	n := r.ensure(v)
	n.jobid, n.needs, n.exclusive = jobid, needs, exclusive
}

// Edge records that child was reached from parent via subsystem
// (traverser.EdgeWriter), reparenting child out of the root set if it had
// tentatively been recorded as one.
func (r *Recorder) Edge(parent, child *graph.Vertex, _ string) {
	p := r.ensure(parent)
	c := r.ensure(child)
	p.children = append(p.children, c)
	for i, root := range r.roots {
		if root == c {
			r.roots = append(r.roots[:i], r.roots[i+1:]...)
			break
		}
	}
}

// Roots returns the recorded forest's root vertices, in first-visit
// order.
func (r *Recorder) Roots() []*graph.Vertex {
	out := make([]*graph.Vertex, 0, len(r.roots))
	for _, n := range r.roots {
		out = append(out, n.vertex)
	}
	return out
}

// walk visits every recorded node exactly once in preorder, depth-first,
// calling fn(node, parent) — parent is nil for a root.
func (r *Recorder) walk(fn func(n, parent *recorded)) {
	seen := make(map[int64]bool, len(r.byID))
	var visit func(n, parent *recorded)
	visit = func(n, parent *recorded) {
		if seen[n.vertex.UniqID] {
			return
		}
		seen[n.vertex.UniqID] = true
		fn(n, parent)
		for _, c := range n.children {
			visit(c, n)
		}
	}
	for _, root := range r.roots {
		visit(root, nil)
	}
}
