package traverser

import (
	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/planner"
)

// AllocType distinguishes a firm allocation from a reservation when
// committing an exclusive span onto a vertex's own plans (spec.md §4.6.3).
type AllocType int

const (
	Allocate AllocType = iota
	Reserve
)

// Writer receives every vertex update() or find() visits, in walk order —
// the hook the emitters (pkg/emit) attach to for RV1/JGF/RLITE/SIMPLE
// output. jobid/needs/exclusive are the allocation this particular visit
// committed (zero values outside Update, e.g. from Find).
type Writer interface {
	Vertex(v *graph.Vertex, jobid string, needs int64, exclusive bool)
}

// EdgeWriter is an optional extension a Writer implements when it also
// needs the traversed containment edge (JGF's edge list), not just the
// vertices it connects. Update calls it, when present, once per
// parent/child pair it descends into.
type EdgeWriter interface {
	Edge(parent, child *graph.Vertex, subsystem string)
}

// undoEntry records one vertex's committed mutations so a failed Update
// can be unwound span-by-span rather than leaving the graph half-booked.
type undoEntry struct {
	vertex     *graph.Vertex
	xSpanID    int64
	hadXSpan   bool
	subSpanID  int64
	hadSubSpan bool
	allocSpan  int64
	hadAlloc   bool
	reserve    bool
}

// Update commits match's picks as jobid's allocation against t's graph:
// every picked vertex is tagged and charged one unit against its
// x_checker, a picked vertex that carries its own subtree filter has it
// extended by the demand of its pick subtree, and exclusive picks additionally book
// their own plans (spec.md §4.6.3). A failure partway through unwinds
// every span this call recorded before returning the error — a vertex
// either ends up fully committed or untouched, never half-booked.
func (t *Traverser) Update(match *Match, jobid string, meta Meta, alloc AllocType, w Writer) error {
	t.tick()
	var undo []undoEntry
	for i := range match.Picks {
		if err := t.updatePick(&match.Picks[i], jobid, meta, alloc, w, &undo); err != nil {
			rollback(jobid, undo)
			return err
		}
	}
	return nil
}

func (t *Traverser) updatePick(p *Pick, jobid string, meta Meta, alloc AllocType, w Writer, undo *[]undoEntry) error {
	v := p.Vertex
	if v == nil {
		for i := range p.Children {
			if err := t.updatePick(&p.Children[i], jobid, meta, alloc, w, undo); err != nil {
				return err
			}
		}
		return nil
	}

	entry := undoEntry{vertex: v}

	if v.IData.XChecker == nil {
		baseTime, duration := meta.At, meta.Duration
		if v.Schedule.Plans != nil {
			baseTime, duration = v.Schedule.Plans.BaseTime(), v.Schedule.Plans.Duration()
		}
		xc, err := planner.New(baseTime, duration, XCheckerNJobs, "x_checker")
		if err != nil {
			return err
		}
		v.IData.XChecker = xc
	}
	xSpanID, err := v.IData.XChecker.AddSpan(meta.At, meta.Duration, 1)
	if err != nil {
		return err
	}
	entry.xSpanID = xSpanID
	entry.hadXSpan = true

	if mp, ok := v.IData.Subplans[DominantSubsystem]; ok {
		req := mp.Aggregate(subtreeAggregate(p))
		subSpanID, err := mp.AddSpan(meta.At, meta.Duration, req)
		if err != nil {
			v.IData.XChecker.RemSpan(entry.xSpanID)
			return err
		}
		entry.subSpanID = subSpanID
		entry.hadSubSpan = true
	}

	if p.Exclusive && v.Schedule.Plans != nil {
		spanID, err := v.Schedule.Plans.AddSpan(meta.At, meta.Duration, uint64(p.Needs))
		if err != nil {
			if entry.hadSubSpan {
				v.IData.Subplans[DominantSubsystem].RemSpan(entry.subSpanID)
			}
			v.IData.XChecker.RemSpan(entry.xSpanID)
			return err
		}
		entry.allocSpan = spanID
		entry.hadAlloc = true
		entry.reserve = alloc == Reserve
	}

	// Only commit idata bookkeeping and the span slot once every booking
	// above has succeeded for this vertex.
	v.IData.Tags[jobid] = struct{}{}
	if entry.hadXSpan {
		v.IData.XSpans[jobid] = entry.xSpanID
	}
	if entry.hadSubSpan {
		v.IData.Job2Span[jobid] = entry.subSpanID
	}
	if entry.hadAlloc {
		span := graph.Span{JobID: jobid, SpanID: entry.allocSpan, Reserved: entry.reserve}
		if entry.reserve {
			v.Schedule.Reservations[jobid] = span
		} else {
			v.Schedule.Allocations[jobid] = span
		}
	}
	*undo = append(*undo, entry)

	if w != nil {
		w.Vertex(v, jobid, p.Needs, p.Exclusive)
	}

	for i := range p.Children {
		childVertex := firstVertex(&p.Children[i])
		if w != nil {
			if ew, ok := w.(EdgeWriter); ok && childVertex != nil {
				ew.Edge(v, childVertex, DominantSubsystem)
			}
		}
		if err := t.updatePick(&p.Children[i], jobid, meta, alloc, w, undo); err != nil {
			return err
		}
		if childVertex != nil && t.Policy != nil && t.Policy.StopOnKMatches() > 0 {
			t.rebucketEdge(v, childVertex, meta)
		}
	}
	return nil
}

// rebucketEdge recomputes the weight of v's out-edge to child from its
// post-update planner availability and re-sorts v's out-edges, per
// spec.md §4.6.3's dynamic-mode update: "after each successful child
// update, if dynamic mode is active, rebucket the corresponding out-edge
// by recomputing weight ... and reinserting into the out-edge index".
func (t *Traverser) rebucketEdge(v, child *graph.Vertex, meta Meta) {
	for _, e := range v.Out {
		if e.Subsystem == DominantSubsystem && e.Target == child {
			e.Weight = edgeWeight(child, meta)
			v.Resort()
			return
		}
	}
}

// edgeWeight is the dynamic-mode rebucket's ordering hint: the child's
// remaining dominant-subsystem subplan availability at meta.At, summed
// across every tracked type. Higher means more headroom left to offer
// future candidates.
func edgeWeight(v *graph.Vertex, meta Meta) int64 {
	mp, ok := v.IData.Subplans[DominantSubsystem]
	if !ok {
		return 0
	}
	var total int64
	for _, typ := range mp.Types() {
		p := mp.Planner(typ)
		if p == nil {
			continue
		}
		avail, err := p.AvailAt(meta.At)
		if err == nil {
			total += int64(avail)
		}
	}
	return total
}

// firstVertex returns p's own vertex, or (when p is a type-level node with
// no vertex of its own) the first descendant's vertex — the target Update
// reports an edge to when it descends from a parent vertex into p.
func firstVertex(p *Pick) *graph.Vertex {
	if p.Vertex != nil {
		return p.Vertex
	}
	for i := range p.Children {
		if v := firstVertex(&p.Children[i]); v != nil {
			return v
		}
	}
	return nil
}

// subtreeAggregate sums, by picked vertex type, the demand p's own vertex
// pick and its descendants place — the quantity charged against that
// vertex's own subplans (spec.md §4.6.1's dfv aggregate, scoped to one
// job's allocation rather than the whole graph's capacity).
func subtreeAggregate(p *Pick) map[string]uint64 {
	agg := make(map[string]uint64)
	var walk func(p *Pick)
	walk = func(p *Pick) {
		if p.Vertex != nil {
			agg[p.Vertex.Type] += uint64(p.Needs)
		}
		for i := range p.Children {
			walk(&p.Children[i])
		}
	}
	walk(p)
	return agg
}

func rollback(jobid string, undo []undoEntry) {
	for i := len(undo) - 1; i >= 0; i-- {
		e := undo[i]
		v := e.vertex
		if e.hadAlloc && v.Schedule.Plans != nil {
			v.Schedule.Plans.RemSpan(e.allocSpan)
			if e.reserve {
				delete(v.Schedule.Reservations, jobid)
			} else {
				delete(v.Schedule.Allocations, jobid)
			}
		}
		if e.hadSubSpan {
			if mp, ok := v.IData.Subplans[DominantSubsystem]; ok {
				mp.RemSpan(e.subSpanID)
			}
			delete(v.IData.Job2Span, jobid)
		}
		if e.hadXSpan && v.IData.XChecker != nil {
			v.IData.XChecker.RemSpan(e.xSpanID)
			delete(v.IData.XSpans, jobid)
		}
		delete(v.IData.Tags, jobid)
	}
}
