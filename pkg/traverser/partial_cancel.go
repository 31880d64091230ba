package traverser

import (
	"encoding/json"
	"strconv"

	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/idset"
	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
)

// jgfCancelDoc is the subset of a JGF document partial_cancel needs: the
// uniq_id of every vertex the caller wants removed (spec.md §6.3's JGF
// shape, read back rather than re-decoded as pkg/emit.JGFDoc — emit
// already depends on this package for its Writer/EdgeWriter interfaces,
// so a traverser-side JGF reader stays on the raw wire shape instead of
// importing emit's types back, which would cycle).
type jgfCancelDoc struct {
	Graph struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	} `json:"graph"`
}

// rv1CancelDoc is the subset of an RV1 document partial_cancel needs:
// R_lite's rank idsets, decoded into individual ranks removed.
type rv1CancelDoc struct {
	Execution struct {
		RLite []struct {
			Rank string `json:"rank"`
		} `json:"R_lite"`
	} `json:"execution"`
}

// ModData is partial_cancel's parsed-R intermediate (spec.md §4.6.4):
// per-type counts to subtract from ancestor subplans, and — for RV1
// input — the set of ranks being removed.
type ModData struct {
	TypeToCount  map[string]uint64
	RanksRemoved []int64
}

// isJGF reports whether raw looks like a JGF document ({"graph": {...}})
// rather than an RV1 document ({"execution": {...}, ...}).
func isJGF(raw []byte) bool {
	var probe struct {
		Graph json.RawMessage `json:"graph"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe.Graph) > 0
}

// PartialCancel parses R (either a JGF or an RV1 document, detected by
// shape) and removes jobid's hold on exactly the vertices R names,
// reducing every still-held ancestor's subplan aggregate by what was
// removed rather than retagging the whole allocation (spec.md §4.6.4).
// It returns fullCancel = true when jobid no longer holds root after the
// partial removal, matching "full_cancel = (jobid ∉ root.tags)".
func (t *Traverser) PartialCancel(root *graph.Vertex, R []byte, jobid string) (fullCancel bool, err error) {
	t.tick()

	var canceled map[int64]contribution

	if isJGF(R) {
		canceled, _, err = t.partialCancelJGF(R, indexByUniqID(root), jobid)
	} else {
		canceled, _, err = t.partialCancelRV1(R, root, jobid)
	}
	if err != nil {
		return false, err
	}

	reduceAncestorSubplans(root, canceled, jobid)

	_, stillTagged := root.IData.Tags[jobid]
	return !stillTagged, nil
}

// contribution is one canceled vertex's own quantity, by type — what it
// contributes to every strict ancestor's subtree-aggregate span.
type contribution struct {
	Type string
	Qty  uint64
}

// indexByUniqID walks every dominant-subsystem vertex reachable from root
// into a uniq_id -> vertex lookup, the only addressing JGF/RV1 input
// gives partial_cancel to work with.
func indexByUniqID(root *graph.Vertex) map[int64]*graph.Vertex {
	byID := make(map[int64]*graph.Vertex)
	visited := make(map[int64]bool)
	var walk func(v *graph.Vertex)
	walk = func(v *graph.Vertex) {
		if visited[v.UniqID] {
			return
		}
		visited[v.UniqID] = true
		byID[v.UniqID] = v
		for _, e := range v.Out {
			if e.Subsystem != DominantSubsystem {
				continue
			}
			walk(e.Target)
		}
	}
	walk(root)
	return byID
}

// partialCancelJGF implements the JGF branch of spec.md §4.6.4: each
// named vertex is fully canceled for jobid (cancel_vtx), and its own
// size is accumulated into TypeToCount for the ancestor-reduction pass.
func (t *Traverser) partialCancelJGF(R []byte, byID map[int64]*graph.Vertex, jobid string) (map[int64]contribution, ModData, error) {
	var doc jgfCancelDoc
	if err := json.Unmarshal(R, &doc); err != nil {
		return nil, ModData{}, rgerrors.Wrap("traverser.PartialCancel", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
	}

	canceled := make(map[int64]contribution, len(doc.Graph.Nodes))
	md := ModData{TypeToCount: make(map[string]uint64)}

	for _, n := range doc.Graph.Nodes {
		uid, err := strconv.ParseInt(n.ID, 10, 64)
		if err != nil {
			continue
		}
		v, ok := byID[uid]
		if !ok {
			continue
		}
		if _, tagged := v.IData.Tags[jobid]; !tagged {
			continue
		}
		if err := cancelVertex(v, jobid); err != nil {
			return nil, ModData{}, err
		}
		qty := vertexOccupancy(v)
		canceled[uid] = contribution{Type: v.Type, Qty: qty}
		md.TypeToCount[v.Type] += qty
	}
	return canceled, md, nil
}

// partialCancelRV1 implements the RV1 branch of spec.md §4.6.4: R_lite
// carries no explicit per-type counts, only ranks, so each rank's
// subtree root is found (the jobid-tagged vertex at that rank) and
// full-canceled recursively, accumulating every visited descendant's
// size into TypeToCount.
func (t *Traverser) partialCancelRV1(R []byte, root *graph.Vertex, jobid string) (map[int64]contribution, ModData, error) {
	var doc rv1CancelDoc
	if err := json.Unmarshal(R, &doc); err != nil {
		return nil, ModData{}, rgerrors.Wrap("traverser.PartialCancel", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
	}

	var ranksRemoved []int64
	for _, entry := range doc.Execution.RLite {
		ids, err := idset.Decode(entry.Rank)
		if err != nil {
			return nil, ModData{}, rgerrors.Wrap("traverser.PartialCancel", rgerrors.InvalidInput, rgerrors.CodeEINVAL, err)
		}
		for r := range ids {
			ranksRemoved = append(ranksRemoved, r)
		}
	}

	rankRoots := rankToRoot(root, ranksRemoved, jobid)

	canceled := make(map[int64]contribution)
	md := ModData{TypeToCount: make(map[string]uint64), RanksRemoved: ranksRemoved}

	for _, v := range rankRoots {
		if err := cancelSubtreeAccum(v, jobid, canceled, md.TypeToCount); err != nil {
			return nil, ModData{}, err
		}
	}
	return canceled, md, nil
}

// rankToRoot finds, for each rank in ranksRemoved, the shortest-path
// jobid-tagged vertex holding that rank — ties broken by uniq_id per
// spec.md §9's documented tie-break (same rule MarkRanks uses).
func rankToRoot(root *graph.Vertex, ranksRemoved []int64, jobid string) []*graph.Vertex {
	want := make(map[int64]bool, len(ranksRemoved))
	for _, r := range ranksRemoved {
		want[r] = true
	}

	best := make(map[int64]*graph.Vertex)
	bestDepth := make(map[int64]int)
	visited := make(map[int64]bool)

	var walk func(v *graph.Vertex, depth int)
	walk = func(v *graph.Vertex, depth int) {
		if visited[v.UniqID] {
			return
		}
		visited[v.UniqID] = true

		if want[v.Rank] {
			if _, tagged := v.IData.Tags[jobid]; tagged {
				cur, ok := best[v.Rank]
				if !ok || depth < bestDepth[v.Rank] || (depth == bestDepth[v.Rank] && v.UniqID < cur.UniqID) {
					best[v.Rank] = v
					bestDepth[v.Rank] = depth
				}
			}
		}
		for _, e := range v.Out {
			if e.Subsystem != DominantSubsystem {
				continue
			}
			walk(e.Target, depth+1)
		}
	}
	walk(root, 0)

	out := make([]*graph.Vertex, 0, len(best))
	for _, v := range best {
		out = append(out, v)
	}
	return out
}

// cancelSubtreeAccum fully cancels v and every jobid-tagged descendant
// beneath it (mirroring removeTagged), recording each visited vertex's
// own size against its type in contrib for the ancestor-reduction pass.
func cancelSubtreeAccum(v *graph.Vertex, jobid string, canceled map[int64]contribution, typeToCount map[string]uint64) error {
	if _, tagged := v.IData.Tags[jobid]; !tagged {
		return nil
	}
	if err := cancelVertex(v, jobid); err != nil {
		return err
	}
	qty := vertexOccupancy(v)
	canceled[v.UniqID] = contribution{Type: v.Type, Qty: qty}
	typeToCount[v.Type] += qty

	for _, e := range v.Out {
		if e.Subsystem != DominantSubsystem {
			continue
		}
		if err := cancelSubtreeAccum(e.Target, jobid, canceled, typeToCount); err != nil {
			return err
		}
	}
	return nil
}

// vertexOccupancy is the quantity a single vertex contributes to an
// ancestor anchor's subtree aggregate for its own type, matching the
// dfv[type] sum priming computes (spec.md §4.6.1): a vertex's own size,
// or 1 for a zero-size (unit-count) resource.
func vertexOccupancy(v *graph.Vertex) uint64 {
	if v.Size > 0 {
		return v.Size
	}
	return 1
}

// reduceAncestorSubplans walks from root, and for every canceled vertex
// it finds, reduces each of its strict ancestors' own subtree-aggregate
// filter span by exactly that vertex's own contribution — cancel_vtx's
// planner_multi_reduce_span step applied at every anchor above the
// removed vertex (spec.md §4.6.4). Each canceled vertex contributes
// independently so two unrelated cancellations under the same ancestor
// (e.g. one core each under two different nodes) aren't conflated into a
// single combined delta. A reduction that drains an ancestor's span to
// zero across every tracked type removes its tag and job2span entry
// too, same as a full cancel would.
func reduceAncestorSubplans(root *graph.Vertex, canceled map[int64]contribution, jobid string) {
	if len(canceled) == 0 {
		return
	}

	visited := make(map[int64]bool)
	var stack []*graph.Vertex

	var walk func(v *graph.Vertex)
	walk = func(v *graph.Vertex) {
		if visited[v.UniqID] {
			return
		}
		visited[v.UniqID] = true
		stack = append(stack, v)

		if c, ok := canceled[v.UniqID]; ok {
			for _, ancestor := range stack[:len(stack)-1] {
				applyReduce(ancestor, c, jobid)
			}
		}

		for _, e := range v.Out {
			if e.Subsystem != DominantSubsystem {
				continue
			}
			walk(e.Target)
		}
		stack = stack[:len(stack)-1]
	}
	walk(root)
}

// applyReduce reduces v's own subtree-aggregate span by c's single
// type/quantity contribution (a no-op if v's subplan doesn't track c's
// type), deleting jobid's tag/job2span entry on v if the reduction
// drains the span to zero.
func applyReduce(v *graph.Vertex, c contribution, jobid string) {
	mp, ok := v.IData.Subplans[DominantSubsystem]
	if !ok {
		return
	}
	spanID, ok := v.IData.Job2Span[jobid]
	if !ok {
		return
	}

	types := mp.Types()
	deltas := make([]uint64, len(types))
	any := false
	for i, typ := range types {
		if typ == c.Type && c.Qty > 0 {
			deltas[i] = c.Qty
			any = true
		}
	}
	if !any {
		return
	}

	removed, err := mp.ReduceSpan(spanID, deltas)
	if err != nil {
		return
	}
	if removed {
		delete(v.IData.Job2Span, jobid)
		if _, stillXChecked := v.IData.XSpans[jobid]; !stillXChecked {
			delete(v.IData.Tags, jobid)
		}
	}
}
