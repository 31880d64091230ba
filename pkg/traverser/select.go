package traverser

import (
	"github.com/khryptorgraphics/gridmatch/pkg/constraint"
	"github.com/khryptorgraphics/gridmatch/pkg/graph"
	"github.com/khryptorgraphics/gridmatch/pkg/jobspec"
	"github.com/khryptorgraphics/gridmatch/pkg/policy"
	"github.com/khryptorgraphics/gridmatch/pkg/rgerrors"
	"github.com/khryptorgraphics/gridmatch/pkg/scoring"
)

// Meta carries the per-call parameters the DFV walk needs at every
// vertex: the allocation window, the constraint tree pruning candidates,
// and whether satisfiability alone is the goal (no planner check).
type Meta struct {
	At             int64
	Duration       uint64
	Constraint     constraint.Constraint
	Satisfiability bool
}

// Pick records one resource-tree node's chosen vertex and the count
// taken from it — the unit select() hands to update() to commit. A slot
// instance's Pick has no Vertex of its own (it's a synthetic grouping);
// its Children are the per-element picks carved from that instance.
type Pick struct {
	Resource  *jobspec.Resource
	Vertex    *graph.Vertex
	Needs     int64
	Exclusive bool
	Children  []Pick
}

// Match is select's result: the root picks plus the overall score used
// to decide hier_constrain_now / merge-to-parent in the original design.
// This implementation constrains eagerly at every level rather than
// deferring to an ancestor — a deliberate simplification recorded in
// DESIGN.md.
type Match struct {
	Picks []Pick
	Score float64
}

// Select performs the DFV walk matching js's resource tree against t's
// graph starting at t.Root, choosing best-k candidates at every level
// via t.Policy's comparator (spec.md §4.6.2).
func (t *Traverser) Select(js *jobspec.Jobspec, meta Meta) (*Match, error) {
	t.tick()
	picks := make([]Pick, 0, len(js.Resources))
	var total float64
	for i := range js.Resources {
		p, score, err := t.matchResource(t.Root, &js.Resources[i], meta, false)
		if err != nil {
			return nil, err
		}
		picks = append(picks, *p)
		total += score
	}
	return &Match{Picks: picks, Score: total}, nil
}

// comparator returns t.Policy's best-k ordering, falling back to
// GreaterScore when the policy doesn't customize one.
func (t *Traverser) comparator() scoring.Comparator[int64] {
	if withComparator, ok := t.Policy.(interface {
		Comparator() scoring.Comparator[int64]
	}); ok {
		return withComparator.Comparator()
	}
	return scoring.GreaterScore[int64]()
}

// matchResource finds and scores candidates for req under the subtree
// rooted at anchor, returning the chosen aggregate Pick. underSlot
// records whether req is itself nested under a slot ancestor — spec.md
// §4.6.2's prune rule gates the x_checker exclusivity check on "under a
// slot or explicit-exclusive", not on every candidate unconditionally.
func (t *Traverser) matchResource(anchor *graph.Vertex, req *jobspec.Resource, meta Meta, underSlot bool) (*Pick, float64, error) {
	exclusive := underSlot || req.Exclusive || t.Excl.IsResourceTypeExclusive(req.Type)
	candidates := t.collectCandidates(anchor, req.Type, meta, &req.Count, exclusive)
	if len(candidates) == 0 {
		return nil, 0, rgerrors.New("traverser.Select", rgerrors.NotFound, rgerrors.CodeENOENT, "no candidates for type "+req.Type)
	}

	arena := scoring.New[int64]()
	key := scoring.Key{Subsystem: DominantSubsystem, Type: req.Type}
	scores := make(map[int64]float64, len(candidates))
	for _, v := range candidates {
		s := t.scoreVertex(v, meta)
		scores[v.UniqID] = s
		arena.Add(key, scoring.EdgeGroup[int64]{Score: s, Count: 1, Root: v.UniqID, Edges: []int64{v.UniqID}})
	}

	qualified := int64(arena.QualifiedCount(key))
	if qualified == 0 {
		qualified = int64(len(candidates))
	}
	want := policy.CalcCount(req.Count, qualified)
	if want == 0 {
		return nil, 0, rgerrors.New("traverser.Select", rgerrors.NotFound, rgerrors.CodeENOENT, "count unsatisfiable for type "+req.Type)
	}

	cmp := t.comparator()
	arena.ChooseBestK(key, int(want), cmp)
	selected := arena.SelectedGroups(key)

	byID := make(map[int64]*graph.Vertex, len(candidates))
	for _, v := range candidates {
		byID[v.UniqID] = v
	}

	agg := &Pick{Resource: req, Exclusive: exclusive}
	var total float64
	for _, g := range selected {
		v := byID[g.Root]
		childPick := Pick{Resource: req, Vertex: v, Needs: int64(g.Needs), Exclusive: exclusive}
		for _, child := range req.With {
			var sub *Pick
			var score float64
			var err error
			if child.Type == "slot" {
				sub, score, err = t.matchSlot(v, &child, meta, arena, underSlot)
			} else {
				sub, score, err = t.matchResource(v, &child, meta, underSlot)
			}
			if err != nil {
				return nil, 0, err
			}
			childPick.Children = append(childPick.Children, *sub)
			total += score
		}
		agg.Children = append(agg.Children, childPick)
		total += scores[v.UniqID]
	}
	agg.Needs = int64(len(selected))
	return agg, total, nil
}

// slotElemCandidates is one slot element's qualified vertex pool under
// the slot's anchor, ordered and scored exactly like an ordinary
// matchResource candidate set.
type slotElemCandidates struct {
	elem     *jobspec.Resource
	vertices []*graph.Vertex
	scores   map[int64]float64
}

// matchSlot implements spec.md §4.6.2's "Slot expansion dom_slot": req is
// a {type: slot} resource under anchor whose With lists the per-instance
// element requirements. A slot isn't itself a graph vertex type, so
// rather than searching for one, this carves as many disjoint instances
// of req.With out of anchor's qualified descendants as every element
// type allows, scores each instance as a synthetic edge-group, and folds
// that scoring into parent (the enclosing matchResource call's arena)
// via Arena.MergeArena so dom_slot's qualified-granule accounting is
// visible one level up.
func (t *Traverser) matchSlot(anchor *graph.Vertex, req *jobspec.Resource, meta Meta, parent *scoring.Arena[int64], underSlot bool) (*Pick, float64, error) {
	elems := make([]slotElemCandidates, 0, len(req.With))
	granules := int64(-1)
	for i := range req.With {
		elem := &req.With[i]
		exclusive := true // every slot element is, by definition, under this slot
		candidates := t.collectCandidates(anchor, elem.Type, meta, &elem.Count, exclusive)
		scores := make(map[int64]float64, len(candidates))
		for _, v := range candidates {
			scores[v.UniqID] = t.scoreVertex(v, meta)
		}
		size := elem.Count.Min
		if size <= 0 {
			size = 1
		}
		g := int64(len(candidates)) / size
		if granules < 0 || g < granules {
			granules = g
		}
		elems = append(elems, slotElemCandidates{elem: elem, vertices: candidates, scores: scores})
	}
	if granules < 0 {
		granules = 0
	}
	if granules == 0 {
		return nil, 0, rgerrors.New("traverser.Select", rgerrors.NotFound, rgerrors.CodeENOENT, "no qualified slot instances for label "+req.Label)
	}

	want := policy.CalcCount(req.Count, granules)
	if want == 0 {
		return nil, 0, rgerrors.New("traverser.Select", rgerrors.NotFound, rgerrors.CodeENOENT, "slot count unsatisfiable for label "+req.Label)
	}

	slotArena := scoring.New[int64]()
	key := scoring.Key{Subsystem: DominantSubsystem, Type: "slot"}
	for i := int64(0); i < granules; i++ {
		slotArena.Add(key, scoring.EdgeGroup[int64]{Score: t.slotInstanceScore(elems, i), Count: 1, Root: i, Edges: []int64{i}})
	}
	slotArena.SetQualifiedGranules(key, int(granules))

	cmp := t.comparator()
	slotArena.ChooseBestK(key, int(want), cmp)
	selected := slotArena.SelectedGroups(key)

	if parent != nil {
		if err := parent.MergeArena(slotArena); err != nil {
			return nil, 0, err
		}
	}

	exclusive := req.Exclusive || t.Excl.IsResourceTypeExclusive(req.Type)
	agg := &Pick{Resource: req, Exclusive: exclusive, Needs: int64(len(selected))}
	var total float64
	for _, g := range selected {
		instance := g.Root
		instancePick := Pick{Resource: req, Needs: 1, Exclusive: exclusive}
		for _, ec := range elems {
			size := ec.elem.Count.Min
			if size <= 0 {
				size = 1
			}
			start := instance * size
			for j := int64(0); j < size; j++ {
				v := ec.vertices[start+j]
				elemPick := Pick{Resource: ec.elem, Vertex: v, Needs: 1, Exclusive: ec.elem.Exclusive}
				for _, nested := range ec.elem.With {
					var sub *Pick
					var score float64
					var err error
					if nested.Type == "slot" {
						sub, score, err = t.matchSlot(v, &nested, meta, parent, true)
					} else {
						sub, score, err = t.matchResource(v, &nested, meta, true)
					}
					if err != nil {
						return nil, 0, err
					}
					elemPick.Children = append(elemPick.Children, *sub)
					total += score
				}
				instancePick.Children = append(instancePick.Children, elemPick)
				total += ec.scores[v.UniqID]
			}
		}
		agg.Children = append(agg.Children, instancePick)
	}
	return agg, total, nil
}

// slotInstanceScore sums the per-element scores a slot instance draws
// from, matching the concatenated vertex ordering matchSlot assigns each
// instance.
func (t *Traverser) slotInstanceScore(elems []slotElemCandidates, instance int64) float64 {
	var sum float64
	for _, ec := range elems {
		size := ec.elem.Count.Min
		if size <= 0 {
			size = 1
		}
		start := instance * size
		for j := int64(0); j < size; j++ {
			v := ec.vertices[start+j]
			sum += ec.scores[v.UniqID]
		}
	}
	return sum
}

// collectCandidates walks anchor's dominant-subsystem subtree gathering
// every descendant vertex of type typ that survives prune, in out-edge
// storage order — already (weight, uniq_id)-descending per invariant I6.
// When count is given and the policy's stop_on_k_matches is active, the
// walk stops as soon as it has gathered count's effective max, so a
// request for a handful of units doesn't have to visit every matching
// descendant (spec.md §4.6.2's dynamic exploration, invariant behind
// the O(log n) visitation bound).
func (t *Traverser) collectCandidates(anchor *graph.Vertex, typ string, meta Meta, count *jobspec.Count, exclusive bool) []*graph.Vertex {
	var out []*graph.Vertex
	target := int64(-1)
	if count != nil && t.Policy != nil && t.Policy.StopOnKMatches() > 0 {
		target = policy.CalcEffectiveMax(*count)
	}

	var walk func(v *graph.Vertex) bool
	walk = func(v *graph.Vertex) bool {
		if v != anchor && v.Type == typ {
			if !t.prune(v, meta, exclusive) {
				out = append(out, v)
			}
			return target >= 0 && int64(len(out)) >= target
		}
		for _, e := range v.Out {
			if e.Subsystem != DominantSubsystem {
				continue
			}
			if walk(e.Target) {
				return true
			}
		}
		return false
	}
	walk(anchor)
	return out
}

// prune reports whether v must be excluded from consideration: down per
// administrative status (unless only satisfiability is being checked),
// constraint mismatch, insufficient planner availability, or — when the
// request is itself exclusive or nested under a slot, per spec.md
// §4.6.2 — no remaining x_checker headroom. A purely shared, non-slot
// request is never pruned on exclusivity grounds: other jobs holding v
// exclusively doesn't disqualify a request that never asked for
// exclusive access.
func (t *Traverser) prune(v *graph.Vertex, meta Meta, exclusive bool) bool {
	if !meta.Satisfiability && v.Status != graph.Up {
		return true
	}
	if v.Type == "node" && meta.Constraint != nil {
		res := constraint.Resource{Name: v.Name, Rank: v.Rank, Properties: propSet(v.Properties)}
		if !meta.Constraint.Match(res) {
			return true
		}
	}
	if v.Schedule.Plans != nil {
		avail, err := v.Schedule.Plans.AvailDuring(meta.At, meta.Duration)
		if err != nil || avail == 0 {
			return true
		}
	}
	if exclusive && v.IData.XChecker != nil {
		avail, err := v.IData.XChecker.AvailDuring(meta.At, meta.Duration)
		if err != nil || avail < XCheckerNJobs {
			return true
		}
	}
	return false
}

func propSet(props map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(props))
	for k := range props {
		out[k] = struct{}{}
	}
	return out
}

// scoreVertex is the default score function: current availability during
// the requested window — higher means more headroom.
func (t *Traverser) scoreVertex(v *graph.Vertex, meta Meta) float64 {
	if v.Schedule.Plans == nil {
		return 0
	}
	avail, err := v.Schedule.Plans.AvailDuring(meta.At, meta.Duration)
	if err != nil {
		return 0
	}
	return float64(avail)
}
